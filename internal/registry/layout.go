// Package registry implements the node and service registry:
// content-addressed, file-backed node and service records
// under a configurable prefix directory, with atomic creation, consistent
// multi-writer open semantics, and dead-node detection/cleanup.
package registry

import (
	"path/filepath"

	"github.com/ocx/iceoryx2/internal/ids"
	"github.com/ocx/iceoryx2/internal/platform"
)

// Layout resolves the well-known directory structure under a prefix:
//
//	<prefix>/nodes/<node-id>.node
//	<prefix>/services/<service-id>.service
//	<prefix>/services/<service-id>.dynamic
//	<prefix>/segments/<segment-id>.shm
type Layout struct {
	Prefix string
}

func NewLayout(prefix string) Layout { return Layout{Prefix: prefix} }

func (l Layout) NodesDir() string    { return filepath.Join(l.Prefix, "nodes") }
func (l Layout) ServicesDir() string { return filepath.Join(l.Prefix, "services") }
func (l Layout) SegmentsDir() string { return filepath.Join(l.Prefix, "segments") }

// EnsureDirs creates every directory this layout needs, idempotently.
func (l Layout) EnsureDirs() error {
	for _, dir := range []string{l.NodesDir(), l.ServicesDir(), l.SegmentsDir()} {
		if err := platform.EnsureDir(dir); err != nil {
			return err
		}
	}
	return nil
}

func (l Layout) NodePath(id ids.NodeId) string {
	return filepath.Join(l.NodesDir(), id.String()+".node")
}

func (l Layout) StaticConfigPath(id ids.ServiceId) string {
	return filepath.Join(l.ServicesDir(), id.String()+".service")
}

func (l Layout) DynamicConfigPath(id ids.ServiceId) string {
	return filepath.Join(l.ServicesDir(), id.String()+".dynamic")
}
