// Package iceoryx2 is the public façade over the core: a Node opens
// services in one of four messaging patterns (publish-subscribe,
// event, request-response, blackboard) and hands out the ports that
// read and write samples through them, wiring together
// internal/registry, internal/shmem, internal/transport, internal/port
// and internal/waitset behind a single, process-embeddable API.
package iceoryx2

import (
	"context"
	"os"

	"github.com/ocx/iceoryx2/internal/config"
	"github.com/ocx/iceoryx2/internal/ids"
	"github.com/ocx/iceoryx2/internal/registry"
	"github.com/ocx/iceoryx2/internal/telemetry"
)

// Node is one process's participation in the system: it owns a lock-held
// node-file for as long as it is alive and is the handle every Service is
// opened through.
type Node struct {
	name   string
	reg    *registry.Node
	cfg    *config.Config
	prefix string
}

// NewNode creates a node named name using the default configuration
// (ICEORYX2_PREFIX / ICEORYX2_LOG_LEVEL env overrides still apply).
func NewNode(name string) (*Node, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}
	return NewNodeWithConfig(name, cfg)
}

// NewNodeWithConfig creates a node under an explicitly supplied
// configuration, e.g. one loaded via config.Load from a YAML file.
func NewNodeWithConfig(name string, cfg *config.Config) (*Node, error) {
	telemetry.Init(cfg.Global.LogLevel)
	reg, err := registry.Create(cfg.Global.Prefix, name, hostTag())
	if err != nil {
		return nil, err
	}
	return &Node{name: name, reg: reg, cfg: cfg, prefix: cfg.Global.Prefix}, nil
}

func hostTag() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown-host"
	}
	return h
}

func (n *Node) ID() ids.NodeId { return n.reg.ID() }
func (n *Node) Name() string   { return n.name }

// Close releases the node's lock and removes its node-file: a graceful
// departure. If the process dies instead, a Reap from another node (or
// the standalone reaper in cmd/iox2ctl) performs the equivalent cleanup.
func (n *Node) Close() error { return n.reg.Remove() }

// Reap sweeps the node registry for dead nodes (ones whose lock has been
// released by the OS on process exit) and removes them, returning the
// count reaped. Any live node can drive this — there is no designated
// reaper process. For every node found dead, its port entries are
// stripped from every service's dynamic config (internal/registry) and
// any Notifier this process registered on its behalf is marked dead,
// surfacing EventNotifierDead to that Notifier's listeners.
func (n *Node) Reap(ctx context.Context) (int, error) {
	reaper := registry.NewReaper(n.prefix, 0).WithDeathHandler(func(dead ids.NodeId, _ []registry.ServicePortRemoval) {
		watch.notifyDead(dead)
	})
	return reaper.Sweep(ctx)
}

// ListNodes enumerates every node known under this node's prefix,
// including dead ones not yet reaped.
func (n *Node) ListNodes() ([]registry.NodeInfo, error) {
	return registry.ListNodes(n.prefix)
}

// ListServices enumerates every service known under this node's prefix.
func (n *Node) ListServices() ([]registry.ServiceInfo, error) {
	return registry.ListServices(n.prefix)
}
