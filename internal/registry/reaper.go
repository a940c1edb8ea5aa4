package registry

import (
	"context"
	"os"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ocx/iceoryx2/internal/ids"
	"github.com/ocx/iceoryx2/internal/ioerrors"
	"github.com/ocx/iceoryx2/internal/platform"
	"github.com/ocx/iceoryx2/internal/telemetry"
	"github.com/ocx/iceoryx2/internal/wireformat"
)

// ServicePortRemoval is one service's share of a dead node's cleanup: the
// port entries the node owned on that service, stripped from its dynamic
// config.
type ServicePortRemoval struct {
	ServiceID ids.ServiceId
	Removed   []wireformat.PortEntry
}

// NodeDeathHandler is invoked once per node found dead, after its port
// entries have been stripped from every service's dynamic config but
// before its node-file is deleted. Implementations translate this into a
// ProcessDied event on each affected service and release any sample
// refcounts the removed ports were holding — both out of scope for the
// registry package itself, which only knows about files, not samples or
// event buses.
type NodeDeathHandler func(node ids.NodeId, removals []ServicePortRemoval)

// Reaper scans the nodes directory, once per Sweep call, for node-files whose
// owning process is gone and removes them. A node file's exclusive lock IS its liveness signal, so
// detecting death is just a non-blocking TryLock: if the reaper can take
// the lock, no process holds it anymore.
type Reaper struct {
	layout     Layout
	concurrent int
	onDead     NodeDeathHandler
}

// NewReaper builds a Reaper over prefix. concurrent bounds how many node
// files are probed at once; 0 means unbounded (errgroup.SetLimit is not
// called).
func NewReaper(prefix string, concurrent int) *Reaper {
	return &Reaper{layout: NewLayout(prefix), concurrent: concurrent}
}

// WithDeathHandler registers fn to run for every node this Reaper finds
// dead, and returns the Reaper for chaining at the construction site.
func (r *Reaper) WithDeathHandler(fn NodeDeathHandler) *Reaper {
	r.onDead = fn
	return r
}

// Sweep probes every node file once and removes the ones found dead,
// returning the count reaped. A probe failure on one node file (beyond
// "still alive") does not abort the sweep of the others.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(r.layout.NodesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, ioerrors.New(ioerrors.UnexpectedOsError, "Reaper.Sweep", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	var reaped atomic.Int64
	if r.concurrent > 0 {
		g.SetLimit(r.concurrent)
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".node") {
			continue
		}
		name := entry.Name()
		path := r.layout.NodesDir() + "/" + name
		g.Go(func() error {
			dead, err := r.probeAndReap(name, path)
			if err != nil {
				telemetry.Logger().Warn("reaper probe failed", "path", path, "error", err)
				return nil
			}
			if dead {
				reaped.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(reaped.Load()), nil
}

// probeAndReap reports whether path's owning process was found dead and,
// if so, cleans up its footprint on every service before removing the
// node file itself.
func (r *Reaper) probeAndReap(name, path string) (bool, error) {
	lock, err := platform.OpenLock(path)
	if err != nil {
		return false, err
	}
	defer lock.Close()

	if err := lock.TryLock(); err != nil {
		code, _ := ioerrors.CodeOf(err)
		if code == ioerrors.Busy {
			return false, nil // still held: node is alive
		}
		return false, err
	}
	// We now hold the lock: its previous owner is gone.
	if nodeID, ok := ids.ParseNodeId(strings.TrimSuffix(name, ".node")); ok {
		removals := r.stripFromServices(nodeID)
		if r.onDead != nil {
			r.onDead(nodeID, removals)
		}
	}
	if err := platform.Remove(path); err != nil && !ioerrors.IsIdempotentSuccess(err) {
		return false, err
	}
	telemetry.Logger().Info("reaped dead node", "path", path)
	telemetry.M().DeadNodesReaped.Inc()
	return true, nil
}

// stripFromServices removes nodeID's port entries from every service's
// dynamic config under this Reaper's prefix, returning the non-empty
// removals. A service this node never attached to is silently skipped —
// most services in a sweep will report nothing for any given dead node.
func (r *Reaper) stripFromServices(nodeID ids.NodeId) []ServicePortRemoval {
	services, err := ListServices(r.layout.Prefix)
	if err != nil {
		telemetry.Logger().Warn("reaper: list services failed", "error", err)
		return nil
	}
	var removals []ServicePortRemoval
	for _, svc := range services {
		dyn, err := OpenDynamicConfig(r.layout.Prefix, svc.ID)
		if err != nil {
			continue
		}
		removed, err := dyn.RemoveByNode(nodeID)
		if err != nil {
			telemetry.Logger().Warn("reaper: dynamic config cleanup failed", "service", svc.ID.String(), "error", err)
			continue
		}
		if len(removed) > 0 {
			removals = append(removals, ServicePortRemoval{ServiceID: svc.ID, Removed: removed})
		}
	}
	return removals
}
