package registry

import (
	"github.com/google/uuid"

	"github.com/ocx/iceoryx2/internal/ids"
	"github.com/ocx/iceoryx2/internal/ioerrors"
	"github.com/ocx/iceoryx2/internal/platform"
	"github.com/ocx/iceoryx2/internal/telemetry"
	"github.com/ocx/iceoryx2/internal/wireformat"
)

// LifecycleState is a Node's externally observable state.
type LifecycleState int

const (
	Alive LifecycleState = iota
	Dead
	Undefined
	Inaccessible
)

func (s LifecycleState) String() string {
	switch s {
	case Alive:
		return "Alive"
	case Dead:
		return "Dead"
	case Inaccessible:
		return "Inaccessible"
	default:
		return "Undefined"
	}
}

// Node is a process participant. It exists as long as
// its node-file exists and the owning process holds the exclusive lock on
// it; the lock IS the liveness signal — no heartbeat protocol is needed.
type Node struct {
	layout Layout
	id     ids.NodeId
	name   string
	lock   *platform.FileLock
}

const nodeNameMaxLen = 255

// Create registers a new Node under prefix, taking and holding the
// node-file's exclusive lock for the Node's lifetime. hostTag
// distinguishes otherwise-identical PIDs across machines sharing a
// network filesystem prefix (rare, but the content-hash construction
// allows for it).
func Create(prefix, name, hostTag string) (*Node, error) {
	if len(name) > nodeNameMaxLen {
		return nil, ioerrors.New(ioerrors.InvalidQoS, "registry.Create", nil)
	}
	layout := NewLayout(prefix)
	if err := layout.EnsureDirs(); err != nil {
		return nil, err
	}

	id := ids.NewNodeId(platform.CurrentPID(), uuid.New(), hostTag)
	path := layout.NodePath(id)

	lock, err := platform.OpenLock(path)
	if err != nil {
		return nil, err
	}
	if err := lock.Lock(); err != nil {
		lock.Close()
		return nil, err
	}

	h := wireformat.Header{Magic: [8]byte{'I', 'O', 'X', '2', 'N', 'O', 'D', '\x00'}, Major: wireformat.CurrentMajor, Minor: wireformat.CurrentMinor}
	body := append(h.Encode(), wireformat.EncodeKV(map[string]string{"name": name})...)
	if _, err := lock.WriteAt(body); err != nil {
		lock.Close()
		return nil, err
	}

	telemetry.Logger().Info("node created", "node_id", id.String(), "name", name)
	return &Node{layout: layout, id: id, name: name, lock: lock}, nil
}

func (n *Node) ID() ids.NodeId { return n.id }
func (n *Node) Name() string   { return n.name }

// State reports Alive if this process still holds the lock it took at
// creation (it always does, short of a bug) — Dead/Undefined/Inaccessible
// are states observed about *other* nodes, computed by the registry's
// dead-node reaper/List, not by a Node about itself.
func (n *Node) State() LifecycleState { return Alive }

// Remove releases the lock and deletes the node file: graceful shutdown.
// If the process crashes instead, the OS releases the lock on process
// exit and the reaper (internal/registry/reaper.go) performs the
// equivalent cleanup.
func (n *Node) Remove() error {
	path := n.lock.Path()
	if err := n.lock.Close(); err != nil {
		return err
	}
	if err := platform.Remove(path); err != nil && !ioerrors.IsIdempotentSuccess(err) {
		return err
	}
	telemetry.Logger().Info("node removed", "node_id", n.id.String())
	return nil
}
