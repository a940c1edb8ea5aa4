package registry

import (
	"os"
	"strings"

	"github.com/ocx/iceoryx2/internal/ids"
	"github.com/ocx/iceoryx2/internal/ioerrors"
	"github.com/ocx/iceoryx2/internal/platform"
	"github.com/ocx/iceoryx2/internal/wireformat"
)

// NodeInfo is the read-only summary ListNodes returns for one node file;
// liveness is probed with a non-blocking TryLock that is released again
// at once.
type NodeInfo struct {
	ID    ids.NodeId
	Name  string
	State LifecycleState
}

// ListNodes enumerates every node file under prefix, probing each for
// liveness with a non-blocking TryLock the same way the Reaper does, but
// without removing dead entries — this is the read-only counterpart used
// by introspection tooling.
func ListNodes(prefix string) ([]NodeInfo, error) {
	layout := NewLayout(prefix)
	entries, err := os.ReadDir(layout.NodesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ioerrors.New(ioerrors.UnexpectedOsError, "ListNodes", err)
	}

	out := make([]NodeInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".node") {
			continue
		}
		id, ok := ids.ParseNodeId(strings.TrimSuffix(entry.Name(), ".node"))
		if !ok {
			continue
		}

		path := layout.NodePath(id)
		state, name := probeNodeState(path)
		out = append(out, NodeInfo{ID: id, Name: name, State: state})
	}
	return out, nil
}

// probeNodeState reports a node's externally observable state by
// attempting a non-blocking lock: Busy means another process still holds
// it (Alive); a clean acquisition means its owner is gone (Dead), and the
// lock is released immediately without removing the file.
func probeNodeState(path string) (LifecycleState, string) {
	lock, err := platform.OpenLock(path)
	if err != nil {
		return Inaccessible, ""
	}
	defer lock.Close()

	name := nodeNameFrom(lock)

	if err := lock.TryLock(); err != nil {
		code, ok := ioerrors.CodeOf(err)
		if ok && code == ioerrors.Busy {
			return Alive, name
		}
		return Undefined, name
	}
	return Dead, name
}

func nodeNameFrom(lock *platform.FileLock) string {
	raw, err := lock.ReadAll()
	if err != nil || len(raw) < wireformat.HeaderSize {
		return ""
	}
	fields, err := wireformat.DecodeKV(raw[wireformat.HeaderSize:])
	if err != nil {
		return ""
	}
	return fields["name"]
}

// ServiceInfo is the read-only summary ListServices returns for one
// service's static config.
type ServiceInfo struct {
	ID   ids.ServiceId
	Desc ServiceDescriptor
}

// ListServices enumerates every service under prefix by reading its
// static-config file.
func ListServices(prefix string) ([]ServiceInfo, error) {
	layout := NewLayout(prefix)
	entries, err := os.ReadDir(layout.ServicesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ioerrors.New(ioerrors.UnexpectedOsError, "ListServices", err)
	}

	out := make([]ServiceInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".service") {
			continue
		}
		id, ok := ids.ParseServiceId(strings.TrimSuffix(entry.Name(), ".service"))
		if !ok {
			continue
		}

		body, err := platform.ReadFile(layout.StaticConfigPath(id))
		if err != nil || len(body) < wireformat.HeaderSize {
			continue
		}
		fields, err := wireformat.DecodeKV(body[wireformat.HeaderSize:])
		if err != nil {
			continue
		}
		out = append(out, ServiceInfo{ID: id, Desc: ServiceDescriptor{
			Name:               fields["name"],
			Pattern:            fields["pattern"],
			PayloadTypeName:    fields["payload_type"],
			UserHeaderTypeName: fields["user_header"],
			QoS:                []byte(fields["qos"]),
		}})
	}
	return out, nil
}
