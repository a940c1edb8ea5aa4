package iceoryx2

import (
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/ocx/iceoryx2/internal/ids"
	"github.com/ocx/iceoryx2/internal/platform"
	"github.com/ocx/iceoryx2/internal/shmem"
	"github.com/ocx/iceoryx2/internal/transport"
	"github.com/ocx/iceoryx2/internal/wireformat"
)

func ringSize(capacity uint32) int {
	return wireformat.RingHeaderSize + int(capacity)*wireformat.DescriptorSize
}

func ringPath(prefix string, id ids.SegmentId) string {
	return filepath.Join(prefix, "segments", "ring-"+strconv.FormatUint(uint64(id), 16)+".shm")
}

// ServiceConfig holds the per-service quality-of-service knobs a
// ServiceBuilder-equivalent method (Node.PublishSubscribe, Node.Event,
// Node.RequestResponse, Node.Blackboard) reads before creating or opening
// a service. Start from Node.DefaultServiceConfig and override only the
// fields that matter for the call site.
type ServiceConfig struct {
	PayloadTypeName    string
	UserHeaderTypeName string
	MaxPorts           int
	HistorySize        int
	SafeOverflow       bool
	SlotSize           uint32
	SlotCount          uint32
	RingCapacity       uint32
	AllocationStrategy shmem.AllocationStrategy
}

// DefaultServiceConfig derives a ServiceConfig from the node's configured
// service defaults (internal/config.ServiceDefaults), substituting Static
// for an unparseable allocation strategy string.
func (n *Node) DefaultServiceConfig() ServiceConfig {
	d := n.cfg.Service
	strategy, err := shmem.ParseAllocationStrategy(d.AllocationStrategy)
	if err != nil {
		strategy = shmem.Static
	}
	return ServiceConfig{
		MaxPorts:           d.MaxPorts,
		HistorySize:        int(d.HistorySize),
		SafeOverflow:       d.SafeOverflow,
		SlotSize:           d.InitialMaxSliceLen,
		SlotCount:          d.ReceiveBufferSize,
		RingCapacity:       d.ReceiveBufferSize,
		AllocationStrategy: strategy,
	}
}

func qosBytes(cfg ServiceConfig) []byte {
	return wireformat.EncodeKV(map[string]string{
		"max_ports":     strconv.Itoa(cfg.MaxPorts),
		"history_size":  strconv.Itoa(cfg.HistorySize),
		"safe_overflow": strconv.FormatBool(cfg.SafeOverflow),
		"slot_size":     strconv.Itoa(int(cfg.SlotSize)),
		"slot_count":    strconv.Itoa(int(cfg.SlotCount)),
	})
}

// segmentMinter returns a nextSeg callback for shmem.NewGrowable that
// content-addresses each new generation from svc plus a fresh random
// nonce, per internal/ids.NewSegmentId.
func segmentMinter(svc ids.ServiceId) func() ids.SegmentId {
	return func() ids.SegmentId {
		return ids.NewSegmentId(svc, uuid.New())
	}
}

// ringFile maps a fresh shared-memory-backed ring sized for capacity
// descriptors, under the node's segments/ directory, named from a
// content-addressed id (internal/ids.NewSegmentId, same minting scheme as
// a Growable generation) so a Subscriber in another process can reopen
// the identical file once the id is published via the service's
// DynamicConfig (see PublishSubscribeService.CreateSubscriberFrom).
func ringFile(prefix string, svc ids.ServiceId, capacity uint32) (*platform.SharedMemory, *transport.Ring, ids.SegmentId, error) {
	id := ids.NewSegmentId(svc, uuid.New())
	mem, err := platform.CreateSharedMemory(ringPath(prefix, id), ringSize(capacity))
	if err != nil {
		return nil, nil, 0, err
	}
	transport.InitRing(mem.Bytes(), capacity)
	return mem, transport.NewRing(mem.Bytes(), capacity), id, nil
}

// openRing maps an existing shared-memory-backed ring minted by ringFile
// in another process, resolved by its content-addressed id.
func openRing(prefix string, id ids.SegmentId, capacity uint32) (*platform.SharedMemory, *transport.Ring, error) {
	mem, err := platform.OpenSharedMemory(ringPath(prefix, id))
	if err != nil {
		return nil, nil, err
	}
	return mem, transport.NewRing(mem.Bytes(), capacity), nil
}
