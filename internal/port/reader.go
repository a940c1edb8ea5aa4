package port

import (
	"sync/atomic"

	"github.com/ocx/iceoryx2/internal/ids"
	"github.com/ocx/iceoryx2/internal/ioerrors"
	"github.com/ocx/iceoryx2/internal/registry"
	"github.com/ocx/iceoryx2/internal/telemetry"
	"github.com/ocx/iceoryx2/internal/wireformat"
)

// readRetryLimit bounds the seqlock retry loop so a Reader racing a
// pathologically fast Writer returns Busy instead of spinning forever.
const readRetryLimit = 64

// Reader is the blackboard pattern's receive side: a
// lock-free, multi-reader view over a Writer's keys via the same seqlock
// discipline Writer.Update maintains.
type Reader struct {
	id     ids.PortId
	node   ids.NodeId
	slots  map[string]BlackboardSlot
	dynCfg *registry.DynamicConfig
	sm     *StateMachine
}

func NewReader(node ids.NodeId, svc ids.ServiceId, slots map[string]BlackboardSlot, dynCfg *registry.DynamicConfig, maxPorts int) (*Reader, error) {
	r := &Reader{id: ids.NewPortId(svc), node: node, slots: slots, dynCfg: dynCfg, sm: NewStateMachine()}
	entry := wireformat.PortEntry{PortID: r.id, NodeID: node, Kind: wireformat.PortKindReader}
	if err := dynCfg.Insert(entry, maxPorts); err != nil {
		return nil, err
	}
	if err := r.sm.Transition(Registered); err != nil {
		return nil, err
	}
	if err := r.sm.Transition(Active); err != nil {
		return nil, err
	}
	telemetry.M().PortsActive.WithLabelValues("reader").Inc()
	return r, nil
}

func (r *Reader) ID() ids.PortId { return r.id }

// Get reads key's current value, retrying while a Writer is mid-update
// (odd sequence) or the value changed underneath the read.
func (r *Reader) Get(key string) ([]byte, error) {
	slot, ok := r.slots[key]
	if !ok {
		return nil, ioerrors.New(ioerrors.InvalidQoS, "Reader.Get", nil)
	}
	out := make([]byte, len(slot.value()))
	for attempt := 0; attempt < readRetryLimit; attempt++ {
		before := atomic.LoadUint64(slot.seqPtr())
		if before%2 == 1 {
			continue // writer mid-update
		}
		copy(out, slot.value())
		after := atomic.LoadUint64(slot.seqPtr())
		if before == after {
			return out, nil
		}
	}
	return nil, ioerrors.New(ioerrors.Busy, "Reader.Get", nil)
}

func (r *Reader) Reclaim() error {
	if err := r.dynCfg.Remove(r.id); err != nil && !ioerrors.IsIdempotentSuccess(err) {
		return err
	}
	r.sm.ForceReclaim()
	telemetry.M().PortsActive.WithLabelValues("reader").Dec()
	return nil
}

func (r *Reader) State() State { return r.sm.Current() }
