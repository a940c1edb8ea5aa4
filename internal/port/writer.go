package port

import (
	"sync/atomic"
	"unsafe"

	"github.com/ocx/iceoryx2/internal/ids"
	"github.com/ocx/iceoryx2/internal/ioerrors"
	"github.com/ocx/iceoryx2/internal/registry"
	"github.com/ocx/iceoryx2/internal/telemetry"
	"github.com/ocx/iceoryx2/internal/wireformat"
)

// BlackboardSlot is one key's region within the blackboard's shared
// memory: an 8-byte seqlock counter followed by valueSize value bytes,
// matching wireformat.BlackboardEntryHeaderSize.
type BlackboardSlot struct {
	buf []byte
}

// NewBlackboardSlot wraps buf (BlackboardEntryHeaderSize + value-size
// bytes carved out of a blackboard service's shared-memory region) as a
// BlackboardSlot a Writer or Reader can attach to.
func NewBlackboardSlot(buf []byte) BlackboardSlot { return BlackboardSlot{buf: buf} }

func (s BlackboardSlot) seqPtr() *uint64 { return (*uint64)(unsafe.Pointer(&s.buf[0])) }
func (s BlackboardSlot) value() []byte   { return s.buf[wireformat.BlackboardEntryHeaderSize:] }

// Writer is the blackboard pattern's single-writer-per-key send side.
// Each key it owns is written under a seqlock: bump
// the sequence to odd, write the value, bump it to even — a concurrent
// Reader that observes an odd or changing sequence retries rather than
// ever reading a torn value.
type Writer struct {
	id     ids.PortId
	node   ids.NodeId
	slots  map[string]BlackboardSlot
	dynCfg *registry.DynamicConfig
	sm     *StateMachine
}

// NewWriter takes ownership of slots (key -> pre-allocated blackboard
// region) for svc. A key already claimed by another live Writer is an
// invariant violation the caller (the service builder) is responsible for
// preventing — Writer itself trusts its input, matching the "single
// writer per key" invariant being enforced at attach time, not per-call.
func NewWriter(node ids.NodeId, svc ids.ServiceId, slots map[string]BlackboardSlot, dynCfg *registry.DynamicConfig, maxPorts int) (*Writer, error) {
	w := &Writer{id: ids.NewPortId(svc), node: node, slots: slots, dynCfg: dynCfg, sm: NewStateMachine()}
	entry := wireformat.PortEntry{PortID: w.id, NodeID: node, Kind: wireformat.PortKindWriter}
	if err := dynCfg.Insert(entry, maxPorts); err != nil {
		return nil, err
	}
	if err := w.sm.Transition(Registered); err != nil {
		return nil, err
	}
	if err := w.sm.Transition(Active); err != nil {
		return nil, err
	}
	telemetry.M().PortsActive.WithLabelValues("writer").Inc()
	return w, nil
}

func (w *Writer) ID() ids.PortId { return w.id }

// Update writes value into key's slot under the seqlock discipline.
func (w *Writer) Update(key string, value []byte) error {
	slot, ok := w.slots[key]
	if !ok {
		return ioerrors.New(ioerrors.InvalidQoS, "Writer.Update", nil)
	}
	if len(value) != len(slot.value()) {
		return ioerrors.New(ioerrors.ExceedsMaxSliceLen, "Writer.Update", nil)
	}
	seq := atomic.LoadUint64(slot.seqPtr())
	atomic.StoreUint64(slot.seqPtr(), seq+1) // now odd: readers must retry
	copy(slot.value(), value)
	atomic.StoreUint64(slot.seqPtr(), seq+2) // back to even: value is stable
	return nil
}

func (w *Writer) Reclaim() error {
	if err := w.dynCfg.Remove(w.id); err != nil && !ioerrors.IsIdempotentSuccess(err) {
		return err
	}
	w.sm.ForceReclaim()
	telemetry.M().PortsActive.WithLabelValues("writer").Dec()
	return nil
}

func (w *Writer) State() State { return w.sm.Current() }
