package port

import (
	"sync"
	"sync/atomic"

	"github.com/ocx/iceoryx2/internal/ids"
	"github.com/ocx/iceoryx2/internal/ioerrors"
	"github.com/ocx/iceoryx2/internal/registry"
	"github.com/ocx/iceoryx2/internal/shmem"
	"github.com/ocx/iceoryx2/internal/telemetry"
	"github.com/ocx/iceoryx2/internal/transport"
	"github.com/ocx/iceoryx2/internal/wireformat"
)

// Publisher is the pub-sub pattern's send-side port.
// Loan reserves a payload slot from the service's shared-memory
// allocator; Send publishes its descriptor on the ring and, under the
// same lock, records it to history and replays it to Subscribers that
// attach concurrently.
type Publisher struct {
	mu      sync.Mutex
	id      ids.PortId
	svc     ids.ServiceId
	node    ids.NodeId
	alloc   shmem.Allocator
	ring    *transport.Ring
	history *transport.History
	dynCfg  *registry.DynamicConfig
	seq     atomic.Uint64
	sm      *StateMachine
	maxSubs int

	safeOverflow bool
	subs         []*transport.Cursor
}

// NewPublisher constructs a Publisher over an already-created ring and
// allocator and registers it in the service's dynamic config. When
// safeOverflow is false, Send rejects with ioerrors.Backpressured instead
// of overwriting a sample any attached Subscriber has not yet read.
func NewPublisher(node ids.NodeId, svc ids.ServiceId, alloc shmem.Allocator, ring *transport.Ring, dynCfg *registry.DynamicConfig, safeOverflow bool, historyCapacity, maxPorts int) (*Publisher, error) {
	p := &Publisher{
		id:           ids.NewPortId(svc),
		svc:          svc,
		node:         node,
		alloc:        alloc,
		ring:         ring,
		history:      transport.NewHistory(historyCapacity),
		dynCfg:       dynCfg,
		safeOverflow: safeOverflow,
		sm:           NewStateMachine(),
	}
	entry := wireformat.PortEntry{PortID: p.id, NodeID: node, Kind: wireformat.PortKindPublisher}
	if err := dynCfg.Insert(entry, maxPorts); err != nil {
		return nil, err
	}
	if err := p.sm.Transition(Registered); err != nil {
		return nil, err
	}
	if err := p.sm.Transition(Active); err != nil {
		return nil, err
	}
	telemetry.M().PortsActive.WithLabelValues("publisher").Inc()
	return p, nil
}

func (p *Publisher) ID() ids.PortId { return p.id }

// Loan reserves size bytes from the backing allocator for a sample to be
// filled in place and later handed to Send.
func (p *Publisher) Loan(size uint32) (shmem.Slot, error) {
	if p.sm.Current() != Active {
		return shmem.Slot{}, ioerrors.New(ioerrors.StopRequested, "Publisher.Loan", nil)
	}
	slot, err := p.alloc.Loan(size)
	if err != nil {
		code, _ := ioerrors.CodeOf(err)
		telemetry.M().AllocFailures.WithLabelValues(p.id.String(), code.String()).Inc()
		return shmem.Slot{}, err
	}
	telemetry.M().SlotsInUse.WithLabelValues(p.id.String()).Set(float64(p.alloc.InUse()))
	return slot, nil
}

// anySubscriberFull reports whether pushing one more descriptor would
// overtake any currently-attached Subscriber's unread position. Must be
// called while holding p.mu.
func (p *Publisher) anySubscriberFull() bool {
	w := p.ring.WriteIndex()
	cap64 := uint64(p.ring.Capacity())
	for _, c := range p.subs {
		if w-c.Position() >= cap64 {
			return true
		}
	}
	return false
}

// Send publishes slot's descriptor, recording it into history and
// bumping the ring's write index under one critical section so a
// Subscriber attaching concurrently observes either the sample via replay
// or via the ring, never both and never neither.
//
// Whether this Send would overtake a lagging Subscriber is computed here,
// not supplied by the caller: under safe-overflow (the default) a full
// ring overwrites the oldest unread slot and the lagging Subscriber finds
// out via Lagged(). Under backpressure (SafeOverflow=false) Send instead
// rejects with ioerrors.Backpressured and never touches the ring, leaving
// slot loaned out — the caller is responsible for releasing it via
// Release.
func (p *Publisher) Send(slot shmem.Slot) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	svcID := p.svc.String()
	full := p.anySubscriberFull()
	if full && !p.safeOverflow {
		telemetry.M().Backpressured.WithLabelValues(svcID).Inc()
		return 0, ioerrors.New(ioerrors.Backpressured, "Publisher.Send", nil)
	}

	seq := p.seq.Add(1)
	d := transport.DescriptorFor(slot, seq)
	p.ring.Push(d, full)
	p.history.Record(d)

	telemetry.M().SendsTotal.WithLabelValues(svcID).Inc()
	if full {
		telemetry.M().OverflowDrops.WithLabelValues(svcID).Inc()
	}
	return seq, nil
}

// Release returns slot to the backing allocator unused — for a caller
// that loaned a slot and then failed to send it (Send rejected it, or
// filling it failed).
func (p *Publisher) Release(slot shmem.Slot) error {
	if err := p.alloc.Release(slot); err != nil {
		return err
	}
	telemetry.M().SlotsInUse.WithLabelValues(p.id.String()).Set(float64(p.alloc.InUse()))
	return nil
}

// replaySnapshot returns the current history buffer, for a Subscriber
// that is attaching right now. AttachSubscriberCursor calls it while
// holding p.mu, so no Send interleaves between the snapshot and the
// seeding of the new cursor.
func (p *Publisher) replaySnapshot() []wireformat.Descriptor {
	return p.history.Snapshot()
}

// AttachSubscriberCursor returns a transport.Cursor seeded from the
// publisher's current write index plus the history replay, both computed
// atomically with respect to concurrent Send calls. The cursor is tracked
// on the Publisher so Send can consult its position under a backpressure
// policy; callers must pass it to DetachSubscriberCursor on Reclaim.
func (p *Publisher) AttachSubscriberCursor() (*transport.Cursor, []wireformat.Descriptor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := p.replaySnapshot()
	c := transport.NewCursor(p.ring, p.ring.WriteIndex())
	p.subs = append(p.subs, c)
	return c, snap
}

// DetachSubscriberCursor stops tracking cursor for backpressure purposes,
// so a reclaimed Subscriber no longer counts toward anySubscriberFull.
func (p *Publisher) DetachSubscriberCursor(cursor *transport.Cursor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.subs {
		if c == cursor {
			p.subs = append(p.subs[:i], p.subs[i+1:]...)
			return
		}
	}
}

// Drain transitions the port out of service: no further Loan calls
// succeed, but the caller is expected to let in-flight Sends finish
// before calling Reclaim.
func (p *Publisher) Drain() error { return p.sm.Transition(Draining) }

// Reclaim removes the port's dynamic-config entry and releases telemetry
// accounting. Idempotent removal races are treated as success per the
// taxonomy's AlreadyRemoved rule.
func (p *Publisher) Reclaim() error {
	if err := p.dynCfg.Remove(p.id); err != nil && !ioerrors.IsIdempotentSuccess(err) {
		return err
	}
	p.sm.ForceReclaim()
	telemetry.M().PortsActive.WithLabelValues("publisher").Dec()
	return nil
}

func (p *Publisher) State() State { return p.sm.Current() }
