package port

import (
	"github.com/ocx/iceoryx2/internal/ids"
	"github.com/ocx/iceoryx2/internal/ioerrors"
	"github.com/ocx/iceoryx2/internal/registry"
	"github.com/ocx/iceoryx2/internal/telemetry"
	"github.com/ocx/iceoryx2/internal/transport"
	"github.com/ocx/iceoryx2/internal/wireformat"
)

// Subscriber is the pub-sub pattern's receive-side port. It attaches to
// a Publisher's ring via its own Cursor, so a slow Subscriber never
// blocks the Publisher or other Subscribers (safe-overflow).
type Subscriber struct {
	id      ids.PortId
	svc     ids.ServiceId
	node    ids.NodeId
	pub     *Publisher
	cursor  *transport.Cursor
	backlog []wireformat.Descriptor
	dynCfg  *registry.DynamicConfig
	sm      *StateMachine
}

// NewSubscriber attaches to pub, replaying its current history snapshot
// before returning.
func NewSubscriber(node ids.NodeId, svc ids.ServiceId, pub *Publisher, dynCfg *registry.DynamicConfig, maxPorts int) (*Subscriber, error) {
	cursor, snapshot := pub.AttachSubscriberCursor()
	s := &Subscriber{
		id:      ids.NewPortId(svc),
		svc:     svc,
		node:    node,
		pub:     pub,
		cursor:  cursor,
		backlog: snapshot,
		dynCfg:  dynCfg,
		sm:      NewStateMachine(),
	}
	entry := wireformat.PortEntry{PortID: s.id, NodeID: node, Kind: wireformat.PortKindSubscriber}
	if err := dynCfg.Insert(entry, maxPorts); err != nil {
		return nil, err
	}
	if err := s.sm.Transition(Registered); err != nil {
		return nil, err
	}
	if err := s.sm.Transition(Active); err != nil {
		return nil, err
	}
	telemetry.M().PortsActive.WithLabelValues("subscriber").Inc()
	return s, nil
}

// AttachSubscriber attaches a Subscriber directly to ring without a live
// in-process Publisher reference — the path a Subscriber resolved from
// another process's DynamicConfig entry (by ring segment id) takes,
// rather than NewSubscriber's direct *Publisher handle. It starts from
// ring's current write index with no history backlog, since replay
// history lives only in the owning process's Publisher, and is not
// tracked by anySubscriberFull: a cross-process Subscriber attached this
// way never slows down a backpressured Publisher, it only risks the
// safe-overflow Lagged() loss every Subscriber can see.
func AttachSubscriber(node ids.NodeId, svc ids.ServiceId, ring *transport.Ring, dynCfg *registry.DynamicConfig, maxPorts int) (*Subscriber, error) {
	s := &Subscriber{
		id:     ids.NewPortId(svc),
		svc:    svc,
		node:   node,
		cursor: transport.NewCursor(ring, ring.WriteIndex()),
		dynCfg: dynCfg,
		sm:     NewStateMachine(),
	}
	entry := wireformat.PortEntry{PortID: s.id, NodeID: node, Kind: wireformat.PortKindSubscriber}
	if err := dynCfg.Insert(entry, maxPorts); err != nil {
		return nil, err
	}
	if err := s.sm.Transition(Registered); err != nil {
		return nil, err
	}
	if err := s.sm.Transition(Active); err != nil {
		return nil, err
	}
	telemetry.M().PortsActive.WithLabelValues("subscriber").Inc()
	return s, nil
}

func (s *Subscriber) ID() ids.PortId { return s.id }

// Receive returns the next sample descriptor: first drains the history
// replay backlog (oldest to newest), then the live ring. Its second
// return is false when nothing new is available — an empty subscription
// is absence, not an error.
func (s *Subscriber) Receive() (wireformat.Descriptor, bool) {
	if len(s.backlog) > 0 {
		d := s.backlog[0]
		s.backlog = s.backlog[1:]
		return d, true
	}
	return s.cursor.Next()
}

// Lagged reports how many samples this subscriber has lost to overflow
// since its last successful Receive.
func (s *Subscriber) Lagged() uint64 { return s.cursor.Lagged() }

func (s *Subscriber) Drain() error { return s.sm.Transition(Draining) }

func (s *Subscriber) Reclaim() error {
	if s.pub != nil {
		s.pub.DetachSubscriberCursor(s.cursor)
	}
	if err := s.dynCfg.Remove(s.id); err != nil && !ioerrors.IsIdempotentSuccess(err) {
		return err
	}
	s.sm.ForceReclaim()
	telemetry.M().PortsActive.WithLabelValues("subscriber").Dec()
	return nil
}

func (s *Subscriber) State() State { return s.sm.Current() }
