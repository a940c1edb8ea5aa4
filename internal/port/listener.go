package port

import (
	"context"

	"github.com/ocx/iceoryx2/internal/ids"
	"github.com/ocx/iceoryx2/internal/ioerrors"
	"github.com/ocx/iceoryx2/internal/registry"
	"github.com/ocx/iceoryx2/internal/telemetry"
	"github.com/ocx/iceoryx2/internal/wireformat"
)

// Listener is the receive side of the event/notification pattern,
// attached to one or more EventIds. WaitFor/TryWait block on (or poll)
// whether any attached id has fired; DrainAll additionally identifies
// which ones did, for the non-blocking drain-all variant of spec.md
// §4.D.
type Listener struct {
	id     ids.PortId
	node   ids.NodeId
	bus    *EventBus
	wake   chan struct{}
	perID  map[EventId]chan struct{}
	dynCfg *registry.DynamicConfig
	sm     *StateMachine
}

// NewListener opens a Listener attached to every id in eventIDs (at least
// one). A notification on any attached id unblocks WaitFor/TryWait;
// DrainAll reports exactly which ones fired since the last drain.
func NewListener(node ids.NodeId, svc ids.ServiceId, bus *EventBus, dynCfg *registry.DynamicConfig, maxPorts int, eventIDs ...EventId) (*Listener, error) {
	l := &Listener{
		id:     ids.NewPortId(svc),
		node:   node,
		bus:    bus,
		wake:   make(chan struct{}, 1),
		perID:  make(map[EventId]chan struct{}, len(eventIDs)),
		dynCfg: dynCfg,
		sm:     NewStateMachine(),
	}
	for _, eid := range eventIDs {
		l.perID[eid] = bus.subscribeWithWake(eid, l.wake)
	}
	entry := wireformat.PortEntry{PortID: l.id, NodeID: node, Kind: wireformat.PortKindListener}
	if err := dynCfg.Insert(entry, maxPorts); err != nil {
		return nil, err
	}
	if err := l.sm.Transition(Registered); err != nil {
		return nil, err
	}
	if err := l.sm.Transition(Active); err != nil {
		return nil, err
	}
	telemetry.M().PortsActive.WithLabelValues("listener").Inc()
	return l, nil
}

func (l *Listener) ID() ids.PortId { return l.id }

// WaitFor blocks until any attached EventId fires or ctx ends.
func (l *Listener) WaitFor(ctx context.Context) error {
	select {
	case <-l.wake:
		telemetry.M().WaitSetWakeups.WithLabelValues("listener").Inc()
		return nil
	case <-ctx.Done():
		return ioerrors.New(ioerrors.StopRequested, "Listener.WaitFor", ctx.Err())
	}
}

// TryWait reports whether a notification on any attached id is already
// pending, without blocking.
func (l *Listener) TryWait() bool {
	select {
	case <-l.wake:
		return true
	default:
		return false
	}
}

// DrainAll returns the set of attached EventIds that have a pending
// notification, consuming them (and any outstanding wake signal) so a
// subsequent WaitFor blocks until something new arrives. Order is
// unspecified — callers that need the input set, not a sequence, per
// spec.md §8 scenario S4.
func (l *Listener) DrainAll() []EventId {
	var fired []EventId
	for id, ch := range l.perID {
		select {
		case <-ch:
			fired = append(fired, id)
		default:
		}
	}
	select {
	case <-l.wake:
	default:
	}
	return fired
}

func (l *Listener) Reclaim() error {
	for id, ch := range l.perID {
		l.bus.unsubscribe(id, ch)
	}
	if err := l.dynCfg.Remove(l.id); err != nil && !ioerrors.IsIdempotentSuccess(err) {
		return err
	}
	l.sm.ForceReclaim()
	telemetry.M().PortsActive.WithLabelValues("listener").Dec()
	return nil
}

func (l *Listener) State() State { return l.sm.Current() }
