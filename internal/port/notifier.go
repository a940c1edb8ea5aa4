package port

import (
	"sync"

	"github.com/ocx/iceoryx2/internal/ids"
	"github.com/ocx/iceoryx2/internal/ioerrors"
	"github.com/ocx/iceoryx2/internal/registry"
	"github.com/ocx/iceoryx2/internal/telemetry"
	"github.com/ocx/iceoryx2/internal/wireformat"
)

// EventId identifies one notification channel within a service; a single Notifier can raise several distinct EventIds,
// each with its own set of Listeners.
type EventId uint32

// EventBus is the in-process fan-out every Notifier/Listener pair on a
// given service shares, narrowed from a general typed-event fan-out down
// to a single EventId signal — no payload, since an event here only ever
// carries "this id happened" plus the lifecycle notifications below.
type EventBus struct {
	mu   sync.Mutex
	subs map[EventId][]subEntry
}

// subEntry is one Listener's subscription to one EventId: ch is the
// per-id coalescing slot a drain-all reads from, wake is the (possibly
// shared, across several ids on the same Listener) channel a blocking
// wait selects on. wake == ch only for entries registered through
// subscribe; NewListener registers every id, even a single one, through
// subscribeWithWake with its own shared wake channel.
type subEntry struct {
	ch   chan struct{}
	wake chan struct{}
}

// NewEventBus allocates an empty fan-out bus for one event service. Every
// Notifier/Listener pair created against the same service must share the
// same bus instance.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[EventId][]subEntry)}
}

// subscribe registers a dedicated wait channel for a single-event
// Listener; waiting and draining use the same channel.
func (b *EventBus) subscribe(id EventId) chan struct{} {
	ch := make(chan struct{}, 1)
	b.addSub(id, ch, ch)
	return ch
}

// subscribeWithWake registers id under a Listener that also watches other
// ids: draining reads the returned per-id channel, but wake (shared
// across every id that Listener attached to) is what WaitFor blocks on.
func (b *EventBus) subscribeWithWake(id EventId, wake chan struct{}) chan struct{} {
	ch := make(chan struct{}, 1)
	b.addSub(id, ch, wake)
	return ch
}

func (b *EventBus) addSub(id EventId, ch, wake chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[id] = append(b.subs[id], subEntry{ch: ch, wake: wake})
}

func (b *EventBus) unsubscribe(id EventId, ch chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[id]
	for i, e := range subs {
		if e.ch == ch {
			b.subs[id] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

func (b *EventBus) notify(id EventId) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.subs[id] {
		select {
		case e.ch <- struct{}{}:
		default: // already pending, coalesce
		}
		if e.wake != e.ch {
			select {
			case e.wake <- struct{}{}:
			default:
			}
		}
	}
}

// Well-known lifecycle EventIds a Listener can attach to without
// coordinating a value out of band with its Notifier.
const (
	EventNotifierCreated EventId = iota
	EventNotifierDropped
	EventNotifierDead
	firstUserEventId
)

// Notifier is the send side of the event/notification pattern.
type Notifier struct {
	id     ids.PortId
	node   ids.NodeId
	bus    *EventBus
	dynCfg *registry.DynamicConfig
	sm     *StateMachine
}

func NewNotifier(node ids.NodeId, svc ids.ServiceId, bus *EventBus, dynCfg *registry.DynamicConfig, maxPorts int) (*Notifier, error) {
	n := &Notifier{id: ids.NewPortId(svc), node: node, bus: bus, dynCfg: dynCfg, sm: NewStateMachine()}
	entry := wireformat.PortEntry{PortID: n.id, NodeID: node, Kind: wireformat.PortKindNotifier}
	if err := dynCfg.Insert(entry, maxPorts); err != nil {
		return nil, err
	}
	if err := n.sm.Transition(Registered); err != nil {
		return nil, err
	}
	if err := n.sm.Transition(Active); err != nil {
		return nil, err
	}
	bus.notify(EventNotifierCreated)
	telemetry.M().PortsActive.WithLabelValues("notifier").Inc()
	return n, nil
}

func (n *Notifier) ID() ids.PortId { return n.id }

// Notify raises id for every attached Listener.
func (n *Notifier) Notify(id EventId) { n.bus.notify(id) }

func (n *Notifier) Drop() error {
	n.bus.notify(EventNotifierDropped)
	return n.reclaim()
}

// MarkDead is called by the registry's reaper when this Notifier's owning
// node is found dead, so attached Listeners can distinguish a clean Drop
// from a crash.
func (n *Notifier) MarkDead() {
	n.bus.notify(EventNotifierDead)
	n.sm.ForceReclaim()
}

func (n *Notifier) reclaim() error {
	if err := n.dynCfg.Remove(n.id); err != nil && !ioerrors.IsIdempotentSuccess(err) {
		return err
	}
	n.sm.ForceReclaim()
	telemetry.M().PortsActive.WithLabelValues("notifier").Dec()
	return nil
}
