package iceoryx2

import (
	"context"

	"github.com/ocx/iceoryx2/internal/ids"
	"github.com/ocx/iceoryx2/internal/port"
	"github.com/ocx/iceoryx2/internal/registry"
)

// EventId identifies one notification channel within an EventService.
type EventId = port.EventId

// EventService is an opened event/notification service: an in-process fan
// out bus every Notifier/Listener pair created against it shares.
type EventService struct {
	node *Node
	svc  *registry.Service
	dyn  *registry.DynamicConfig
	cfg  ServiceConfig
	bus  *port.EventBus
}

// Event creates or opens an event service named name.
func (n *Node) Event(name string, cfg ServiceConfig) (*EventService, error) {
	desc := registry.ServiceDescriptor{Name: name, Pattern: "event", QoS: qosBytes(cfg)}
	svc, err := registry.CreateOrOpen(n.prefix, desc)
	if err != nil {
		return nil, err
	}
	dyn, err := registry.OpenDynamicConfig(n.prefix, svc.ID())
	if err != nil {
		return nil, err
	}
	return &EventService{node: n, svc: svc, dyn: dyn, cfg: cfg, bus: port.NewEventBus()}, nil
}

// ID returns the service's content-addressed id.
func (s *EventService) ID() ids.ServiceId { return s.svc.ID() }

// Notifier is the façade's send-side event handle.
type Notifier struct {
	port *port.Notifier
	node ids.NodeId
}

// CreateNotifier opens a new Notifier against the service and registers it
// with the process-wide death watch, so a Node.Reap that finds this
// Notifier's owning node dead raises EventNotifierDead on its listeners
// (the ProcessDied delivery of spec.md §4.C, via the "paired channel" of
// §4.D) even without the owning process's cooperation.
func (s *EventService) CreateNotifier() (*Notifier, error) {
	n, err := port.NewNotifier(s.node.ID(), s.svc.ID(), s.bus, s.dyn, s.cfg.MaxPorts)
	if err != nil {
		return nil, err
	}
	notifier := &Notifier{port: n, node: s.node.ID()}
	watch.register(notifier.node, n)
	return notifier, nil
}

func (n *Notifier) ID() ids.PortId    { return n.port.ID() }
func (n *Notifier) Notify(id EventId) { n.port.Notify(id) }

func (n *Notifier) Drop() error {
	watch.unregister(n.node, n.port)
	return n.port.Drop()
}

// Listener is the façade's receive-side event handle. It satisfies
// internal/waitset.Source so it can be attached directly to a WaitSet.
type Listener struct {
	port *port.Listener
	kind string
}

// CreateListener opens a new Listener attached to every id in eventIDs
// (at least one). Attaching to several ids lets a single Listener cover
// a whole channel rather than one EventId at a time.
func (s *EventService) CreateListener(eventIDs ...EventId) (*Listener, error) {
	l, err := port.NewListener(s.node.ID(), s.svc.ID(), s.bus, s.dyn, s.cfg.MaxPorts, eventIDs...)
	if err != nil {
		return nil, err
	}
	return &Listener{port: l, kind: "listener"}, nil
}

func (l *Listener) ID() ids.PortId { return l.port.ID() }

// WaitFor blocks until a notification arrives or ctx ends.
func (l *Listener) WaitFor(ctx context.Context) error { return l.port.WaitFor(ctx) }

// Poll reports whether a notification is already pending, implementing
// internal/waitset.Source so a Listener can be WaitSet.Attach-ed alongside
// deadline and liveness sources.
func (l *Listener) Poll() bool { return l.port.TryWait() }

// DrainAll returns every attached EventId with a notification pending
// right now, without blocking, consuming them — the non-blocking
// drain-all variant of spec.md §4.D (scenario S4).
func (l *Listener) DrainAll() []EventId { return l.port.DrainAll() }

// Kind labels this source for WaitSet telemetry.
func (l *Listener) Kind() string { return l.kind }

// Reclaim retires the listener.
func (l *Listener) Reclaim() error { return l.port.Reclaim() }
