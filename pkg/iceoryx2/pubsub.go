package iceoryx2

import (
	"sync"

	"github.com/ocx/iceoryx2/internal/ids"
	"github.com/ocx/iceoryx2/internal/ioerrors"
	"github.com/ocx/iceoryx2/internal/platform"
	"github.com/ocx/iceoryx2/internal/port"
	"github.com/ocx/iceoryx2/internal/registry"
	"github.com/ocx/iceoryx2/internal/shmem"
	"github.com/ocx/iceoryx2/internal/transport"
	"github.com/ocx/iceoryx2/internal/wireformat"
)

// PublishSubscribeService is an opened publish-subscribe service: its
// payload data segment (a shmem.Growable so a burst of traffic grows
// capacity rather than failing) is shared by every Publisher created
// against it.
type PublishSubscribeService struct {
	node *Node
	svc  *registry.Service
	dyn  *registry.DynamicConfig
	cfg  ServiceConfig

	alloc *shmem.Growable

	mu       sync.Mutex
	subCount int
	livePubs []ids.PortId
	pending  map[uint64]pendingSample
}

type pendingSample struct {
	slot shmem.Slot
	ref  *transport.SlotRefCounter
}

// PublishSubscribe creates or opens a publish-subscribe service named
// name under cfg's quality of service. Two calls with the same name and
// PayloadTypeName resolve to the same underlying service.
func (n *Node) PublishSubscribe(name string, cfg ServiceConfig) (*PublishSubscribeService, error) {
	desc := registry.ServiceDescriptor{
		Name:            name,
		Pattern:         "pub-sub",
		PayloadTypeName: cfg.PayloadTypeName,
		QoS:             qosBytes(cfg),
	}
	svc, err := registry.CreateOrOpen(n.prefix, desc)
	if err != nil {
		return nil, err
	}
	dyn, err := registry.OpenDynamicConfig(n.prefix, svc.ID())
	if err != nil {
		return nil, err
	}

	s := &PublishSubscribeService{
		node:    n,
		svc:     svc,
		dyn:     dyn,
		cfg:     cfg,
		pending: make(map[uint64]pendingSample),
	}
	alloc, err := shmem.NewGrowable(n.prefix, segmentMinter(svc.ID()), cfg.AllocationStrategy,
		wireformat.AllocatorFixedPool, cfg.SlotSize, cfg.SlotCount, s.onRepublish)
	if err != nil {
		return nil, err
	}
	s.alloc = alloc
	return s, nil
}

// ID returns the service's content-addressed id.
func (s *PublishSubscribeService) ID() ids.ServiceId { return s.svc.ID() }

// onRepublish is Growable's RepublishFunc: every live publisher's
// dynamic-config entry is stamped with the new generation's segment id,
// so a subscriber attaching (or re-)reading the table after the grow can
// resolve it. It is bound as a method value at construction time, before
// s.alloc exists, and reads s.livePubs fresh on each call rather than
// capturing it — the only way to break the chicken-and-egg ordering
// between Growable's constructor and the ports it will end up serving.
func (s *PublishSubscribeService) onRepublish(newSeg ids.SegmentId) {
	s.mu.Lock()
	pubs := append([]ids.PortId(nil), s.livePubs...)
	s.mu.Unlock()
	for _, p := range pubs {
		_ = s.dyn.UpdateSegment(p, newSeg)
	}
}

func (s *PublishSubscribeService) slotBytes(slot shmem.Slot) ([]byte, error) {
	seg, ok := s.alloc.Segment(slot.SegmentID)
	if !ok {
		return nil, ioerrors.New(ioerrors.ServiceNotFound, "PublishSubscribeService.slotBytes", nil)
	}
	return seg.SlotBytes(slot.Offset, slot.Size), nil
}

// registerSample seeds slot's refcount from the subscriber count observed
// at send time. A sample sent with zero attached subscribers is released
// immediately — nothing will ever claim it.
//
// A sample lost to ring overflow before a lagging subscriber's cursor
// ever reaches it never has its hold released by that subscriber (Cursor
// skips forward past it silently); under sustained overflow against a
// slow subscriber this means the allocator only ever grows and never
// shrinks back. Accepted for this core: the allocator disciplines are
// built to grow, and a bound on live generations is a hardening
// concern, not a correctness one.
func (s *PublishSubscribeService) registerSample(seq uint64, slot shmem.Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subCount == 0 {
		_ = s.alloc.Release(slot)
		return
	}
	ref := &transport.SlotRefCounter{}
	for i := 0; i < s.subCount; i++ {
		ref.Hold()
	}
	s.pending[seq] = pendingSample{slot: slot, ref: ref}
}

func (s *PublishSubscribeService) releaseSample(seq uint64) {
	s.mu.Lock()
	p, ok := s.pending[seq]
	if !ok {
		s.mu.Unlock()
		return
	}
	last := p.ref.Release()
	if last {
		delete(s.pending, seq)
	}
	s.mu.Unlock()
	if last {
		_ = s.alloc.Release(p.slot)
	}
}

// Publisher is the façade's send-side pub-sub handle.
type Publisher struct {
	port   *port.Publisher
	svc    *PublishSubscribeService
	ring   *platform.SharedMemory
	ringID ids.SegmentId
}

// CreatePublisher opens a new Publisher against the service, backed by a
// freshly mapped shared-memory ring. The ring's content-addressed segment
// id is published into the service's DynamicConfig so a Subscriber can
// resolve it without a live reference to this Publisher.
func (s *PublishSubscribeService) CreatePublisher() (*Publisher, error) {
	mem, ring, ringID, err := ringFile(s.node.prefix, s.svc.ID(), s.cfg.RingCapacity)
	if err != nil {
		return nil, err
	}
	p, err := port.NewPublisher(s.node.ID(), s.svc.ID(), s.alloc, ring, s.dyn, s.cfg.SafeOverflow, s.cfg.HistorySize, s.cfg.MaxPorts)
	if err != nil {
		mem.Close()
		return nil, err
	}
	_ = s.dyn.UpdateSegment(p.ID(), s.alloc.CurrentSegment())
	_ = s.dyn.UpdateRing(p.ID(), ringID)

	s.mu.Lock()
	s.livePubs = append(s.livePubs, p.ID())
	s.mu.Unlock()

	return &Publisher{port: p, svc: s, ring: mem, ringID: ringID}, nil
}

func (p *Publisher) ID() ids.PortId { return p.port.ID() }

// LoanAndSend loans len(payload) bytes from the service's allocator,
// copies payload into the slot, and publishes it to every attached
// Subscriber.
//
// Under the service's SafeOverflow=false QoS, Send rejects with
// ioerrors.Backpressured when the slowest attached Subscriber hasn't
// drained enough of the ring to make room; LoanAndSend releases the slot
// back to the allocator in that case rather than leaking it.
func (p *Publisher) LoanAndSend(payload []byte) error {
	slot, err := p.port.Loan(uint32(len(payload)))
	if err != nil {
		return err
	}
	buf, err := p.svc.slotBytes(slot)
	if err != nil {
		_ = p.port.Release(slot)
		return err
	}
	copy(buf, payload)

	seq, err := p.port.Send(slot)
	if err != nil {
		_ = p.port.Release(slot)
		return err
	}
	p.svc.registerSample(seq, slot)
	return nil
}

// Reclaim retires the publisher and unmaps its ring.
func (p *Publisher) Reclaim() error {
	if err := p.port.Reclaim(); err != nil {
		return err
	}
	return p.ring.Close()
}

// Subscriber is the façade's receive-side pub-sub handle.
type Subscriber struct {
	port *port.Subscriber
	svc  *PublishSubscribeService
	ring *platform.SharedMemory // non-nil only for a cross-process attach; CreateSubscriberFrom owns unmapping it
}

// CreateSubscriber attaches a new Subscriber to pub, replaying pub's
// current history snapshot before returning. Use this from the same
// process that created pub — it gets history replay and participates in
// pub's backpressure tracking, neither of which a cross-process attach
// (CreateSubscriberFrom) can offer.
func (s *PublishSubscribeService) CreateSubscriber(pub *Publisher) (*Subscriber, error) {
	sub, err := port.NewSubscriber(s.node.ID(), s.svc.ID(), pub.port, s.dyn, s.cfg.MaxPorts)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.subCount++
	s.mu.Unlock()
	return &Subscriber{port: sub, svc: s}, nil
}

// CreateSubscriberFrom attaches a new Subscriber with no in-process handle
// to any Publisher object: it resolves a live publisher's ring by
// scanning the service's DynamicConfig for a PortKindPublisher entry and
// reopening that ring's content-addressed segment file, so a Subscriber
// created in a separate process from the one that called CreatePublisher
// can still receive its samples. Like Server/Client's one-attachment
// object graph elsewhere in this package, it resolves to the first live
// publisher found — a service with more than one concurrent Publisher
// needs its Subscribers to pick a specific one via CreateSubscriber
// instead. It starts from the ring's current write index with no replay
// backlog and does not participate in that Publisher's backpressure
// accounting — see internal/port.AttachSubscriber.
func (s *PublishSubscribeService) CreateSubscriberFrom() (*Subscriber, error) {
	entries, err := s.dyn.List()
	if err != nil {
		return nil, err
	}
	var ringID ids.SegmentId
	found := false
	for _, e := range entries {
		if e.Kind == wireformat.PortKindPublisher {
			ringID = ids.SegmentId(e.RingID)
			found = true
			break
		}
	}
	if !found {
		return nil, ioerrors.New(ioerrors.ServiceNotFound, "PublishSubscribeService.CreateSubscriberFrom", nil)
	}

	mem, ring, err := openRing(s.node.prefix, ringID, s.cfg.RingCapacity)
	if err != nil {
		return nil, err
	}
	sub, err := port.AttachSubscriber(s.node.ID(), s.svc.ID(), ring, s.dyn, s.cfg.MaxPorts)
	if err != nil {
		mem.Close()
		return nil, err
	}
	s.mu.Lock()
	s.subCount++
	s.mu.Unlock()
	return &Subscriber{port: sub, svc: s, ring: mem}, nil
}

func (sub *Subscriber) ID() ids.PortId { return sub.port.ID() }

// Receive returns the next sample's payload as a freshly copied slice, or
// (nil, nil) if nothing new has arrived yet — an empty subscription is
// absence, not an error.
func (sub *Subscriber) Receive() ([]byte, error) {
	d, ok := sub.port.Receive()
	if !ok {
		return nil, nil
	}
	slot := shmem.Slot{SegmentID: ids.SegmentId(d.SegmentID), Offset: uint32(d.Offset), Size: d.Size}
	buf, err := sub.svc.slotBytes(slot)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	sub.svc.releaseSample(d.Seq)
	return out, nil
}

// Lagged reports how many samples this subscriber has lost to overflow.
func (sub *Subscriber) Lagged() uint64 { return sub.port.Lagged() }

// Reclaim retires the subscriber and, for a cross-process attach, unmaps
// its ring.
func (sub *Subscriber) Reclaim() error {
	sub.svc.mu.Lock()
	sub.svc.subCount--
	sub.svc.mu.Unlock()
	if err := sub.port.Reclaim(); err != nil {
		return err
	}
	if sub.ring != nil {
		return sub.ring.Close()
	}
	return nil
}
