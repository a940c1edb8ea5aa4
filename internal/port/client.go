package port

import (
	"github.com/ocx/iceoryx2/internal/ids"
	"github.com/ocx/iceoryx2/internal/ioerrors"
	"github.com/ocx/iceoryx2/internal/registry"
	"github.com/ocx/iceoryx2/internal/shmem"
	"github.com/ocx/iceoryx2/internal/telemetry"
	"github.com/ocx/iceoryx2/internal/transport"
	"github.com/ocx/iceoryx2/internal/wireformat"
)

// PendingResponse tracks one request's response ring until the caller
// drains it or abandons it.
type PendingResponse struct {
	cursor  *transport.Cursor
	seq     uint64
	tracker *ResponseTracker
}

// Next returns the next streamed response descriptor for this request,
// skipping responses on the shared ring whose Seq belongs to another
// request. Its second return is false when none has arrived yet.
func (p *PendingResponse) Next() (wireformat.Descriptor, bool) {
	for {
		d, ok := p.cursor.Next()
		if !ok {
			return d, false
		}
		if d.Seq == p.seq {
			return d, true
		}
	}
}

// IsConnected reports whether the Server side still considers this
// request active. It turns false once the Server calls CompleteRequest
// for this request's sequence number (spec.md §8 scenario S3) — a
// stronger, per-request signal than the Client's own port state.
func (p *PendingResponse) IsConnected() bool { return !p.tracker.IsDone(p.seq) }

// Client is the request/streaming-response pattern's send side: it loans and sends requests through a Publisher-shaped
// port and reads responses from one response Ring shared by all its
// requests, correlating each response to its request by sequence number.
type Client struct {
	id        ids.PortId
	node      ids.NodeId
	requests  *Publisher
	responses *transport.Ring
	dynCfg    *registry.DynamicConfig
	tracker   *ResponseTracker
	sm        *StateMachine
}

func NewClient(node ids.NodeId, svc ids.ServiceId, alloc shmem.Allocator, requestRing, responseRing *transport.Ring, dynCfg *registry.DynamicConfig, safeOverflow bool, maxPorts int) (*Client, error) {
	pub, err := NewPublisher(node, svc, alloc, requestRing, dynCfg, safeOverflow, 0, maxPorts)
	if err != nil {
		return nil, err
	}
	c := &Client{
		id:        ids.NewPortId(svc),
		node:      node,
		requests:  pub,
		responses: responseRing,
		dynCfg:    dynCfg,
		tracker:   NewResponseTracker(),
		sm:        NewStateMachine(),
	}
	entry := wireformat.PortEntry{PortID: c.id, NodeID: node, Kind: wireformat.PortKindClient}
	if err := dynCfg.Insert(entry, maxPorts); err != nil {
		return nil, err
	}
	if err := c.sm.Transition(Registered); err != nil {
		return nil, err
	}
	if err := c.sm.Transition(Active); err != nil {
		return nil, err
	}
	telemetry.M().PortsActive.WithLabelValues("client").Inc()
	return c, nil
}

func (c *Client) ID() ids.PortId { return c.id }

// RequestPublisher exposes the Publisher this Client sends requests
// through, so a Server can attach its request-receiving Subscriber to it.
func (c *Client) RequestPublisher() *Publisher { return c.requests }

// Tracker exposes the ResponseTracker a Server attached to this Client
// must mark requests done on, so PendingResponse.IsConnected reflects the
// Server's CompleteRequest calls.
func (c *Client) Tracker() *ResponseTracker { return c.tracker }

// SendRequest loans size bytes for the request payload, fills it via fill,
// sends it, and returns a PendingResponse seeded at the response ring's
// current write index so the Client only observes responses sent after
// this request; PendingResponse.Next additionally skips responses tagged
// with another request's sequence number, so an earlier in-flight
// request's responses are not misattributed to a later one.
func (c *Client) SendRequest(size uint32, fill func(shmem.Slot) error) (*PendingResponse, error) {
	slot, err := c.requests.Loan(size)
	if err != nil {
		return nil, err
	}
	if err := fill(slot); err != nil {
		_ = c.requests.Release(slot)
		return nil, err
	}
	seq, err := c.requests.Send(slot)
	if err != nil {
		_ = c.requests.Release(slot)
		return nil, err
	}
	return &PendingResponse{
		cursor:  transport.NewCursor(c.responses, c.responses.WriteIndex()),
		seq:     seq,
		tracker: c.tracker,
	}, nil
}

// IsConnected reports whether the request port is still active — a
// Client must not be used to send once its Server side is gone.
func (c *Client) IsConnected() bool { return c.requests.State() == Active }

func (c *Client) Reclaim() error {
	if err := c.requests.Reclaim(); err != nil {
		return err
	}
	if err := c.dynCfg.Remove(c.id); err != nil && !ioerrors.IsIdempotentSuccess(err) {
		return err
	}
	c.sm.ForceReclaim()
	telemetry.M().PortsActive.WithLabelValues("client").Dec()
	return nil
}

func (c *Client) State() State { return c.sm.Current() }
