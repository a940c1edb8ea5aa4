package iceoryx2

import (
	"github.com/ocx/iceoryx2/internal/ids"
	"github.com/ocx/iceoryx2/internal/ioerrors"
	"github.com/ocx/iceoryx2/internal/platform"
	"github.com/ocx/iceoryx2/internal/port"
	"github.com/ocx/iceoryx2/internal/registry"
	"github.com/ocx/iceoryx2/internal/shmem"
	"github.com/ocx/iceoryx2/internal/transport"
	"github.com/ocx/iceoryx2/internal/wireformat"
)

// RequestResponseService is an opened request/streaming-response service.
// Requests and responses are carried over separate growable allocators,
// matching the pattern's two independent channels.
type RequestResponseService struct {
	node *Node
	svc  *registry.Service
	dyn  *registry.DynamicConfig
	cfg  ServiceConfig

	requestAlloc  *shmem.Growable
	responseAlloc *shmem.Growable
}

// RequestResponse creates or opens a request/streaming-response service
// named name.
func (n *Node) RequestResponse(name string, cfg ServiceConfig) (*RequestResponseService, error) {
	desc := registry.ServiceDescriptor{Name: name, Pattern: "request-response", PayloadTypeName: cfg.PayloadTypeName, QoS: qosBytes(cfg)}
	svc, err := registry.CreateOrOpen(n.prefix, desc)
	if err != nil {
		return nil, err
	}
	dyn, err := registry.OpenDynamicConfig(n.prefix, svc.ID())
	if err != nil {
		return nil, err
	}

	reqAlloc, err := shmem.NewGrowable(n.prefix, segmentMinter(svc.ID()), cfg.AllocationStrategy,
		wireformat.AllocatorFixedPool, cfg.SlotSize, cfg.SlotCount, nil)
	if err != nil {
		return nil, err
	}
	respAlloc, err := shmem.NewGrowable(n.prefix, segmentMinter(svc.ID()), cfg.AllocationStrategy,
		wireformat.AllocatorFixedPool, cfg.SlotSize, cfg.SlotCount, nil)
	if err != nil {
		return nil, err
	}

	return &RequestResponseService{
		node: n, svc: svc, dyn: dyn, cfg: cfg,
		requestAlloc: reqAlloc, responseAlloc: respAlloc,
	}, nil
}

func (s *RequestResponseService) ID() ids.ServiceId { return s.svc.ID() }

func slotBytesFrom(alloc *shmem.Growable, slot shmem.Slot) ([]byte, error) {
	seg, ok := alloc.Segment(slot.SegmentID)
	if !ok {
		return nil, ioerrors.New(ioerrors.ServiceNotFound, "slotBytesFrom", nil)
	}
	return seg.SlotBytes(slot.Offset, slot.Size), nil
}

// Client is the façade's send side: it owns the request channel (mints
// its own request-carrying Publisher and ring) and a private response
// ring a Server streams into per request.
type Client struct {
	port     *port.Client
	svc      *RequestResponseService
	reqMem   *platform.SharedMemory
	respMem  *platform.SharedMemory
	respRing *transport.Ring
}

// CreateClient opens a new Client, minting both its request ring and its
// private response ring.
func (s *RequestResponseService) CreateClient() (*Client, error) {
	reqMem, reqRing, _, err := ringFile(s.node.prefix, s.svc.ID(), s.cfg.RingCapacity)
	if err != nil {
		return nil, err
	}
	respMem, respRing, _, err := ringFile(s.node.prefix, s.svc.ID(), s.cfg.RingCapacity)
	if err != nil {
		reqMem.Close()
		return nil, err
	}
	c, err := port.NewClient(s.node.ID(), s.svc.ID(), s.requestAlloc, reqRing, respRing, s.dyn, s.cfg.SafeOverflow, s.cfg.MaxPorts)
	if err != nil {
		reqMem.Close()
		respMem.Close()
		return nil, err
	}
	return &Client{port: c, svc: s, reqMem: reqMem, respMem: respMem, respRing: respRing}, nil
}

func (c *Client) ID() ids.PortId { return c.port.ID() }

// IsConnected reports whether the client's request port is still active.
func (c *Client) IsConnected() bool { return c.port.IsConnected() }

// SendRequest loans and sends a request payload, returning a
// PendingResponse the caller drains with Next.
func (c *Client) SendRequest(payload []byte) (*port.PendingResponse, error) {
	return c.port.SendRequest(uint32(len(payload)), func(slot shmem.Slot) error {
		buf, err := slotBytesFrom(c.svc.requestAlloc, slot)
		if err != nil {
			return err
		}
		copy(buf, payload)
		return nil
	})
}

// Reclaim retires the client and unmaps both its rings.
func (c *Client) Reclaim() error {
	if err := c.port.Reclaim(); err != nil {
		return err
	}
	if err := c.reqMem.Close(); err != nil {
		return err
	}
	return c.respMem.Close()
}

// Server is the façade's receive side: it attaches to exactly one
// Client's request channel (matching internal/port.NewServer's direct
// object-graph wiring — one Server per Client, not a fan-in of many) and
// streams zero or more responses per request back into whichever
// Client.SendRequest call the caller supplies.
type Server struct {
	port *port.Server
	svc  *RequestResponseService
}

// CreateServer attaches a new Server to client's request channel.
func (s *RequestResponseService) CreateServer(client *Client) (*Server, error) {
	srv, err := port.NewServer(s.node.ID(), s.svc.ID(), client.port.RequestPublisher(), s.responseAlloc, s.dyn, client.port.Tracker(), s.cfg.MaxPorts)
	if err != nil {
		return nil, err
	}
	return &Server{port: srv, svc: s}, nil
}

func (srv *Server) ID() ids.PortId { return srv.port.ID() }

// RequestHandle identifies one request a Server is actively streaming
// responses for, and carries the request's own payload.
type RequestHandle struct {
	seq     uint64
	payload []byte
}

// Payload returns the request's payload bytes.
func (h RequestHandle) Payload() []byte { return h.payload }

// ReceiveRequest returns the next pending request from client, beginning
// a streaming response the caller finishes with CompleteRequest. Its
// second return is false when no request is pending — an empty request
// channel is absence, not an error.
func (srv *Server) ReceiveRequest(client *Client) (RequestHandle, bool, error) {
	d, ok := srv.port.ReceiveRequest(client.respRing)
	if !ok {
		return RequestHandle{}, false, nil
	}
	slot := shmem.Slot{SegmentID: ids.SegmentId(d.SegmentID), Offset: uint32(d.Offset), Size: d.Size}
	buf, err := slotBytesFrom(srv.svc.requestAlloc, slot)
	if err != nil {
		return RequestHandle{}, false, err
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	_ = srv.svc.requestAlloc.Release(slot) // single consumer (this Server): safe to release once read
	return RequestHandle{seq: d.Seq, payload: out}, true, nil
}

// SendResponse streams one response payload back for an in-flight
// request. Calling it more than once per request streams multiple
// responses.
func (srv *Server) SendResponse(req RequestHandle, payload []byte) error {
	slot, err := srv.svc.responseAlloc.Loan(uint32(len(payload)))
	if err != nil {
		return err
	}
	buf, err := slotBytesFrom(srv.svc.responseAlloc, slot)
	if err != nil {
		return err
	}
	copy(buf, payload)
	return srv.port.SendResponse(req.seq, slot)
}

// CompleteRequest marks req as finished: no more responses will follow.
func (srv *Server) CompleteRequest(req RequestHandle) { srv.port.CompleteRequest(req.seq) }

// Reclaim retires the server.
func (srv *Server) Reclaim() error { return srv.port.Reclaim() }
