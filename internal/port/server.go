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

// ActiveRequest tracks one in-flight request a Server is streaming
// responses for.
type ActiveRequest struct {
	Seq       uint64
	Responses *transport.Ring
}

// Server is the request/streaming-response pattern's receive side. It receives requests over a Subscriber-shaped ring and
// sends zero or more responses per request over a per-client response
// ring, mirroring the publisher/subscriber machinery rather than
// introducing a second transport.
type Server struct {
	id       ids.PortId
	node     ids.NodeId
	requests *Subscriber
	alloc    shmem.Allocator
	active   map[uint64]*ActiveRequest
	dynCfg   *registry.DynamicConfig
	tracker  *ResponseTracker
	sm       *StateMachine
}

// NewServer attaches to requestPub's request stream and shares tracker
// with the owning Client, so CompleteRequest can flip that Client's
// PendingResponse.IsConnected to false (pass Client.Tracker()).
func NewServer(node ids.NodeId, svc ids.ServiceId, requestPub *Publisher, alloc shmem.Allocator, dynCfg *registry.DynamicConfig, tracker *ResponseTracker, maxPorts int) (*Server, error) {
	sub, err := NewSubscriber(node, svc, requestPub, dynCfg, maxPorts)
	if err != nil {
		return nil, err
	}
	s := &Server{
		id:       ids.NewPortId(svc),
		node:     node,
		requests: sub,
		alloc:    alloc,
		active:   make(map[uint64]*ActiveRequest),
		dynCfg:   dynCfg,
		tracker:  tracker,
		sm:       NewStateMachine(),
	}
	entry := wireformat.PortEntry{PortID: s.id, NodeID: node, Kind: wireformat.PortKindServer}
	if err := dynCfg.Insert(entry, maxPorts); err != nil {
		return nil, err
	}
	if err := s.sm.Transition(Registered); err != nil {
		return nil, err
	}
	if err := s.sm.Transition(Active); err != nil {
		return nil, err
	}
	telemetry.M().PortsActive.WithLabelValues("server").Inc()
	return s, nil
}

func (s *Server) ID() ids.PortId { return s.id }

// ReceiveRequest returns the next pending request descriptor, beginning
// an ActiveRequest the server must eventually call CompleteRequest on.
// Its second return is false when no request is pending.
func (s *Server) ReceiveRequest(responses *transport.Ring) (wireformat.Descriptor, bool) {
	d, ok := s.requests.Receive()
	if !ok {
		return wireformat.Descriptor{}, false
	}
	s.active[d.Seq] = &ActiveRequest{Seq: d.Seq, Responses: responses}
	return d, true
}

// SendResponse streams one response for an in-flight request. Calling it
// more than once per request is how a Server streams multiple responses;
// CompleteRequest marks no more will follow.
func (s *Server) SendResponse(reqSeq uint64, slot shmem.Slot) error {
	req, ok := s.active[reqSeq]
	if !ok {
		return ioerrors.New(ioerrors.ServiceNotFound, "Server.SendResponse", nil)
	}
	req.Responses.Push(transport.DescriptorFor(slot, reqSeq), false)
	return nil
}

// CompleteRequest retires the ActiveRequest, freeing the server to track
// a new one under the same sequence number once it wraps, and marks the
// request done on the shared tracker so the Client's PendingResponse
// reports IsConnected() == false from this point on.
func (s *Server) CompleteRequest(reqSeq uint64) {
	delete(s.active, reqSeq)
	if s.tracker != nil {
		s.tracker.MarkDone(reqSeq)
	}
}

func (s *Server) Reclaim() error {
	if err := s.requests.Reclaim(); err != nil {
		return err
	}
	if err := s.dynCfg.Remove(s.id); err != nil && !ioerrors.IsIdempotentSuccess(err) {
		return err
	}
	s.sm.ForceReclaim()
	telemetry.M().PortsActive.WithLabelValues("server").Dec()
	return nil
}

func (s *Server) State() State { return s.sm.Current() }
