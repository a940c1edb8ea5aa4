// Package waitset implements the multi-source demultiplexer:
// a single-threaded WaitSet that polls a set of attachments
// (listeners, deadlines, liveness guards) and dispatches ready ones to a
// caller-supplied callback.
package waitset

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ocx/iceoryx2/internal/ioerrors"
	"github.com/ocx/iceoryx2/internal/telemetry"
)

// AttachmentId identifies one source attached to a WaitSet.
type AttachmentId uint64

// Source is anything a WaitSet can wait on: a Listener's TryWait, a
// deadline timer, a liveness guard. Poll must never block — the WaitSet's
// single poll loop is what provides blocking semantics, not the sources
// themselves.
type Source interface {
	// Poll reports whether this source has a pending event to deliver.
	Poll() bool
	// Kind labels this source for telemetry.
	Kind() string
}

// Guard is returned by Attach and detaches the source when closed.
type Guard struct {
	ws *WaitSet
	id AttachmentId
}

func (g Guard) Close() { g.ws.detach(g.id) }

// WaitSet is the core's event demultiplexer. It is not
// safe for concurrent WaitAndProcess calls — only one poll loop may run
// at a time, enforced by running flag below (ReentrantInvocation).
type WaitSet struct {
	mu      sync.Mutex
	sources map[AttachmentId]Source
	nextID  uint64
	running atomic.Bool
	stop    atomic.Bool
	poll    *pollLimiter
}

// New creates a WaitSet that polls its attachments at most pollHz times
// per second. A pollHz of 0 uses defaultPollHz.
func New(pollHz float64) *WaitSet {
	return &WaitSet{sources: make(map[AttachmentId]Source), poll: newPollLimiter(pollHz)}
}

// Attach registers src and returns a Guard that detaches it on Close.
func (ws *WaitSet) Attach(src Source) Guard {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	id := AttachmentId(atomic.AddUint64(&ws.nextID, 1))
	ws.sources[id] = src
	return Guard{ws: ws, id: id}
}

func (ws *WaitSet) detach(id AttachmentId) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	delete(ws.sources, id)
}

// RequestStop asks the running WaitAndProcess loop to return after its
// current pass, without requiring the caller to plumb a ctx cancellation
// through every attached Source.
func (ws *WaitSet) RequestStop() { ws.stop.Store(true) }

// WaitAndProcess runs the poll loop: each pass, every attached source is
// polled in a stable order (by AttachmentId) and ready ones are handed to
// callback. The loop exits when ctx is done, RequestStop was called, or
// callback returns a non-nil error.
//
// Calling WaitAndProcess while another call is already running on the
// same WaitSet returns ReentrantInvocation rather than deadlocking or
// corrupting the attachment table.
func (ws *WaitSet) WaitAndProcess(ctx context.Context, callback func(AttachmentId) error) error {
	if !ws.running.CompareAndSwap(false, true) {
		return ioerrors.New(ioerrors.ReentrantInvocation, "WaitSet.WaitAndProcess", nil)
	}
	defer ws.running.Store(false)
	defer ws.stop.Store(false)

	for {
		if ctx.Err() != nil {
			return ioerrors.New(ioerrors.StopRequested, "WaitSet.WaitAndProcess", ctx.Err())
		}
		if ws.stop.Load() {
			return ioerrors.New(ioerrors.StopRequested, "WaitSet.WaitAndProcess", nil)
		}
		if err := ws.poll.limiter.Wait(ctx); err != nil {
			return ioerrors.New(ioerrors.StopRequested, "WaitSet.WaitAndProcess", err)
		}

		ready := ws.pollOnce()
		for _, id := range ready {
			telemetry.M().WaitSetWakeups.WithLabelValues(ws.kindOf(id)).Inc()
			if err := callback(id); err != nil {
				return fmt.Errorf("waitset: callback for attachment %d: %w", id, err)
			}
		}
	}
}

func (ws *WaitSet) pollOnce() []AttachmentId {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ids := make([]AttachmentId, 0, len(ws.sources))
	for id := range ws.sources {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var ready []AttachmentId
	for _, id := range ids {
		if ws.sources[id].Poll() {
			ready = append(ready, id)
		}
	}
	return ready
}

func (ws *WaitSet) kindOf(id AttachmentId) string {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if src, ok := ws.sources[id]; ok {
		return src.Kind()
	}
	return "unknown"
}
