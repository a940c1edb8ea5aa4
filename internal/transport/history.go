package transport

import (
	"sync"

	"github.com/ocx/iceoryx2/internal/wireformat"
)

// History replays the last N descriptors published on a service to a
// newly attaching subscriber. It is
// meant to be driven from inside the same critical section the publisher
// uses to register new subscribers, so a subscriber's replay and any
// sample sent concurrently with its attach are never interleaved
// inconsistently.
type History struct {
	mu   sync.Mutex
	buf  []wireformat.Descriptor
	next int
	size int
}

// NewHistory allocates a replay buffer holding up to capacity entries.
// capacity of 0 disables history: Record and Snapshot are both no-ops.
func NewHistory(capacity int) *History {
	return &History{buf: make([]wireformat.Descriptor, capacity)}
}

// Record appends one published sample to the history, overwriting the
// oldest entry once the buffer is full.
func (h *History) Record(d wireformat.Descriptor) {
	if len(h.buf) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf[h.next] = d
	h.next = (h.next + 1) % len(h.buf)
	if h.size < len(h.buf) {
		h.size++
	}
}

// Snapshot returns up to the last `size` recorded samples in oldest-to-
// newest order, for a newly attaching subscriber.
func (h *History) Snapshot() []wireformat.Descriptor {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.size == 0 {
		return nil
	}
	out := make([]wireformat.Descriptor, 0, h.size)
	start := (h.next - h.size + len(h.buf)) % len(h.buf)
	for i := 0; i < h.size; i++ {
		out = append(out, h.buf[(start+i)%len(h.buf)])
	}
	return out
}
