package port

import "sync"

// ResponseTracker is shared between a Client and the Server(s) attached
// to it so a Client's PendingResponse can answer is_connected() once the
// Server drops the matching ActiveRequest (spec.md §4.D, scenario S3),
// without the two sides exchanging anything over the response ring
// itself.
type ResponseTracker struct {
	mu   sync.Mutex
	done map[uint64]bool
}

func NewResponseTracker() *ResponseTracker {
	return &ResponseTracker{done: make(map[uint64]bool)}
}

// MarkDone records that reqSeq's ActiveRequest has been dropped: no more
// responses will ever arrive for it.
func (t *ResponseTracker) MarkDone(reqSeq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done[reqSeq] = true
}

// IsDone reports whether reqSeq's ActiveRequest has been dropped.
func (t *ResponseTracker) IsDone(reqSeq uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done[reqSeq]
}
