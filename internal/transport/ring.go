// Package transport implements the zero-copy sample transport:
// a single-producer/multi-subscriber descriptor ring backed
// by shared memory, safe-overflow semantics, and bounded history replay.
package transport

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ocx/iceoryx2/internal/wireformat"
)

// Ring is a fixed-capacity descriptor ring mapped directly onto shared
// memory: one publisher writes descriptors, subscribers each track their
// own read cursor independently by comparing against WriteIndex, so a
// slow subscriber never blocks the publisher — it just risks being
// overtaken (safe-overflow).
type Ring struct {
	base []byte
}

// NewRing wraps base, a byte slice whose first RingHeaderSize bytes are
// the header immediately followed by capacity descriptor slots. base must
// already be sized for capacity (header + capacity*DescriptorSize) and
// live for as long as the Ring is used — it is typically a view into a
// mapped shared-memory segment (internal/shmem.Segment).
func NewRing(base []byte, capacity uint32) *Ring {
	return &Ring{base: base}
}

// InitRing formats a freshly mapped, zeroed region as an empty ring of the
// given capacity.
func InitRing(base []byte, capacity uint32) {
	h := wireformat.RingHeader{Capacity: capacity}
	copy(base[:wireformat.RingHeaderSize], h.Encode())
}

func (r *Ring) writeIndexPtr() *uint64    { return (*uint64)(unsafe.Pointer(&r.base[0])) }
func (r *Ring) readIndexPtr() *uint64     { return (*uint64)(unsafe.Pointer(&r.base[8])) }
func (r *Ring) overflowCountPtr() *uint64 { return (*uint64)(unsafe.Pointer(&r.base[16])) }

func (r *Ring) capacity() uint32 {
	return wireformat.DecodeRingHeader(r.base[:wireformat.RingHeaderSize]).Capacity
}

// Capacity returns the ring's fixed slot count, for callers (Publisher)
// deciding whether a tracked reader is about to be overtaken.
func (r *Ring) Capacity() uint32 { return r.capacity() }

func (r *Ring) slot(i uint64) []byte {
	cap64 := uint64(r.capacity())
	off := wireformat.RingHeaderSize + int(i%cap64)*wireformat.DescriptorSize
	return r.base[off : off+wireformat.DescriptorSize]
}

// Push writes d into the next slot and publishes it by bumping
// WriteIndex, release-ordered so any subscriber observing the new
// WriteIndex is guaranteed to see the fully-written descriptor
// ("payload write happens-before descriptor publish").
//
// Push itself always writes: it is the ring's unconditional primitive.
// Whether writing is safe to do at all — whether a tracked reader would be
// overtaken — is the caller's decision. Under the safe-overflow policy the
// caller pushes anyway and passes overflowed=true so OverflowCount
// reflects the loss; under the backpressure policy the caller checks
// Capacity against a Cursor's Position first and skips the Push entirely,
// reporting Backpressured instead (see internal/port.Publisher.Send).
func (r *Ring) Push(d wireformat.Descriptor, overflowed bool) {
	w := atomic.LoadUint64(r.writeIndexPtr())
	d.Encode(r.slot(w))
	atomic.StoreUint64(r.writeIndexPtr(), w+1)
	if overflowed {
		atomic.AddUint64(r.overflowCountPtr(), 1)
	}
}

// WriteIndex returns the current publish cursor.
func (r *Ring) WriteIndex() uint64 { return atomic.LoadUint64(r.writeIndexPtr()) }

// OverflowCount returns the number of Push calls that reported an
// overflow since the ring was created.
func (r *Ring) OverflowCount() uint64 { return atomic.LoadUint64(r.overflowCountPtr()) }

// ReadAt returns the descriptor at logical index i, which must satisfy
// i < WriteIndex(). Callers are responsible for recognizing when i has
// fallen more than Capacity behind WriteIndex (lost to overflow) before
// trusting the slot's content.
func (r *Ring) ReadAt(i uint64) wireformat.Descriptor {
	return wireformat.DecodeDescriptor(r.slot(i))
}

// Cursor is one subscriber's independent read position into a Ring. Its
// progress is also published to the ring's shared ReadIndex field as a
// diagnostic watermark — with multiple subscribers this is the most
// recently advanced cursor, not a minimum, so it is advisory only and
// never consulted for correctness.
type Cursor struct {
	mu   sync.Mutex
	ring *Ring
	next uint64
}

func NewCursor(ring *Ring, start uint64) *Cursor {
	return &Cursor{ring: ring, next: start}
}

// Lagged reports how many descriptors between next and the ring's current
// WriteIndex have already been overwritten, per Capacity.
func (c *Cursor) Lagged() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := c.ring.WriteIndex()
	cap64 := uint64(c.ring.capacity())
	if w-c.next > cap64 {
		return w - c.next - cap64
	}
	return 0
}

// Position returns the cursor's next unread logical index, for a
// Publisher checking whether this reader is about to be overtaken before
// it pushes another sample under a backpressure policy.
func (c *Cursor) Position() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}

// Next returns the next unread descriptor and advances the cursor. Its
// second return is false when nothing new has been published yet — an
// empty ring is absence, not an error.
func (c *Cursor) Next() (wireformat.Descriptor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := c.ring.WriteIndex()
	if c.next >= w {
		return wireformat.Descriptor{}, false
	}
	cap64 := uint64(c.ring.capacity())
	if w-c.next > cap64 {
		// Skip samples lost to overflow rather than return stale slot content.
		c.next = w - cap64
	}
	d := c.ring.ReadAt(c.next)
	c.next++
	atomic.StoreUint64(c.ring.readIndexPtr(), c.next)
	return d, true
}
