package shmem

import (
	"sync"

	"github.com/ocx/iceoryx2/internal/ids"
	"github.com/ocx/iceoryx2/internal/ioerrors"
	"github.com/ocx/iceoryx2/internal/wireformat"
)

// RepublishFunc is invoked after a successful grow with the new segment's
// id, so the owning port can publish it in the service's dynamic config.
type RepublishFunc func(newSegment ids.SegmentId)

type generation struct {
	seg   *Segment
	inner Allocator
}

// Growable wraps a sequence of segment generations and, on OutOfMemory,
// maps a new larger segment under the configured AllocationStrategy:
// Static fails the loan, PowerOfTwo doubles capacity until
// the loan fits, BestFit grows to the exact size needed. A grow allocates
// a brand new shared-memory object rather than resizing in place, since
// other processes may already have the old segment mapped at a different
// virtual address — so a retired generation is kept
// alive, addressable by its own SegmentId, until every slot loaned from it
// has been released.
type Growable struct {
	mu        sync.Mutex
	prefix    string
	nextSeg   func() ids.SegmentId
	strategy  AllocationStrategy
	kind      wireformat.AllocatorKind
	current   ids.SegmentId
	gens      map[ids.SegmentId]*generation
	republish RepublishFunc
}

// NewGrowable creates the first (base) segment and wraps it.
func NewGrowable(prefix string, nextSeg func() ids.SegmentId, strategy AllocationStrategy, kind wireformat.AllocatorKind, slotSize, initialSlotCount uint32, republish RepublishFunc) (*Growable, error) {
	id := nextSeg()
	seg, err := CreateSegment(prefix, id, kind, slotSize, initialSlotCount)
	if err != nil {
		return nil, err
	}
	inner, err := newInner(kind, seg)
	if err != nil {
		return nil, err
	}
	return &Growable{
		prefix:    prefix,
		nextSeg:   nextSeg,
		strategy:  strategy,
		kind:      kind,
		current:   id,
		gens:      map[ids.SegmentId]*generation{id: {seg: seg, inner: inner}},
		republish: republish,
	}, nil
}

func newInner(kind wireformat.AllocatorKind, seg *Segment) (Allocator, error) {
	switch kind {
	case wireformat.AllocatorFixedPool:
		return NewFixedPool(seg), nil
	case wireformat.AllocatorBumpBestFit:
		return NewBumpBestFit(seg), nil
	default:
		return nil, ioerrors.New(ioerrors.InvalidQoS, "newInner", nil)
	}
}

// Loan tries the current generation first; on OutOfMemory it grows per the
// configured strategy and retries once against the new generation. The
// returned Slot is already tagged with the SegmentId it was loaned from
// (set by the inner FixedPool/BumpBestFit), so Growable satisfies the
// plain Allocator interface: a subscriber that attached before the grow
// still has everything it needs, from the slot alone, to address
// already-in-flight samples from a retired generation.
func (g *Growable) Loan(size uint32) (Slot, error) {
	g.mu.Lock()
	cur := g.gens[g.current]
	g.mu.Unlock()

	slot, err := cur.inner.Loan(size)
	if err == nil {
		return slot, nil
	}
	code, _ := ioerrors.CodeOf(err)
	if code != ioerrors.OutOfMemory || g.strategy == Static {
		return Slot{}, err
	}
	if err := g.grow(size); err != nil {
		return Slot{}, err
	}

	g.mu.Lock()
	cur = g.gens[g.current]
	g.mu.Unlock()
	return cur.inner.Loan(size)
}

func (g *Growable) grow(requiredSize uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	curGen := g.gens[g.current]
	h := curGen.seg.Header()
	newCount := h.SlotCount
	switch g.strategy {
	case PowerOfTwo:
		for newCount*h.SlotSize < requiredSize || newCount <= h.SlotCount {
			if newCount == 0 {
				newCount = 1
			} else {
				newCount *= 2
			}
		}
	case BestFit:
		needed := (requiredSize + h.SlotSize - 1) / h.SlotSize
		if needed <= h.SlotCount {
			needed = h.SlotCount + 1
		}
		newCount = needed
	default:
		return ioerrors.New(ioerrors.SegmentLimitReached, "Growable.grow", nil)
	}

	newID := g.nextSeg()
	newSeg, err := CreateSegment(g.prefix, newID, g.kind, h.SlotSize, newCount)
	if err != nil {
		return err
	}
	newInnerAlloc, err := newInner(g.kind, newSeg)
	if err != nil {
		newSeg.Close()
		return err
	}

	g.gens[newID] = &generation{seg: newSeg, inner: newInnerAlloc}
	g.current = newID

	if g.republish != nil {
		g.republish(newID)
	}
	return nil
}

// Release returns slot to the generation it was loaned from (slot.SegmentID).
// If that generation is retired (no longer current) and this was its last
// outstanding slot, its segment is unmapped and dropped — the backing
// file's removal is the registry's job once no port references it.
func (g *Growable) Release(slot Slot) error {
	g.mu.Lock()
	gen, ok := g.gens[slot.SegmentID]
	g.mu.Unlock()
	if !ok {
		return ioerrors.New(ioerrors.ServiceNotFound, "Growable.Release", nil)
	}
	if err := gen.inner.Release(slot); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if slot.SegmentID != g.current && gen.inner.InUse() == 0 {
		gen.seg.Close()
		delete(g.gens, slot.SegmentID)
	}
	return nil
}

// InUse sums outstanding slots across every live generation.
func (g *Growable) InUse() uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	var total uint32
	for _, gen := range g.gens {
		total += gen.inner.InUse()
	}
	return total
}

// CurrentSegment returns the id of the segment currently backing new
// loans, for a late-attaching subscriber that must map the latest
// generation.
func (g *Growable) CurrentSegment() ids.SegmentId {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// Segment returns the mapped Segment for id, so a subscriber can resolve a
// descriptor referencing a retired-but-still-live generation.
func (g *Growable) Segment(id ids.SegmentId) (*Segment, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	gen, ok := g.gens[id]
	if !ok {
		return nil, false
	}
	return gen.seg, true
}

var _ Allocator = (*Growable)(nil)
