package shmem

import (
	"sync/atomic"
	"unsafe"

	"github.com/ocx/iceoryx2/internal/ioerrors"
)

// emptyIndex marks "no slot" in a packed free-list head.
const emptyIndex = 0xFFFFFFFF

// FixedPool is the wait-free fixed-size-slot allocator: N equal-sized
// slots, O(1) loan via a lock-free free-list built from a CAS over a
// stamped head word (generation in the high 32 bits, slot index in the
// low 32 bits, defeating the ABA problem). The free-list "next" pointer
// is embedded in the slot's refcount field while the slot is free — the
// same 4 bytes serve two purposes depending on slot state.
type FixedPool struct {
	seg       *Segment
	slotSize  uint32
	slotCount uint32
}

// NewFixedPool wraps a freshly created segment, threading every slot onto
// the free list (slot i's embedded next-pointer is i+1, last slot points
// to emptyIndex).
func NewFixedPool(seg *Segment) *FixedPool {
	h := seg.Header()
	p := &FixedPool{seg: seg, slotSize: h.SlotSize, slotCount: h.SlotCount}
	for i := uint32(0); i < h.SlotCount; i++ {
		next := i + 1
		if next >= h.SlotCount {
			next = emptyIndex
		}
		p.setNext(i, next)
	}
	atomic.StoreUint64(seg.freeListHeadPtr(), pack(0, 0))
	return p
}

// OpenFixedPool wraps an already-initialised segment (this process did not
// create it).
func OpenFixedPool(seg *Segment) *FixedPool {
	h := seg.Header()
	return &FixedPool{seg: seg, slotSize: h.SlotSize, slotCount: h.SlotCount}
}

func pack(generation, index uint32) uint64 {
	return uint64(generation)<<32 | uint64(index)
}

func unpack(head uint64) (generation, index uint32) {
	return uint32(head >> 32), uint32(head)
}

func (p *FixedPool) slotHeaderPtr(index uint32) *uint32 {
	off := index * p.slotSize
	return (*uint32)(unsafe.Pointer(&p.seg.SlotBytes(off, p.slotSize)[0]))
}

func (p *FixedPool) setNext(index, next uint32) {
	atomic.StoreUint32(p.slotHeaderPtr(index), next)
}

func (p *FixedPool) getNext(index uint32) uint32 {
	return atomic.LoadUint32(p.slotHeaderPtr(index))
}

// Loan pops a slot off the free list. Wait-free: a single CAS either
// succeeds or another popper made progress, so this loop always
// terminates in a bounded number of iterations relative to contention.
func (p *FixedPool) Loan(size uint32) (Slot, error) {
	if size > p.slotSize {
		return Slot{}, ioerrors.New(ioerrors.ExceedsMaxSliceLen, "FixedPool.Loan", nil)
	}
	headPtr := p.seg.freeListHeadPtr()
	for {
		head := atomic.LoadUint64(headPtr)
		gen, index := unpack(head)
		if index == emptyIndex {
			return Slot{}, ioerrors.New(ioerrors.OutOfMemory, "FixedPool.Loan", nil)
		}
		next := p.getNext(index)
		newHead := pack(gen+1, next)
		if atomic.CompareAndSwapUint64(headPtr, head, newHead) {
			atomic.AddUint32(p.seg.inUseCountPtr(), 1)
			// Slot header's refcount field is about to become a real
			// refcount (internal/transport initialises it to 1 on loan);
			// clearing the stale free-list "next" value here keeps a
			// crashed reader that maps mid-transition from seeing garbage.
			p.setNext(index, 0)
			return Slot{SegmentID: p.seg.ID(), Offset: index * p.slotSize, Size: p.slotSize}, nil
		}
	}
}

// Release pushes a slot back onto the free list. Called only once the
// slot's refcount (internal/transport) has reached zero.
func (p *FixedPool) Release(slot Slot) error {
	index := slot.Offset / p.slotSize
	headPtr := p.seg.freeListHeadPtr()
	for {
		head := atomic.LoadUint64(headPtr)
		gen, curHeadIndex := unpack(head)
		p.setNext(index, curHeadIndex)
		newHead := pack(gen+1, index)
		if atomic.CompareAndSwapUint64(headPtr, head, newHead) {
			atomic.AddUint32(p.seg.inUseCountPtr(), ^uint32(0)) // -1
			return nil
		}
	}
}

func (p *FixedPool) InUse() uint32 {
	return atomic.LoadUint32(p.seg.inUseCountPtr())
}

var _ Allocator = (*FixedPool)(nil)
