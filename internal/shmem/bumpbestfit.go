package shmem

import (
	"sort"
	"sync"

	"github.com/ocx/iceoryx2/internal/ioerrors"
)

// BumpBestFit allocates variable-length slice payloads:
// a bump pointer services the common case, and freed regions are
// coalesced into a free list sorted by size for subsequent best-fit
// reuse. Unlike FixedPool's free list, region bookkeeping here is
// variable-sized and not embedded in the region itself, so this discipline
// is protected by a mutex rather than being lock-free — 
// only requires the fixed-pool and growable paths to be wait-free/
// lock-free.
type BumpBestFit struct {
	mu        sync.Mutex
	seg       *Segment
	capacity  uint32
	bump      uint32
	free      []region // sorted by size ascending
	inUse     uint32
}

type region struct {
	offset uint32
	size   uint32
}

// NewBumpBestFit wraps a segment whose slot array is treated as one
// contiguous capacity-byte arena (SlotCount is 1 and SlotSize is the
// arena size for this discipline).
func NewBumpBestFit(seg *Segment) *BumpBestFit {
	h := seg.Header()
	return &BumpBestFit{seg: seg, capacity: h.SlotSize * h.SlotCount}
}

func (p *BumpBestFit) Loan(size uint32) (Slot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx := p.findBestFit(size); idx >= 0 {
		r := p.free[idx]
		p.free = append(p.free[:idx], p.free[idx+1:]...)
		p.inUse++
		return Slot{SegmentID: p.seg.ID(), Offset: r.offset, Size: size}, nil
	}
	if p.bump+size <= p.capacity {
		off := p.bump
		p.bump += size
		p.inUse++
		return Slot{SegmentID: p.seg.ID(), Offset: off, Size: size}, nil
	}
	return Slot{}, ioerrors.New(ioerrors.OutOfMemory, "BumpBestFit.Loan", nil)
}

// findBestFit returns the index of the smallest free region that still
// fits size, or -1.
func (p *BumpBestFit) findBestFit(size uint32) int {
	i := sort.Search(len(p.free), func(i int) bool { return p.free[i].size >= size })
	if i < len(p.free) {
		return i
	}
	return -1
}

func (p *BumpBestFit) Release(slot Slot) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	r := region{offset: slot.Offset, size: slot.Size}
	i := sort.Search(len(p.free), func(i int) bool { return p.free[i].size >= r.size })
	p.free = append(p.free, region{})
	copy(p.free[i+1:], p.free[i:])
	p.free[i] = r
	p.inUse--
	p.coalesce()
	return nil
}

// coalesce merges adjacent free regions so a later large loan can reuse
// the combined span. Runs under p.mu.
func (p *BumpBestFit) coalesce() {
	if len(p.free) < 2 {
		return
	}
	byOffset := append([]region(nil), p.free...)
	sort.Slice(byOffset, func(i, j int) bool { return byOffset[i].offset < byOffset[j].offset })

	merged := make([]region, 0, len(byOffset))
	merged = append(merged, byOffset[0])
	for _, r := range byOffset[1:] {
		last := &merged[len(merged)-1]
		if last.offset+last.size == r.offset {
			last.size += r.size
		} else {
			merged = append(merged, r)
		}
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].size < merged[j].size })
	p.free = merged
}

func (p *BumpBestFit) InUse() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}

var _ Allocator = (*BumpBestFit)(nil)
