// Package shmem implements the three shared-memory allocation disciplines
// : a wait-free fixed pool, a bump+best-fit allocator
// for variable-length slice payloads, and a growable wrapper that resizes
// a segment under a configurable AllocationStrategy.
package shmem

import (
	"github.com/ocx/iceoryx2/internal/ids"
	"github.com/ocx/iceoryx2/internal/ioerrors"
)

// AllocationStrategy governs how a growable allocator reacts to a loan
// that exceeds currently mapped capacity.
type AllocationStrategy int

const (
	// Static fails the loan rather than growing.
	Static AllocationStrategy = iota
	// PowerOfTwo doubles capacity until the loan fits.
	PowerOfTwo
	// BestFit grows to the exact size the loan needs.
	BestFit
)

func ParseAllocationStrategy(s string) (AllocationStrategy, error) {
	switch s {
	case "Static":
		return Static, nil
	case "PowerOfTwo":
		return PowerOfTwo, nil
	case "BestFit":
		return BestFit, nil
	default:
		return Static, ioerrors.New(ioerrors.InvalidQoS, "ParseAllocationStrategy", nil)
	}
}

// Slot is a loaned region: the segment it was loaned from, its byte
// offset within that segment, and the size actually reserved for it.
// Callers address payload bytes exclusively by (segment id, offset) —
// never by pointer — so a Slot alone is enough to resolve the payload
// from any process's own mapping of that segment.
type Slot struct {
	SegmentID ids.SegmentId
	Offset    uint32
	Size      uint32
}

// Allocator is the common capability set every discipline in this package
// implements.
type Allocator interface {
	// Loan reserves size bytes and returns the slot's offset. Returns
	// ioerrors.OutOfMemory if the discipline cannot satisfy the request
	// without growing (or growing is disabled/exhausted).
	Loan(size uint32) (Slot, error)
	// Release returns a previously loaned slot to the free pool. Callers
	// only call this once a slot's refcount (tracked in internal/transport)
	// has reached zero.
	Release(slot Slot) error
	// InUse reports the number of currently-loaned slots.
	InUse() uint32
}
