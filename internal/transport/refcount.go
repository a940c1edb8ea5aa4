package transport

import "sync/atomic"

// SlotRefCounter gates a sample slot's reclamation behind every consumer
// that touched it releasing their hold: pkg/iceoryx2 takes one hold per
// attached subscriber when a sample is sent, and each subscriber's
// receive releases one; the slot is only returned to the allocator once
// the count drops back to zero. This generalizes internal/escrow's tri-signal Hold/
// AwaitRelease gate from "three named signals" to "N holders, arbitrary
// count", since a sample's fan-out is not known in advance.
type SlotRefCounter struct {
	n atomic.Int32
}

// Hold registers one more holder of the slot.
func (c *SlotRefCounter) Hold() { c.n.Add(1) }

// Release removes one holder, reporting true if this was the last one and
// the slot is now free to reclaim.
func (c *SlotRefCounter) Release() bool {
	return c.n.Add(-1) == 0
}

// Count returns the current number of holders, for diagnostics.
func (c *SlotRefCounter) Count() int32 { return c.n.Load() }
