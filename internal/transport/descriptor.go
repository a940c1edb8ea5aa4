package transport

import (
	"github.com/ocx/iceoryx2/internal/shmem"
	"github.com/ocx/iceoryx2/internal/wireformat"
)

// DescriptorFor builds the wire descriptor a publisher pushes into the
// ring for a slot it just loaned and filled, carrying slot's own
// SegmentID so a subscriber on a different segment mapping than the
// current one can still resolve it (growable allocator generations).
func DescriptorFor(slot shmem.Slot, seq uint64) wireformat.Descriptor {
	return wireformat.Descriptor{
		SegmentID: uint64(slot.SegmentID),
		Offset:    uint64(slot.Offset),
		Size:      slot.Size,
		Seq:       seq,
	}
}
