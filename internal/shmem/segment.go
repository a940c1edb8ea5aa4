package shmem

import (
	"path/filepath"
	"unsafe"

	"github.com/ocx/iceoryx2/internal/ids"
	"github.com/ocx/iceoryx2/internal/ioerrors"
	"github.com/ocx/iceoryx2/internal/platform"
	"github.com/ocx/iceoryx2/internal/wireformat"
)

// Segment is a mapped shared-memory data segment: the wireformat header plus a slot array, addressed only
// by (segment-id, offset) so a remap at an arbitrary virtual address never
// invalidates a descriptor held elsewhere.
type Segment struct {
	id   ids.SegmentId
	mem  *platform.SharedMemory
	data []byte // header-relative slice, i.e. mem.Bytes()[wireformat.HeaderSize+wireformat.SegmentHeaderPadded:]
}

// SegmentPath returns the on-disk path for a segment under the registry's
// segments/ directory.
func SegmentPath(prefix string, id ids.SegmentId) string {
	return filepath.Join(prefix, "segments", idHex(id)+".shm")
}

func idHex(id ids.SegmentId) string {
	const hex = "0123456789abcdef"
	buf := make([]byte, 16)
	v := uint64(id)
	for i := 15; i >= 0; i-- {
		buf[i] = hex[v&0xf]
		v >>= 4
	}
	return string(buf)
}

// CreateSegment allocates and maps a new segment sized to hold slotCount
// slots of slotSize bytes each (plus headers),  section 6's byte
// layout.
func CreateSegment(prefix string, id ids.SegmentId, kind wireformat.AllocatorKind, slotSize, slotCount uint32) (*Segment, error) {
	total := wireformat.HeaderSize + wireformat.SegmentHeaderPadded + int(slotSize)*int(slotCount)
	mem, err := platform.CreateSharedMemory(SegmentPath(prefix, id), total)
	if err != nil {
		return nil, err
	}
	buf := mem.Bytes()
	h := wireformat.Header{Magic: wireformat.MagicSegment, Major: wireformat.CurrentMajor, Minor: wireformat.CurrentMinor}
	copy(buf[:wireformat.HeaderSize], h.Encode())

	sh := wireformat.SegmentHeader{
		Size:          uint64(total),
		AllocatorKind: kind,
		SlotSize:      slotSize,
		SlotCount:     slotCount,
		FreeListHead:  0,
		InUseCount:    0,
	}
	copy(buf[wireformat.HeaderSize:wireformat.HeaderSize+wireformat.SegmentHeaderPadded], sh.Encode())

	return &Segment{id: id, mem: mem, data: buf[wireformat.HeaderSize+wireformat.SegmentHeaderPadded:]}, nil
}

// OpenSegment maps an existing segment by id.
func OpenSegment(prefix string, id ids.SegmentId) (*Segment, error) {
	mem, err := platform.OpenSharedMemory(SegmentPath(prefix, id))
	if err != nil {
		return nil, err
	}
	buf := mem.Bytes()
	if len(buf) < wireformat.HeaderSize+wireformat.SegmentHeaderPadded {
		mem.Close()
		return nil, ioerrors.New(ioerrors.CorruptedServiceFile, "OpenSegment", nil)
	}
	if _, err := wireformat.DecodeHeader(buf); err != nil {
		mem.Close()
		return nil, err
	}
	return &Segment{id: id, mem: mem, data: buf[wireformat.HeaderSize+wireformat.SegmentHeaderPadded:]}, nil
}

func (s *Segment) ID() ids.SegmentId { return s.id }

// Header decodes the segment header with plain, non-atomic reads, so
// InUseCount and FreeListHead are only a best-effort snapshot while other
// processes are mutating them through Loan/Release.
func (s *Segment) Header() wireformat.SegmentHeader {
	base := s.mem.Bytes()[wireformat.HeaderSize:]
	sh, _ := wireformat.DecodeSegmentHeader(base)
	return sh
}

// Close unmaps the segment. Deleting the backing file is the registry's
// job once the owning port has released it.
func (s *Segment) Close() error { return s.mem.Close() }

// SlotBytes returns the slotSize-byte window at offset within the slot
// array (i.e. past the segment header).
func (s *Segment) SlotBytes(offset, slotSize uint32) []byte {
	return s.data[offset : offset+slotSize]
}

// freeListHeadPtr returns an *uint64 aliasing the segment header's
// free-list-head field (bytes [8:16) of the SegmentHeader, 8-byte aligned
// by construction — see the comment on wireformat.SegmentHeaderPadded), so
// CAS loops operate directly on the shared-memory word every process
// mapping this segment observes.
func (s *Segment) freeListHeadPtr() *uint64 {
	base := s.mem.Bytes()[wireformat.HeaderSize:]
	return (*uint64)(unsafe.Pointer(&base[8]))
}

func (s *Segment) inUseCountPtr() *uint32 {
	base := s.mem.Bytes()[wireformat.HeaderSize:]
	return (*uint32)(unsafe.Pointer(&base[16]))
}
