package wireformat

import "encoding/binary"

// AllocatorKind tags which discipline owns a segment.
type AllocatorKind uint8

const (
	AllocatorFixedPool AllocatorKind = iota + 1
	AllocatorBumpBestFit
	AllocatorGrowable
)

// SegmentHeaderPadded is the fixed size of the segment header following
// the magic/version header: size/free-list-head/
// in-use-count/slot-size/slot-count/allocator-kind. FreeListHead is placed
// at an 8-byte-aligned offset (and InUseCount at a 4-byte-aligned offset)
// because internal/shmem addresses them directly as atomics through an
// unsafe.Pointer into the mapped bytes — this is the one place the wire
// layout is shaped by a Go runtime requirement rather than only by the
// byte-compatibility contract 
const SegmentHeaderPadded = 32

// SegmentHeader describes a mapped data segment's layout, placed right
// after the shared 32-byte magic/version Header.
type SegmentHeader struct {
	Size          uint64
	FreeListHead  uint64
	InUseCount    uint32
	SlotSize      uint32
	SlotCount     uint32
	AllocatorKind AllocatorKind
}

func (s SegmentHeader) Encode() []byte {
	buf := make([]byte, SegmentHeaderPadded)
	binary.LittleEndian.PutUint64(buf[0:8], s.Size)
	binary.LittleEndian.PutUint64(buf[8:16], s.FreeListHead)
	binary.LittleEndian.PutUint32(buf[16:20], s.InUseCount)
	binary.LittleEndian.PutUint32(buf[20:24], s.SlotSize)
	binary.LittleEndian.PutUint32(buf[24:28], s.SlotCount)
	buf[28] = byte(s.AllocatorKind)
	return buf
}

func DecodeSegmentHeader(buf []byte) (SegmentHeader, error) {
	if len(buf) < SegmentHeaderPadded {
		return SegmentHeader{}, errCorrupted()
	}
	var s SegmentHeader
	s.Size = binary.LittleEndian.Uint64(buf[0:8])
	s.FreeListHead = binary.LittleEndian.Uint64(buf[8:16])
	s.InUseCount = binary.LittleEndian.Uint32(buf[16:20])
	s.SlotSize = binary.LittleEndian.Uint32(buf[20:24])
	s.SlotCount = binary.LittleEndian.Uint32(buf[24:28])
	s.AllocatorKind = AllocatorKind(buf[28])
	return s, nil
}

// SlotHeaderSize is the fixed part of every slot:
// refcount (u32 atomic) + producer-seq (u64) + payload-size (u32) +
// reserved (u32). User-header and payload bytes follow, sized per service.
const SlotHeaderSize = 4 + 8 + 4 + 4

type SlotHeader struct {
	RefCount     uint32
	ProducerSeq  uint64
	PayloadSize  uint32
}

func (s SlotHeader) Encode() []byte {
	buf := make([]byte, SlotHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], s.RefCount)
	binary.LittleEndian.PutUint64(buf[4:12], s.ProducerSeq)
	binary.LittleEndian.PutUint32(buf[12:16], s.PayloadSize)
	return buf
}

func DecodeSlotHeader(buf []byte) SlotHeader {
	return SlotHeader{
		RefCount:    binary.LittleEndian.Uint32(buf[0:4]),
		ProducerSeq: binary.LittleEndian.Uint64(buf[4:12]),
		PayloadSize: binary.LittleEndian.Uint32(buf[12:16]),
	}
}
