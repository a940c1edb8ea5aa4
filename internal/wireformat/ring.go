package wireformat

import "encoding/binary"

// DescriptorSize is the fixed size of one ring-buffer entry: segment-id,
// offset, size, seq — the tuple transported in place of payload bytes
// ("descriptor").
const DescriptorSize = 8 + 8 + 4 + 8 // 28

// Descriptor references one in-flight sample without copying it.
type Descriptor struct {
	SegmentID uint64
	Offset    uint64
	Size      uint32
	Seq       uint64
}

func (d Descriptor) Encode(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], d.SegmentID)
	binary.LittleEndian.PutUint64(buf[8:16], d.Offset)
	binary.LittleEndian.PutUint32(buf[16:20], d.Size)
	binary.LittleEndian.PutUint64(buf[20:28], d.Seq)
}

func DecodeDescriptor(buf []byte) Descriptor {
	return Descriptor{
		SegmentID: binary.LittleEndian.Uint64(buf[0:8]),
		Offset:    binary.LittleEndian.Uint64(buf[8:16]),
		Size:      binary.LittleEndian.Uint32(buf[16:20]),
		Seq:       binary.LittleEndian.Uint64(buf[20:28]),
	}
}

// RingHeaderSize is the fixed part of a ring buffer:
// write-index, read-index, and overflow-count are all touched with
// sync/atomic from concurrent producer/subscriber goroutines via
// unsafe.Pointer, so the three uint64 fields come first to keep every one
// of them 8-byte aligned; capacity is set once at creation and never
// touched atomically, so it trails as a uint32. The entries array follows,
// capacity*DescriptorSize bytes.
const RingHeaderSize = 8 + 8 + 8 + 4

type RingHeader struct {
	WriteIndex    uint64
	ReadIndex     uint64
	OverflowCount uint64
	Capacity      uint32
}

func (r RingHeader) Encode() []byte {
	buf := make([]byte, RingHeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], r.WriteIndex)
	binary.LittleEndian.PutUint64(buf[8:16], r.ReadIndex)
	binary.LittleEndian.PutUint64(buf[16:24], r.OverflowCount)
	binary.LittleEndian.PutUint32(buf[24:28], r.Capacity)
	return buf
}

func DecodeRingHeader(buf []byte) RingHeader {
	return RingHeader{
		WriteIndex:    binary.LittleEndian.Uint64(buf[0:8]),
		ReadIndex:     binary.LittleEndian.Uint64(buf[8:16]),
		OverflowCount: binary.LittleEndian.Uint64(buf[16:24]),
		Capacity:      binary.LittleEndian.Uint32(buf[24:28]),
	}
}
