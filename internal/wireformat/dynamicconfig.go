package wireformat

import "encoding/binary"

// PortKind tags the role of a dynamic-config port entry.
type PortKind uint8

const (
	PortKindPublisher PortKind = iota + 1
	PortKindSubscriber
	PortKindNotifier
	PortKindListener
	PortKindClient
	PortKindServer
	PortKindWriter
	PortKindReader
)

// PortEntrySize is the fixed size of one dynamic-config table row:
// port-id (128-bit) + node-id (128-bit) + port-kind (8-bit) +
// segment-id (64-bit) + flags (8-bit) + ring-id (64-bit).
const PortEntrySize = 16 + 16 + 1 + 8 + 1 + 8 // 50

// FlagRemoved marks a logically-removed slot that a compaction pass may
// reclaim; FlagReserved marks a slot mid-insert (no code path in this
// module sets it).
const (
	FlagRemoved byte = 1 << iota
	FlagReserved
)

// PortEntry is the decoded form of one dynamic-config table row. A
// zero-valued PortId marks an empty slot. RingID is set only on
// Publisher entries (pkg/iceoryx2's CreatePublisher), identifying the
// shared-memory ring a Subscriber attaching from a separate process resolves by
// opening its content-addressed segment file rather than requiring a
// live in-process object reference to the Publisher.
type PortEntry struct {
	PortID    [16]byte
	NodeID    [16]byte
	Kind      PortKind
	SegmentID uint64
	Flags     byte
	RingID    uint64
}

func (e PortEntry) IsEmpty() bool {
	var zero [16]byte
	return e.PortID == zero
}

// Encode writes e into a fresh PortEntrySize-byte buffer.
func (e PortEntry) Encode() []byte {
	buf := make([]byte, PortEntrySize)
	copy(buf[0:16], e.PortID[:])
	copy(buf[16:32], e.NodeID[:])
	buf[32] = byte(e.Kind)
	binary.LittleEndian.PutUint64(buf[33:41], e.SegmentID)
	buf[41] = e.Flags
	binary.LittleEndian.PutUint64(buf[42:50], e.RingID)
	return buf
}

// DecodePortEntry parses one PortEntrySize-byte row.
func DecodePortEntry(buf []byte) PortEntry {
	var e PortEntry
	copy(e.PortID[:], buf[0:16])
	copy(e.NodeID[:], buf[16:32])
	e.Kind = PortKind(buf[32])
	e.SegmentID = binary.LittleEndian.Uint64(buf[33:41])
	e.Flags = buf[41]
	e.RingID = binary.LittleEndian.Uint64(buf[42:50])
	return e
}

// DynamicConfigTable is the count-prefixed list of fixed-size port entries
// following the header in a .dynamic file.
type DynamicConfigTable struct {
	Entries []PortEntry
}

// Encode serialises header + entry count + entries.
func (t DynamicConfigTable) Encode(h Header) []byte {
	out := h.Encode()
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(t.Entries)))
	out = append(out, countBuf[:]...)
	for _, e := range t.Entries {
		out = append(out, e.Encode()...)
	}
	return out
}

// DecodeDynamicConfigTable parses a full .dynamic file body (including its
// header).
func DecodeDynamicConfigTable(buf []byte) (Header, DynamicConfigTable, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return Header{}, DynamicConfigTable{}, err
	}
	buf = buf[HeaderSize:]
	if len(buf) < 4 {
		return h, DynamicConfigTable{}, errCorrupted()
	}
	count := int(binary.LittleEndian.Uint32(buf[:4]))
	buf = buf[4:]
	if count < 0 || len(buf) < count*PortEntrySize {
		return h, DynamicConfigTable{}, errCorrupted()
	}
	entries := make([]PortEntry, count)
	for i := 0; i < count; i++ {
		entries[i] = DecodePortEntry(buf[i*PortEntrySize : (i+1)*PortEntrySize])
	}
	return h, DynamicConfigTable{Entries: entries}, nil
}
