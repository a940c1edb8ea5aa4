package wireformat

import "encoding/binary"

// BlackboardEntryHeaderSize is the fixed leading part of one blackboard
// key's shared-memory slot: an 8-byte sequence counter
// used as a classic seqlock — even means stable, odd means "a writer is
// mid-update" — followed by the value bytes themselves. Readers retry
// whenever they observe an odd sequence or a sequence that changed across
// their read (this design's "single-writer-per-key, sequence-locked reads"
// invariant).
const BlackboardEntryHeaderSize = 8

// EncodeBlackboardSeq writes seq into the first 8 bytes of buf.
func EncodeBlackboardSeq(buf []byte, seq uint64) {
	binary.LittleEndian.PutUint64(buf[0:8], seq)
}

// DecodeBlackboardSeq reads the sequence counter from the first 8 bytes
// of buf.
func DecodeBlackboardSeq(buf []byte) uint64 {
	return binary.LittleEndian.Uint64(buf[0:8])
}
