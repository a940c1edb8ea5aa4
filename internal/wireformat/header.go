// Package wireformat implements the bit-exact, little-endian on-disk and
// shared-memory layouts : the shared magic/version
// header, the static-config key-value encoding, the dynamic-config port
// table, the segment header, and the ring-buffer layout.
package wireformat

import (
	"encoding/binary"

	"github.com/ocx/iceoryx2/internal/ioerrors"
)

// HeaderSize is the fixed size of the magic/version header every shared
// file starts with: 8-byte magic, 2-byte major, 2-byte
// minor, 4-byte layout hash, 16 bytes reserved.
const HeaderSize = 32

// Header is the decoded form of the first 32 bytes of every shared file.
type Header struct {
	Magic      [8]byte
	Major      uint16
	Minor      uint16
	LayoutHash uint32
}

// Encode writes h into a fresh HeaderSize-byte buffer.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:8], h.Magic[:])
	binary.LittleEndian.PutUint16(buf[8:10], h.Major)
	binary.LittleEndian.PutUint16(buf[10:12], h.Minor)
	binary.LittleEndian.PutUint32(buf[12:16], h.LayoutHash)
	// bytes [16:32) reserved, left zero.
	return buf
}

// DecodeHeader parses the leading HeaderSize bytes of buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ioerrors.New(ioerrors.CorruptedServiceFile, "DecodeHeader", nil)
	}
	var h Header
	copy(h.Magic[:], buf[0:8])
	h.Major = binary.LittleEndian.Uint16(buf[8:10])
	h.Minor = binary.LittleEndian.Uint16(buf[10:12])
	h.LayoutHash = binary.LittleEndian.Uint32(buf[12:16])
	return h, nil
}

// CompatibleWith reports whether two headers describe byte-compatible
// layouts: exact magic, major and LayoutHash match (the "leading
// magic/version header is compared exactly" rule ). Minor versions may
// differ — minor bumps are additive.
func (h Header) CompatibleWith(other Header) bool {
	return h.Magic == other.Magic && h.Major == other.Major && h.LayoutHash == other.LayoutHash
}

var (
	// MagicService marks a .service static-config file.
	MagicService = [8]byte{'I', 'O', 'X', '2', 'S', 'V', 'C', '\x00'}
	// MagicDynamic marks a .dynamic dynamic-config file.
	MagicDynamic = [8]byte{'I', 'O', 'X', '2', 'D', 'Y', 'N', '\x00'}
	// MagicSegment marks a shared-memory data segment.
	MagicSegment = [8]byte{'I', 'O', 'X', '2', 'S', 'E', 'G', '\x00'}
)

// CurrentMajor/CurrentMinor are the wire format versions this build
// produces and accepts as compatible.
const (
	CurrentMajor = 1
	CurrentMinor = 0
)
