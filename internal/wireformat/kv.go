package wireformat

import (
	"encoding/binary"
	"sort"

	"github.com/ocx/iceoryx2/internal/ioerrors"
)

// EncodeKV implements a stable, self-describing key-value encoding for
// the static-config descriptor: keys are sorted so that two encoders
// given the same map always produce identical
// bytes, and each key/value is length-prefixed UTF-8 so the encoding is
// self-describing without a schema.
func EncodeKV(fields map[string]string) []byte {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []byte
	var lenBuf [4]byte
	put := func(s string) {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
		out = append(out, lenBuf[:]...)
		out = append(out, s...)
	}
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(keys)))
	out = append(out, lenBuf[:]...)
	for _, k := range keys {
		put(k)
		put(fields[k])
	}
	return out
}

// DecodeKV is the inverse of EncodeKV.
func DecodeKV(buf []byte) (map[string]string, error) {
	read := func() (string, error) {
		if len(buf) < 4 {
			return "", ioerrors.New(ioerrors.CorruptedServiceFile, "DecodeKV", nil)
		}
		n := int(binary.LittleEndian.Uint32(buf[:4]))
		buf = buf[4:]
		if n < 0 || n > len(buf) {
			return "", ioerrors.New(ioerrors.CorruptedServiceFile, "DecodeKV", nil)
		}
		s := string(buf[:n])
		buf = buf[n:]
		return s, nil
	}

	if len(buf) < 4 {
		return nil, ioerrors.New(ioerrors.CorruptedServiceFile, "DecodeKV", nil)
	}
	count := int(binary.LittleEndian.Uint32(buf[:4]))
	buf = buf[4:]
	if count < 0 {
		return nil, ioerrors.New(ioerrors.CorruptedServiceFile, "DecodeKV", nil)
	}

	out := make(map[string]string, count)
	for i := 0; i < count; i++ {
		k, err := read()
		if err != nil {
			return nil, err
		}
		v, err := read()
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
