package wireformat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Magic: MagicService, Major: CurrentMajor, Minor: CurrentMinor, LayoutHash: 0xdeadbeef}
	got, err := DecodeHeader(h.Encode())
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.True(t, h.CompatibleWith(got))
}

func TestHeaderIncompatibleOnLayoutHash(t *testing.T) {
	a := Header{Magic: MagicService, Major: 1, LayoutHash: 1}
	b := Header{Magic: MagicService, Major: 1, LayoutHash: 2}
	assert.False(t, a.CompatibleWith(b))
}

func TestKVRoundTripIsOrderIndependent(t *testing.T) {
	fields := map[string]string{"payload_type": "Image", "pattern": "pub-sub", "max_subscribers": "8"}
	encoded := EncodeKV(fields)

	decoded, err := DecodeKV(encoded)
	require.NoError(t, err)
	assert.Equal(t, fields, decoded)

	// Re-encoding the decoded map must produce byte-identical output,
	// since static-config compatibility is a byte comparison.
	assert.Equal(t, encoded, EncodeKV(decoded))
}

func TestDynamicConfigTableRoundTrip(t *testing.T) {
	h := Header{Magic: MagicDynamic, Major: CurrentMajor, Minor: CurrentMinor}
	entry := PortEntry{Kind: PortKindPublisher, SegmentID: 7}
	entry.PortID[0] = 1
	entry.NodeID[0] = 2
	table := DynamicConfigTable{Entries: []PortEntry{entry}}

	gotH, gotTable, err := DecodeDynamicConfigTable(table.Encode(h))
	require.NoError(t, err)
	assert.Equal(t, h, gotH)
	require.Len(t, gotTable.Entries, 1)
	assert.Equal(t, entry, gotTable.Entries[0])
}

func TestDescriptorRoundTrip(t *testing.T) {
	d := Descriptor{SegmentID: 3, Offset: 128, Size: 64, Seq: 42}
	buf := make([]byte, DescriptorSize)
	d.Encode(buf)
	assert.Equal(t, d, DecodeDescriptor(buf))
}
