package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocx/iceoryx2/internal/wireformat"
)

func newTestRing(t *testing.T, capacity uint32) *Ring {
	t.Helper()
	size := wireformat.RingHeaderSize + int(capacity)*wireformat.DescriptorSize
	base := make([]byte, size)
	InitRing(base, capacity)
	return NewRing(base, capacity)
}

func TestRingPushAndCursorNext(t *testing.T) {
	r := newTestRing(t, 4)
	c := NewCursor(r, 0)

	_, ok := c.Next()
	assert.False(t, ok, "empty ring reports absence, not an error")

	r.Push(wireformat.Descriptor{SegmentID: 1, Offset: 0, Size: 16, Seq: 1}, false)
	d, ok := c.Next()
	require.True(t, ok)
	assert.EqualValues(t, 1, d.Seq)
	assert.EqualValues(t, 1, r.WriteIndex())
}

func TestRingOverflowAdvancesCursorPastLostSamples(t *testing.T) {
	r := newTestRing(t, 2)
	c := NewCursor(r, 0)

	for i := uint64(1); i <= 5; i++ {
		overflowed := i > 2
		r.Push(wireformat.Descriptor{Seq: i}, overflowed)
	}
	assert.EqualValues(t, 3, r.OverflowCount())
	assert.EqualValues(t, 3, c.Lagged())

	d, ok := c.Next()
	require.True(t, ok)
	// The cursor must skip forward to the oldest still-valid sample rather
	// than replay overwritten slot content.
	assert.EqualValues(t, 4, d.Seq)
}

func TestSlotRefCounterReleasesOnLastHolder(t *testing.T) {
	var c SlotRefCounter
	c.Hold()
	c.Hold()
	assert.False(t, c.Release())
	assert.True(t, c.Release())
}

func TestHistorySnapshotIsOldestToNewestBounded(t *testing.T) {
	h := NewHistory(2)
	h.Record(wireformat.Descriptor{Seq: 1})
	h.Record(wireformat.Descriptor{Seq: 2})
	h.Record(wireformat.Descriptor{Seq: 3})

	snap := h.Snapshot()
	require.Len(t, snap, 2)
	assert.EqualValues(t, 2, snap[0].Seq)
	assert.EqualValues(t, 3, snap[1].Seq)
}

func TestHistoryDisabledAtZeroCapacity(t *testing.T) {
	h := NewHistory(0)
	h.Record(wireformat.Descriptor{Seq: 1})
	assert.Nil(t, h.Snapshot())
}
