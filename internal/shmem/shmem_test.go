package shmem

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocx/iceoryx2/internal/ids"
	"github.com/ocx/iceoryx2/internal/ioerrors"
	"github.com/ocx/iceoryx2/internal/wireformat"
)

func mustEnsureSegmentsDir(t *testing.T, prefix string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(prefix+"/segments", 0o755))
}

func TestFixedPoolLoanReleaseNeverDoubleHands(t *testing.T) {
	prefix := t.TempDir()
	mustEnsureSegmentsDir(t, prefix)

	seg, err := CreateSegment(prefix, ids.SegmentId(1), wireformat.AllocatorFixedPool, 64, 4)
	require.NoError(t, err)
	defer seg.Close()

	pool := NewFixedPool(seg)

	seen := map[uint32]bool{}
	var loaned []Slot
	for i := 0; i < 4; i++ {
		slot, err := pool.Loan(32)
		require.NoError(t, err)
		assert.False(t, seen[slot.Offset], "slot offset handed out twice while live")
		seen[slot.Offset] = true
		loaned = append(loaned, slot)
	}

	_, err = pool.Loan(32)
	require.Error(t, err)
	code, ok := ioerrors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, ioerrors.OutOfMemory, code)

	require.NoError(t, pool.Release(loaned[0]))
	assert.EqualValues(t, 3, pool.InUse())

	reLoaned, err := pool.Loan(32)
	require.NoError(t, err)
	assert.Equal(t, loaned[0].Offset, reLoaned.Offset)
}

func TestBumpBestFitReusesReleasedRegion(t *testing.T) {
	prefix := t.TempDir()
	mustEnsureSegmentsDir(t, prefix)

	seg, err := CreateSegment(prefix, ids.SegmentId(2), wireformat.AllocatorBumpBestFit, 1, 256)
	require.NoError(t, err)
	defer seg.Close()

	alloc := NewBumpBestFit(seg)
	a, err := alloc.Loan(16)
	require.NoError(t, err)
	_, err = alloc.Loan(16)
	require.NoError(t, err)

	require.NoError(t, alloc.Release(a))
	c, err := alloc.Loan(16)
	require.NoError(t, err)
	assert.Equal(t, a.Offset, c.Offset)
}

func TestGrowablePowerOfTwoDoublesOnOverflow(t *testing.T) {
	prefix := t.TempDir()
	mustEnsureSegmentsDir(t, prefix)

	next := uint64(10)
	nextSeg := func() ids.SegmentId {
		next++
		return ids.SegmentId(next)
	}
	var republished ids.SegmentId
	g, err := NewGrowable(prefix, nextSeg, PowerOfTwo, wireformat.AllocatorFixedPool, 64, 2, func(id ids.SegmentId) {
		republished = id
	})
	require.NoError(t, err)

	base := g.CurrentSegment()
	_, err = g.Loan(32)
	require.NoError(t, err)
	_, err = g.Loan(32)
	require.NoError(t, err)

	// Third loan overflows the 2-slot base segment and must trigger a grow.
	slot, err := g.Loan(32)
	require.NoError(t, err)
	assert.NotEqual(t, base, slot.SegmentID)
	assert.Equal(t, slot.SegmentID, republished)
	assert.Equal(t, slot.SegmentID, g.CurrentSegment())
}
