package port

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocx/iceoryx2/internal/ids"
	"github.com/ocx/iceoryx2/internal/ioerrors"
	"github.com/ocx/iceoryx2/internal/registry"
	"github.com/ocx/iceoryx2/internal/shmem"
	"github.com/ocx/iceoryx2/internal/transport"
	"github.com/ocx/iceoryx2/internal/wireformat"
)

func testEnv(t *testing.T) (ids.NodeId, ids.ServiceId, *registry.DynamicConfig) {
	t.Helper()
	prefix := t.TempDir()
	n, err := registry.Create(prefix, "test-node", "host-a")
	require.NoError(t, err)
	t.Cleanup(func() { n.Remove() })

	svc, err := registry.CreateOrOpen(prefix, registry.ServiceDescriptor{
		Name: "svc", Pattern: "pub-sub", PayloadTypeName: "u8",
	})
	require.NoError(t, err)

	dc, err := registry.OpenDynamicConfig(prefix, svc.ID())
	require.NoError(t, err)
	return n.ID(), svc.ID(), dc
}

func newTestRing(capacity uint32) *transport.Ring {
	size := wireformat.RingHeaderSize + int(capacity)*wireformat.DescriptorSize
	base := make([]byte, size)
	transport.InitRing(base, capacity)
	return transport.NewRing(base, capacity)
}

func TestPublisherSubscriberRoundTrip(t *testing.T) {
	node, svc, dc := testEnv(t)

	alloc := shmem.NewFixedPool(mustSegment(t, svc))
	ring := newTestRing(8)

	pub, err := NewPublisher(node, svc, alloc, ring, dc, true, 2, 8)
	require.NoError(t, err)

	slot, err := pub.Loan(4)
	require.NoError(t, err)
	_, err = pub.Send(slot)
	require.NoError(t, err)

	sub, err := NewSubscriber(node, svc, pub, dc, 8)
	require.NoError(t, err)

	slot2, err := pub.Loan(4)
	require.NoError(t, err)
	_, err = pub.Send(slot2)
	require.NoError(t, err)

	first, ok := sub.Receive()
	require.True(t, ok)
	assert.EqualValues(t, 1, first.Seq)

	second, ok := sub.Receive()
	require.True(t, ok)
	assert.EqualValues(t, 2, second.Seq)

	require.NoError(t, sub.Reclaim())
	require.NoError(t, pub.Reclaim())
}

// TestPublisherBackpressureWhenOverflowDisabled exercises the
// SafeOverflow=false path: once a Subscriber has Capacity unread samples
// (write index minus its cursor position reaches Capacity), Send must reject rather than overwrite what
// it hasn't read yet, and must succeed again once the Subscriber drains.
func TestPublisherBackpressureWhenOverflowDisabled(t *testing.T) {
	node, svc, dc := testEnv(t)

	alloc := shmem.NewFixedPool(mustSegment(t, svc))
	ring := newTestRing(2)

	pub, err := NewPublisher(node, svc, alloc, ring, dc, false, 0, 8)
	require.NoError(t, err)
	sub, err := NewSubscriber(node, svc, pub, dc, 8)
	require.NoError(t, err)

	slot, err := pub.Loan(4)
	require.NoError(t, err)
	_, err = pub.Send(slot)
	require.NoError(t, err)

	slot2, err := pub.Loan(4)
	require.NoError(t, err)
	_, err = pub.Send(slot2)
	require.NoError(t, err)

	slot3, err := pub.Loan(4)
	require.NoError(t, err)
	_, err = pub.Send(slot3)
	require.Error(t, err)
	code, ok := ioerrors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, ioerrors.Backpressured, code)
	require.NoError(t, pub.Release(slot3))

	_, ok = sub.Receive()
	require.True(t, ok)

	slot4, err := pub.Loan(4)
	require.NoError(t, err)
	_, err = pub.Send(slot4)
	require.NoError(t, err, "Send must succeed again once the subscriber has drained a slot")

	require.NoError(t, sub.Reclaim())
	require.NoError(t, pub.Reclaim())
}

func mustSegment(t *testing.T, svc ids.ServiceId) *shmem.Segment {
	t.Helper()
	prefix := t.TempDir()
	require.NoError(t, registry.NewLayout(prefix).EnsureDirs())
	seg, err := shmem.CreateSegment(prefix, ids.SegmentId(1), wireformat.AllocatorFixedPool, 64, 4)
	require.NoError(t, err)
	t.Cleanup(func() { seg.Close() })
	return seg
}

func TestNotifierListenerWakesOnNotify(t *testing.T) {
	node, svc, dc := testEnv(t)
	bus := NewEventBus()

	notif, err := NewNotifier(node, svc, bus, dc, 8)
	require.NoError(t, err)
	listen, err := NewListener(node, svc, bus, dc, 8, EventId(100))
	require.NoError(t, err)

	assert.False(t, listen.TryWait())
	notif.Notify(EventId(100))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, listen.WaitFor(ctx))

	require.NoError(t, listen.Reclaim())
	require.NoError(t, notif.Drop())
}

func TestListenerDrainAllReportsFiredSet(t *testing.T) {
	node, svc, dc := testEnv(t)
	bus := NewEventBus()

	notif, err := NewNotifier(node, svc, bus, dc, 8)
	require.NoError(t, err)
	listen, err := NewListener(node, svc, bus, dc, 8, EventId(10), EventId(20), EventId(30))
	require.NoError(t, err)

	notif.Notify(EventId(10))
	notif.Notify(EventId(20))
	notif.Notify(EventId(30))

	fired := listen.DrainAll()
	assert.ElementsMatch(t, []EventId{10, 20, 30}, fired)
	assert.Empty(t, listen.DrainAll())

	require.NoError(t, listen.Reclaim())
	require.NoError(t, notif.Drop())
}

func TestWriterReaderSeqlockRoundTrip(t *testing.T) {
	node, svc, dc := testEnv(t)

	buf := make([]byte, wireformat.BlackboardEntryHeaderSize+4)
	slots := map[string]BlackboardSlot{"temp": {buf: buf}}

	w, err := NewWriter(node, svc, slots, dc, 8)
	require.NoError(t, err)
	r, err := NewReader(node, svc, slots, dc, 8)
	require.NoError(t, err)

	require.NoError(t, w.Update("temp", []byte{1, 2, 3, 4}))
	got, err := r.Get("temp")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, got)

	require.NoError(t, w.Reclaim())
	require.NoError(t, r.Reclaim())
}
