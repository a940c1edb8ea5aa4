package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocx/iceoryx2/internal/ids"
	"github.com/ocx/iceoryx2/internal/ioerrors"
	"github.com/ocx/iceoryx2/internal/wireformat"
)

func TestNodeCreateAndRemove(t *testing.T) {
	prefix := t.TempDir()

	n, err := Create(prefix, "producer", "host-a")
	require.NoError(t, err)
	assert.Equal(t, Alive, n.State())
	assert.False(t, n.ID().IsZero())

	infos, err := ListNodes(prefix)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, Alive, infos[0].State)
	assert.Equal(t, "producer", infos[0].Name)

	require.NoError(t, n.Remove())

	infos, err = ListNodes(prefix)
	require.NoError(t, err)
	assert.Len(t, infos, 0)
}

func TestReaperReclaimsNodeAfterLockReleased(t *testing.T) {
	prefix := t.TempDir()

	n, err := Create(prefix, "transient", "host-a")
	require.NoError(t, err)

	// Simulate a crash: close the lock without calling Remove, leaving the
	// node file behind with no live holder.
	require.NoError(t, n.lock.Close())

	r := NewReaper(prefix, 0)
	reaped, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	infos, err := ListNodes(prefix)
	require.NoError(t, err)
	assert.Len(t, infos, 0)
}

func TestReaperSkipsLiveNode(t *testing.T) {
	prefix := t.TempDir()

	n, err := Create(prefix, "alive", "host-a")
	require.NoError(t, err)
	defer n.Remove()

	r := NewReaper(prefix, 0)
	reaped, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, reaped)
}

func testDescriptor() ServiceDescriptor {
	return ServiceDescriptor{
		Name:               "temperature",
		Pattern:            "pub-sub",
		PayloadTypeName:    "f64",
		UserHeaderTypeName: "",
		QoS:                []byte("history=4"),
	}
}

func TestServiceCreateOrOpenIsIdempotent(t *testing.T) {
	prefix := t.TempDir()
	desc := testDescriptor()

	s1, err := CreateOrOpen(prefix, desc)
	require.NoError(t, err)

	s2, err := CreateOrOpen(prefix, desc)
	require.NoError(t, err)

	assert.Equal(t, s1.ID(), s2.ID())
}

func TestServiceOpenRejectsMismatchedDescriptor(t *testing.T) {
	prefix := t.TempDir()
	desc := testDescriptor()

	s1, err := CreateOrOpen(prefix, desc)
	require.NoError(t, err)

	other := desc
	other.PayloadTypeName = "f32"
	_, err = Open(prefix, s1.ID(), other)
	require.Error(t, err)
	code, ok := ioerrors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, ioerrors.IncompatibleService, code)
}

// Name and pattern alone determine a ServiceId, so a second node opening
// "temperature"/"pub-sub" with a different payload type hits the exact
// same static-config file CreateOrOpen would otherwise happily reuse —
// this is the race CreateOrOpen must turn into IncompatibleService rather
// than two nodes silently agreeing to disagree about the wire format.
func TestServiceCreateOrOpenRejectsIncompatibleSecondOpener(t *testing.T) {
	prefix := t.TempDir()
	desc := testDescriptor()

	_, err := CreateOrOpen(prefix, desc)
	require.NoError(t, err)

	other := desc
	other.PayloadTypeName = "f32"
	_, err = CreateOrOpen(prefix, other)
	require.Error(t, err)
	code, ok := ioerrors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, ioerrors.IncompatibleService, code)
}

func TestDynamicConfigInsertRemoveRoundTrip(t *testing.T) {
	prefix := t.TempDir()
	desc := testDescriptor()
	svc, err := CreateOrOpen(prefix, desc)
	require.NoError(t, err)

	dc, err := OpenDynamicConfig(prefix, svc.ID())
	require.NoError(t, err)

	port := ids.NewPortId(svc.ID())
	entry := wireformat.PortEntry{PortID: port, Kind: wireformat.PortKindPublisher, SegmentID: 1}

	require.NoError(t, dc.Insert(entry, 8))

	list, err := dc.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, port, ids.PortId(list[0].PortID))

	require.NoError(t, dc.Remove(port))

	list, err = dc.List()
	require.NoError(t, err)
	assert.Len(t, list, 0)

	err = dc.Remove(port)
	require.Error(t, err)
	assert.True(t, ioerrors.IsIdempotentSuccess(err))
}

func TestDynamicConfigRejectsBeyondMaxPorts(t *testing.T) {
	prefix := t.TempDir()
	desc := testDescriptor()
	svc, err := CreateOrOpen(prefix, desc)
	require.NoError(t, err)

	dc, err := OpenDynamicConfig(prefix, svc.ID())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		port := ids.NewPortId(svc.ID())
		require.NoError(t, dc.Insert(wireformat.PortEntry{PortID: port, Kind: wireformat.PortKindSubscriber}, 2))
	}

	port := ids.NewPortId(svc.ID())
	err = dc.Insert(wireformat.PortEntry{PortID: port, Kind: wireformat.PortKindSubscriber}, 2)
	require.Error(t, err)
	code, ok := ioerrors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, ioerrors.MaxPortsExceeded, code)
}
