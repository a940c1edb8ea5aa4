package ids

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestServiceIdStableForIdenticalInputs(t *testing.T) {
	a := NewServiceId("camera/front", "pub-sub")
	b := NewServiceId("camera/front", "pub-sub")
	assert.Equal(t, a, b)
}

func TestServiceIdDiffersOnPattern(t *testing.T) {
	a := NewServiceId("camera/front", "pub-sub")
	b := NewServiceId("camera/front", "request-response")
	assert.NotEqual(t, a, b)
}

func TestServiceIdIgnoresPayloadType(t *testing.T) {
	// Payload type is not part of the id's content-address: two openers
	// disagreeing on it are caught by registry.Open comparing the stored
	// descriptor, not by minting different ids here.
	a := NewServiceId("camera/front", "pub-sub")
	b := NewServiceId("camera/front", "pub-sub")
	assert.Equal(t, a, b)
}

func TestNodeIdDiffersForDistinctNonce(t *testing.T) {
	a := NewNodeId(1234, uuid.New(), "host-a")
	b := NewNodeId(1234, uuid.New(), "host-a")
	assert.NotEqual(t, a, b)
}

func TestPortIdUniquePerCall(t *testing.T) {
	svc := NewServiceId("s", "event")
	a := NewPortId(svc)
	b := NewPortId(svc)
	assert.NotEqual(t, a, b)
	assert.False(t, a.IsZero())
}
