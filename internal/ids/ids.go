// Package ids implements the core's content-addressed identifiers:
// NodeId and ServiceId (128-bit), PortId (128-bit, service-scoped) and
// SegmentId (64-bit),  section 3.
package ids

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// NodeId is a process-wide-unique identifier content-addressed from PID,
// a random per-creation nonce, and a host tag; creation time is not one of
// its inputs.
type NodeId [16]byte

// ServiceId is content-addressed from (name, pattern) only. Payload type,
// user-header type, and QoS are compared byte-for-byte against the stored
// static-config descriptor on Open instead of folded into the id, so two
// openers that disagree on those fields fail with IncompatibleService
// rather than silently minting two different ids for "the same" service.
type ServiceId [16]byte

// PortId is unique within the service that issued it.
type PortId [16]byte

// SegmentId identifies a shared-memory segment. NewSegmentId mints it as
// the first 64 bits of a content hash of the service id and a random
// nonce, which keeps the on-disk descriptor layout in section 6 at a fixed
// 64 bits.
type SegmentId uint64

func (id NodeId) String() string    { return hex.EncodeToString(id[:]) }
func (id ServiceId) String() string { return hex.EncodeToString(id[:]) }
func (id PortId) String() string    { return hex.EncodeToString(id[:]) }

func (id NodeId) IsZero() bool    { return id == NodeId{} }
func (id ServiceId) IsZero() bool { return id == ServiceId{} }
func (id PortId) IsZero() bool    { return id == PortId{} }

// ParseNodeId decodes the hex form produced by NodeId.String (the
// on-disk node-file name, minus its ".node" suffix).
func ParseNodeId(s string) (NodeId, bool) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 16 {
		return NodeId{}, false
	}
	var id NodeId
	copy(id[:], raw)
	return id, true
}

// ParseServiceId decodes the hex form produced by ServiceId.String.
func ParseServiceId(s string) (ServiceId, bool) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 16 {
		return ServiceId{}, false
	}
	var id ServiceId
	copy(id[:], raw)
	return id, true
}

// hash128 returns a BLAKE2b-128 content hash of parts, each length-
// delimited so that e.g. ("ab", "c") and ("a", "bc") never collide.
func hash128(parts ...[]byte) [16]byte {
	h, _ := blake2b.New(16, nil)
	var lenBuf [8]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(p)))
		h.Write(lenBuf[:])
		h.Write(p)
	}
	var out [16]byte
	copy(out[:], h.Sum(nil))
	return out
}

// NewNodeId content-addresses a NodeId from the owning PID, a per-creation
// nonce, and a host tag. The creation nonce is supplied by the caller
// (internal/registry passes a random UUID); no timestamp is hashed, and
// two nodes created in the same clock tick still get distinct ids because
// their nonces differ.
func NewNodeId(pid int, creationNonce uuid.UUID, hostTag string) NodeId {
	var pidBuf [8]byte
	binary.LittleEndian.PutUint64(pidBuf[:], uint64(pid))
	nonce := creationNonce[:]
	return NodeId(hash128(pidBuf[:], nonce, []byte(hostTag)))
}

// NewServiceId content-addresses a ServiceId from name and messaging
// pattern only. Two CreateOrOpen calls that agree on (name, pattern) but
// disagree on payload type, user-header type, or QoS resolve to the same
// id and the same static-config file; internal/registry.Open is what
// catches that mismatch by comparing the full descriptor, so a service
// rename or QoS change is visible as IncompatibleService rather than as
// two silently distinct services sharing a name.
func NewServiceId(name, pattern string) ServiceId {
	return ServiceId(hash128([]byte(name), []byte(pattern)))
}

// NewPortId derives a PortId unique within svc, using a random UUID as the
// uniqueness source (ports are not content-addressed — two publishers with
// identical configuration on the same service are still distinct ports).
func NewPortId(svc ServiceId) PortId {
	u := uuid.New()
	return PortId(hash128(svc[:], u[:]))
}

// NewSegmentId mints a SegmentId for a new shared-memory generation
// backing svc, content-addressed from the service plus a random nonce so
// two growers racing to create the next generation (guarded in practice
// by Growable's own mutex, but the id scheme makes no assumption about
// that) never collide.
func NewSegmentId(svc ServiceId, nonce uuid.UUID) SegmentId {
	h := hash128(svc[:], nonce[:])
	return SegmentId(binary.LittleEndian.Uint64(h[:8]))
}

// LayoutHash computes the 4-byte struct layout hash embedded in every
// shared file's magic/version header, truncated from the
// same content-hash family used for identifiers.
func LayoutHash(structName string, fieldSizes []int) uint32 {
	var buf []byte
	for _, sz := range fieldSizes {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(sz))
		buf = append(buf, b[:]...)
	}
	h := hash128([]byte(structName), buf)
	return binary.LittleEndian.Uint32(h[:4])
}
