// Package ids generates the 128-bit, time-ordered identifiers used for
// every node, edge, and vector. Ids are opaque to callers but sort by
// creation order when compared as raw big-endian bytes, which is what the
// key layout in pkg/codec relies on for deterministic ascending iteration.
package ids

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Size is the byte width of an id: 48-bit timestamp + 80 bits from a v4 UUID.
const Size = 16

// ID is a 128-bit, big-endian, time-ordered identifier.
type ID [Size]byte

// Zero is the empty id, used as an absence sentinel (e.g. no entry point).
var Zero ID

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool { return id == Zero }

// String renders the id as lowercase hex.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns the id's raw big-endian byte representation.
func (id ID) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, id[:])
	return b
}

// Compare returns -1, 0, or 1 comparing the raw byte order of two ids,
// which is also their creation order.
func (id ID) Compare(other ID) int {
	for i := range id {
		if id[i] != other[i] {
			if id[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// New draws a fresh id: a 48-bit millisecond timestamp followed by the
// first 10 bytes of a v4 UUID, 74 of whose 80 bits are random (the UUID's
// version and variant bits are fixed). The entropy draw goes through google/uuid's random
// source (uuid.New's v4 generator) rather than crypto/rand directly, to
// reuse the pack's conventional id-entropy dependency instead of hand-rolled
// RNG plumbing.
func New() ID {
	var id ID
	ms := uint64(time.Now().UnixMilli())
	binary.BigEndian.PutUint16(id[0:2], uint16(ms>>32))
	binary.BigEndian.PutUint32(id[2:6], uint32(ms))

	entropy := uuid.New()
	copy(id[6:16], entropy[0:10])
	return id
}

// FromBytes parses a raw 16-byte id, as read back from a key or value.
func FromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != Size {
		return id, fmt.Errorf("ids: expected %d bytes, got %d", Size, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// FromHex parses an id from its hex string form.
func FromHex(s string) (ID, error) {
	var id ID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("ids: invalid hex %q: %w", s, err)
	}
	return FromBytes(b)
}

// FNV1a32 hashes a string into the 32-bit label/field hash used throughout
// the key layout (label_hash, field_hash).
func FNV1a32(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}
