// Package ids defines the 128-bit opaque identifiers used throughout the
// data model (§3): entities, transactions, artifacts, and blocks all share
// the same representation.
package ids

import "github.com/google/uuid"

// ID is a 128-bit opaque identifier, wire-compatible with a RFC 4122 UUID's
// 16-byte binary form regardless of whether the bytes were actually
// generated by a UUID algorithm.
type ID [16]byte

// Nil is the all-zero identifier, the conventional empty/unset value. The
// pending queue does not use it as a link: both of its ends are marked with
// QueueEnd.
var Nil ID

// QueueEnd is the all-ones identifier; it is the pending-queue sentinel at
// both ends, the first entry's prev and the last entry's next (§3
// Transaction record).
var QueueEnd = ID{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// RootBlock is the well-known identifier of the chain's root block (§3
// Block record). It is conventionally the all-zero identifier: the first canonized block's
// PreviousBlockID points at it and it is never itself a stored record.
var RootBlock ID

// New generates a fresh random 128-bit identifier.
func New() ID {
	return ID(uuid.New())
}

// FromBytes copies exactly 16 bytes into an ID, failing if b is any other
// length.
func FromBytes(b []byte) (ID, bool) {
	var id ID
	if len(b) != len(id) {
		return id, false
	}
	copy(id[:], b)
	return id, true
}

// MustParse parses a canonical UUID string (used in tests and fixtures that
// quote literal ids from the spec's end-to-end scenarios).
func MustParse(s string) ID {
	u := uuid.MustParse(s)
	return ID(u)
}

// String renders the identifier in canonical UUID text form.
func (id ID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether id is the all-zero sentinel.
func (id ID) IsNil() bool {
	return id == Nil
}

// IsQueueEnd reports whether id is the all-ones pending-queue end sentinel.
func (id ID) IsQueueEnd() bool {
	return id == QueueEnd
}

// Bytes returns the 16-byte slice form of id, sharing no backing array with
// id itself.
func (id ID) Bytes() []byte {
	out := make([]byte, 16)
	copy(out, id[:])
	return out
}
