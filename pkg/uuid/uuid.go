// Package uuid provides UUID v7 generation.
// UUID v7 is sortable by timestamp, which keeps history listings and
// SQLite indexes in insertion order without a separate sequence column.
package uuid

import (
	"fmt"
	"math/rand"
	"time"
)

// UUID represents a UUID v7 identifier.
type UUID [16]byte

// NewV7 generates a new UUID v7.
// Layout (draft-ietf-uuidrev-rfc4122bis):
// - 48 bits: UNIX timestamp in milliseconds
// - 12 bits: random, with version nibble 0111
// - 2 bits: variant
// - 62 bits: random
func NewV7() UUID {
	now := time.Now().UnixMilli()

	var u UUID

	// Timestamp (48 bits, ms precision) — bytes 0-5
	u[0] = byte(now >> 40)
	u[1] = byte(now >> 32)
	u[2] = byte(now >> 24)
	u[3] = byte(now >> 16)
	u[4] = byte(now >> 8)
	u[5] = byte(now)

	// Random part (64 bits) — bytes 6-13
	randomVal := rand.Uint64()

	// Version nibble 0111 in the high half of byte 6
	u[6] = 0x70 | byte((randomVal>>56)&0x0f)

	// Variant 10xxxxxx per RFC 4122
	u[7] = 0x80 | byte((randomVal>>48)&0x3f)
	u[8] = byte(randomVal >> 40)
	u[9] = byte(randomVal >> 32)
	u[10] = byte(randomVal >> 24)
	u[11] = byte(randomVal >> 16)
	u[12] = byte(randomVal >> 8)
	u[13] = byte(randomVal)

	// Final 2 random bytes
	u[14] = byte(rand.Intn(256))
	u[15] = byte(rand.Intn(256))

	return u
}

// String returns the UUID in standard form: xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx
func (u UUID) String() string {
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		u[0:4],
		u[4:6],
		u[6:8],
		u[8:10],
		u[10:16],
	)
}
