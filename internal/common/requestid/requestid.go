// Package requestid creates and inspects the ids that tag every outgoing request.
// Ids are UUIDv7 strings so that they sort by creation time.
package requestid

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

// New returns a new UUIDv7 id. It falls back to a random UUIDv4 if v7 generation fails.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Valid reports whether s parses as a UUID of any version.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// IssuedAt extracts the creation time from a UUIDv7 id. The second result is false when s
// is not a UUIDv7.
func IssuedAt(s string) (time.Time, bool) {
	id, err := uuid.Parse(s)
	if err != nil || id.Version() != uuid.Version(7) {
		return time.Time{}, false
	}
	// the timestamp is the top 48 bits, in milliseconds
	ms := binary.BigEndian.Uint64(id[0:8]) >> 16
	return time.UnixMilli(int64(ms)), true
}
