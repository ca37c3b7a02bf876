// Package idgen allocates the 128-bit, lexicographically-sortable
// identifiers used for Memory and Contradiction rows.
package idgen

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// source serializes ULID generation behind a monotonic entropy source so
// concurrently-allocated ids never collide even when minted within the same
// millisecond.
var source = struct {
	sync.Mutex
	entropy *ulid.MonotonicEntropy
}{entropy: ulid.Monotonic(rand.Reader, 0)}

// New allocates a new id.
func New() string {
	source.Lock()
	defer source.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), source.entropy).String()
}
