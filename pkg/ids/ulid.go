// Package ids generates sortable identifiers for storage keys and event IDs.
package ids

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewULID returns a lexicographically sortable, monotonic ULID string.
func NewULID() string {
	return NewULIDAt(time.Now())
}

// NewULIDAt returns a ULID for the given timestamp.
func NewULIDAt(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
