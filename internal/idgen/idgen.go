package idgen

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewTaskID returns a ULID string for a ledger record. IDs generated within
// one process are strictly monotonic, even within the same millisecond.
func NewTaskID(now time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now.UTC()), entropy).String()
}

// NewThreadID returns a UUIDv7 identifier string for a new conversation
// thread. If UUIDv7 generation fails, it falls back to a random UUIDv4.
func NewThreadID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
