// Package lock provides per-key exclusive locks as a capability interface:
// acquire returns a release token, and only the holder of that token can
// release. The lifecycle and session services use these locks to serialize
// read-modify-write sequences on a single certificate or session without any
// broader coordination.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"veritag/pkg/platform/sentinel"
)

// Locker is a per-key exclusive lock with a TTL safety net. Acquire returns
// sentinel.ErrConflict when the key is held by another caller. The TTL bounds
// how long a crashed holder can block others; callers still release
// explicitly on every exit path.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Release(ctx context.Context, key, token string) error
}

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryLocker is a single-process Locker backed by a mutex map. It is the
// default wiring when Redis is not configured.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]memoryEntry
	clock func() time.Time
}

// NewMemoryLocker constructs an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]memoryEntry), clock: time.Now}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if entry, ok := l.held[key]; ok && now.Before(entry.expiresAt) {
		return "", fmt.Errorf("lock %q is held: %w", key, sentinel.ErrConflict)
	}

	token := newToken()
	l.held[key] = memoryEntry{token: token, expiresAt: now.Add(ttl)}
	return token, nil
}

func (l *MemoryLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.held[key]
	if !ok {
		return nil
	}
	if entry.token != token {
		// A later holder owns the key now; releasing with a stale token must
		// not free someone else's lock.
		return fmt.Errorf("lock %q held by another token: %w", key, sentinel.ErrConflict)
	}
	delete(l.held, key)
	return nil
}

func newToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure means the process has no usable entropy source;
		// there is nothing sensible to degrade to.
		panic(fmt.Sprintf("lock: entropy source unavailable: %v", err))
	}
	return hex.EncodeToString(buf)
}
