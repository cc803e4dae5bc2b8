package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritag/pkg/platform/sentinel"
)

func TestMemoryLocker_Exclusive(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	token, err := l.Acquire(ctx, "cert:a", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, err = l.Acquire(ctx, "cert:a", time.Minute)
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	// Unrelated keys proceed in parallel.
	other, err := l.Acquire(ctx, "cert:b", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, other)

	require.NoError(t, l.Release(ctx, "cert:a", token))
	_, err = l.Acquire(ctx, "cert:a", time.Minute)
	assert.NoError(t, err)
}

func TestMemoryLocker_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()
	now := time.Now()
	l.clock = func() time.Time { return now }

	stale, err := l.Acquire(ctx, "cert:a", time.Second)
	require.NoError(t, err)

	// Holder crashed; TTL elapses.
	now = now.Add(2 * time.Second)

	fresh, err := l.Acquire(ctx, "cert:a", time.Second)
	require.NoError(t, err)
	require.NotEqual(t, stale, fresh)

	// The stale token must not release the new holder's lock.
	err = l.Release(ctx, "cert:a", stale)
	assert.ErrorIs(t, err, sentinel.ErrConflict)
	assert.NoError(t, l.Release(ctx, "cert:a", fresh))
}

func TestMemoryLocker_ReleaseIdempotent(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	token, err := l.Acquire(ctx, "cert:a", time.Minute)
	require.NoError(t, err)
	require.NoError(t, l.Release(ctx, "cert:a", token))
	// Second release of a freed key is a no-op.
	assert.NoError(t, l.Release(ctx, "cert:a", token))
}

func TestMemoryLocker_ConcurrentAcquire(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	const goroutines = 32
	results := make(chan error, goroutines)
	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Acquire(ctx, "cert:contended", time.Minute)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, busy int
	for err := range results {
		if err == nil {
			ok++
		} else {
			busy++
		}
	}
	assert.Equal(t, 1, ok, "exactly one winner")
	assert.Equal(t, goroutines-1, busy)
}
