//go:build integration

package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"veritag/pkg/platform/lock"
	"veritag/pkg/platform/sentinel"
	"veritag/pkg/testutil/containers"
)

func TestRedisLockerExclusivity(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	locker := lock.NewRedisLocker(rc.Client)

	token, err := locker.Acquire(ctx, "cert:abc", 5*time.Second)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "cert:abc", 5*time.Second)
	require.ErrorIs(t, err, sentinel.ErrConflict)

	require.NoError(t, locker.Release(ctx, "cert:abc", token))

	_, err = locker.Acquire(ctx, "cert:abc", 5*time.Second)
	require.NoError(t, err)
}

func TestRedisLockerStaleTokenCannotRelease(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	locker := lock.NewRedisLocker(rc.Client)

	token, err := locker.Acquire(ctx, "cert:xyz", 5*time.Second)
	require.NoError(t, err)

	err = locker.Release(ctx, "cert:xyz", "not-the-token")
	require.ErrorIs(t, err, sentinel.ErrConflict)

	require.NoError(t, locker.Release(ctx, "cert:xyz", token))
}

func TestRedisLockerTTLExpiry(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	locker := lock.NewRedisLocker(rc.Client)

	_, err := locker.Acquire(ctx, "cert:ttl", 500*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(time.Second)

	_, err = locker.Acquire(ctx, "cert:ttl", time.Second)
	require.NoError(t, err)
}
