package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryExclusive(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	lease, err := m.Acquire(ctx, "temp-image:7")
	require.NoError(t, err)

	_, err = m.Acquire(ctx, "temp-image:7")
	assert.ErrorIs(t, err, ErrLocked)

	_, err = m.Acquire(ctx, "temp-image:8")
	assert.NoError(t, err)

	require.NoError(t, lease.Release(ctx))
	require.NoError(t, lease.Release(ctx))

	_, err = m.Acquire(ctx, "temp-image:7")
	assert.NoError(t, err)
}

func TestMemoryConcurrentAcquireHasOneWinner(t *testing.T) {
	m := NewMemory()
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Acquire(context.Background(), "k"); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func newRedisLock(t *testing.T) (*Redis, redismock.ClientMock) {
	t.Helper()
	client, mock := redismock.NewClientMock()
	l, err := NewRedis(client, 30*time.Second)
	require.NoError(t, err)
	l.newOwner = func() string { return "owner-1" }
	return l, mock
}

func TestRedisAcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	l, mock := newRedisLock(t)
	key := keyPrefix + "temp-image:7"

	mock.ExpectSetNX(key, "owner-1", 30*time.Second).SetVal(true)
	mock.ExpectEvalSha(releaseScript.Hash(), []string{key}, "owner-1").SetVal(int64(1))

	lease, err := l.Acquire(ctx, "temp-image:7")
	require.NoError(t, err)
	require.NoError(t, lease.Release(ctx))
	require.NoError(t, lease.Release(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisAcquireHeld(t *testing.T) {
	l, mock := newRedisLock(t)
	mock.ExpectSetNX(keyPrefix+"k", "owner-1", 30*time.Second).SetVal(false)

	_, err := l.Acquire(context.Background(), "k")
	assert.ErrorIs(t, err, ErrLocked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisAcquireError(t *testing.T) {
	l, mock := newRedisLock(t)
	mock.ExpectSetNX(keyPrefix+"k", "owner-1", 30*time.Second).SetErr(errors.New("connection refused"))

	_, err := l.Acquire(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLocked)
}

func TestRedisReleaseSkipsForeignOwner(t *testing.T) {
	ctx := context.Background()
	l, mock := newRedisLock(t)
	key := keyPrefix + "k"

	mock.ExpectSetNX(key, "owner-1", 30*time.Second).SetVal(true)
	// Another holder owns the key: the script deletes nothing.
	mock.ExpectEvalSha(releaseScript.Hash(), []string{key}, "owner-1").SetVal(int64(0))

	lease, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, lease.Release(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisReleaseExpiredKey(t *testing.T) {
	ctx := context.Background()
	l, mock := newRedisLock(t)
	key := keyPrefix + "k"

	mock.ExpectSetNX(key, "owner-1", 30*time.Second).SetVal(true)
	mock.ExpectEvalSha(releaseScript.Hash(), []string{key}, "owner-1").SetVal(int64(0))

	lease, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	assert.NoError(t, lease.Release(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisReleaseError(t *testing.T) {
	ctx := context.Background()
	l, mock := newRedisLock(t)
	key := keyPrefix + "k"

	mock.ExpectSetNX(key, "owner-1", 30*time.Second).SetVal(true)
	mock.ExpectEvalSha(releaseScript.Hash(), []string{key}, "owner-1").SetErr(errors.New("connection reset"))

	lease, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	assert.Error(t, lease.Release(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRedisRequiresClient(t *testing.T) {
	_, err := NewRedis(nil, time.Second)
	assert.Error(t, err)
}
