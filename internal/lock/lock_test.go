package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLock_AcquireRelease(t *testing.T) {
	mr, client := setupTestRedis(t)
	l := NewRedisLock(client)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "populate:UndangUndang", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("taxrag:lock:populate:UndangUndang"))

	ok, err = l.Acquire(ctx, "populate:UndangUndang", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Release(ctx, "populate:UndangUndang"))
	assert.False(t, mr.Exists("taxrag:lock:populate:UndangUndang"))

	ok, err = l.Acquire(ctx, "populate:UndangUndang", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_OtherOwnerCannotRelease(t *testing.T) {
	mr, client := setupTestRedis(t)
	first := NewRedisLock(client)
	second := NewRedisLock(client)
	ctx := context.Background()

	assert.NotEqual(t, first.OwnerID(), second.OwnerID())

	ok, err := first.Acquire(ctx, "populate", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(ctx, "populate", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, second.Release(ctx, "populate"))
	assert.True(t, mr.Exists("taxrag:lock:populate"))
}

func TestRedisLock_Expires(t *testing.T) {
	mr, client := setupTestRedis(t)
	l := NewRedisLock(client)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "populate", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = NewRedisLock(client).Acquire(ctx, "populate", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_ReleaseUnheld(t *testing.T) {
	_, client := setupTestRedis(t)
	assert.NoError(t, NewRedisLock(client).Release(context.Background(), "nothing"))
}

func TestRedisLock_Unreachable(t *testing.T) {
	mr, client := setupTestRedis(t)
	l := NewRedisLock(client)
	mr.Close()

	_, err := l.Acquire(context.Background(), "populate", time.Minute)
	assert.Error(t, err)
	assert.Error(t, l.Ping(context.Background()))
}

func TestNewRedisLockFromURL(t *testing.T) {
	mr := miniredis.RunT(t)

	l, err := NewRedisLockFromURL("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	defer l.Close()
	assert.NoError(t, l.Ping(context.Background()))

	_, err = NewRedisLockFromURL("://bad")
	assert.Error(t, err)
}

func TestLocalLock(t *testing.T) {
	l := NewLocalLock()
	ctx := context.Background()

	ok, _ := l.Acquire(ctx, "populate", time.Minute)
	assert.True(t, ok)
	ok, _ = l.Acquire(ctx, "populate", time.Minute)
	assert.False(t, ok)
	ok, _ = l.Acquire(ctx, "other", time.Minute)
	assert.True(t, ok)

	require.NoError(t, l.Release(ctx, "populate"))
	ok, _ = l.Acquire(ctx, "populate", time.Minute)
	assert.True(t, ok)
}

func TestLocalLock_Expires(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalLock()
	l.clock = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := l.Acquire(ctx, "populate", time.Minute)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = l.Acquire(ctx, "populate", time.Minute)
	assert.True(t, ok)
}

func TestLocalLock_SingleWinner(t *testing.T) {
	l := NewLocalLock()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Acquire(context.Background(), "populate", time.Minute); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
