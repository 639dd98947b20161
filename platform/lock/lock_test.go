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

func TestKeyedMutexSerialisesSameKey(t *testing.T) {
	km := NewKeyedMutex(0)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := km.Acquire(ctx, "opportunity:1")
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, km.Len())
}

func TestKeyedMutexDifferentKeysDoNotBlock(t *testing.T) {
	km := NewKeyedMutex(50 * time.Millisecond)
	ctx := context.Background()

	unlockA, err := km.Acquire(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := km.Acquire(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutexTimesOut(t *testing.T) {
	km := NewKeyedMutex(20 * time.Millisecond)
	ctx := context.Background()

	unlock, err := km.Acquire(ctx, "busy")
	require.NoError(t, err)

	_, err = km.Acquire(ctx, "busy")
	assert.ErrorIs(t, err, ErrNotAcquired)

	unlock()
	unlock()

	again, err := km.Acquire(ctx, "busy")
	require.NoError(t, err)
	again()
	assert.Equal(t, 0, km.Len())
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLockerExclusive(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := NewRedisLocker(client, time.Second, 30*time.Millisecond, WithPollInterval(5*time.Millisecond))
	ctx := context.Background()

	unlock, err := locker.Acquire(ctx, "opportunity:42")
	require.NoError(t, err)
	assert.True(t, mr.Exists("crm:lock:opportunity:42"))

	_, err = locker.Acquire(ctx, "opportunity:42")
	assert.ErrorIs(t, err, ErrNotAcquired)

	unlock()
	assert.False(t, mr.Exists("crm:lock:opportunity:42"))

	again, err := locker.Acquire(ctx, "opportunity:42")
	require.NoError(t, err)
	again()
}

func TestRedisLockerDoesNotReleaseForeignToken(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := NewRedisLocker(client, time.Second, 0, WithKeyPrefix("t:"))
	ctx := context.Background()

	unlock, err := locker.Acquire(ctx, "k")
	require.NoError(t, err)

	// Simulate expiry followed by another holder taking the key.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("t:k", "someone-else"))

	unlock()

	got, err := mr.Get("t:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLockerWaitsForRelease(t *testing.T) {
	_, client := newTestRedis(t)
	locker := NewRedisLocker(client, time.Second, time.Second, WithPollInterval(5*time.Millisecond))
	ctx := context.Background()

	unlock, err := locker.Acquire(ctx, "k")
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		unlock()
	}()

	second, err := locker.Acquire(ctx, "k")
	require.NoError(t, err)
	second()
}
