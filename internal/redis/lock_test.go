package redisclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLocker(t *testing.T, opts LockOptions) (Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, opts), mr
}

func TestRedisLockerReleasesKey(t *testing.T) {
	locker, mr := newRedisLocker(t, LockOptions{TTL: time.Second})

	err := locker.WithLock(context.Background(), "slot:1:2025-03-03", func(ctx context.Context) error {
		assert.True(t, mr.Exists("lock:slot:1:2025-03-03"))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("lock:slot:1:2025-03-03"))
}

func TestRedisLockerPropagatesError(t *testing.T) {
	locker, mr := newRedisLocker(t, LockOptions{})
	boom := errors.New("boom")

	err := locker.WithLock(context.Background(), "product:7", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("lock:product:7"))
}

func TestRedisLockerHeldKeyTimesOut(t *testing.T) {
	locker, mr := newRedisLocker(t, LockOptions{Wait: 50 * time.Millisecond, RetryInterval: 10 * time.Millisecond})
	require.NoError(t, mr.Set("lock:product:7", "someone-else"))

	called := false
	err := locker.WithLock(context.Background(), "product:7", func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.False(t, called)

	// a foreign token is never deleted
	v, err := mr.Get("lock:product:7")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", v)
}

func TestRedisLockerWaitsForRelease(t *testing.T) {
	locker, mr := newRedisLocker(t, LockOptions{Wait: time.Second, RetryInterval: 5 * time.Millisecond})
	require.NoError(t, mr.Set("lock:product:7", "someone-else"))

	go func() {
		time.Sleep(30 * time.Millisecond)
		mr.Del("lock:product:7")
	}()

	err := locker.WithLock(context.Background(), "product:7", func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestRedisLockerSerializes(t *testing.T) {
	locker, _ := newRedisLocker(t, LockOptions{Wait: 2 * time.Second, RetryInterval: 2 * time.Millisecond})

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLock(context.Background(), "slot:3:2025-03-03", func(context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInside))
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker(0)
	ctx := context.Background()

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- l.WithLock(ctx, "product:1", func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := l.WithLock(ctx, "product:1", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	// other keys are independent
	assert.NoError(t, l.WithLock(ctx, "product:2", func(context.Context) error { return nil }))

	close(release)
	require.NoError(t, <-done)
	assert.NoError(t, l.WithLock(ctx, "product:1", func(context.Context) error { return nil }))
	assert.Empty(t, l.keys)
}

func TestLocalLockerHonoursContext(t *testing.T) {
	l := NewLocalLocker(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = l.WithLock(context.Background(), "k", func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	time.AfterFunc(20*time.Millisecond, cancel)
	err := l.WithLock(ctx, "k", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrLockNotAcquired)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "slot:4:2025-03-03", SlotKey(4, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "product:9", ProductKey(9))
}
