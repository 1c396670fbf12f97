package redisclient

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// LocalLocker serializes critical sections within one process. Each key is a
// one-slot semaphore so waiting honours context cancellation and the wait
// budget.
type LocalLocker struct {
	mu   sync.Mutex
	keys map[string]*localKey
	wait time.Duration
}

type localKey struct {
	sem  chan struct{}
	refs int
}

// NewLocalLocker returns an in-process locker. wait bounds how long a caller
// queues for a busy key; zero means fail immediately.
func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{keys: make(map[string]*localKey), wait: wait}
}

func (l *LocalLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	k := l.ref(key)
	defer l.unref(key)

	if err := l.acquire(ctx, k); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	defer func() { <-k.sem }()

	return fn(ctx)
}

func (l *LocalLocker) acquire(ctx context.Context, k *localKey) error {
	select {
	case k.sem <- struct{}{}:
		return nil
	default:
	}
	if l.wait <= 0 {
		return ErrLockNotAcquired
	}

	timer := time.NewTimer(l.wait)
	defer timer.Stop()
	select {
	case k.sem <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrLockNotAcquired
	case <-ctx.Done():
		return ErrLockNotAcquired
	}
}

func (l *LocalLocker) ref(key string) *localKey {
	l.mu.Lock()
	defer l.mu.Unlock()
	k, ok := l.keys[key]
	if !ok {
		k = &localKey{sem: make(chan struct{}, 1)}
		l.keys[key] = k
	}
	k.refs++
	return k
}

func (l *LocalLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := l.keys[key]
	k.refs--
	if k.refs == 0 {
		delete(l.keys, key)
	}
}
