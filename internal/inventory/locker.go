package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// ErrLockNotObtained indicates the product lock stayed busy past the retry budget.
var ErrLockNotObtained = errors.New("inventory: product lock not obtained")

// Locker provides mutual exclusion per key.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// LockProducts locks every product once, in sorted order so two postings
// touching the same products cannot deadlock. The returned func releases all.
func LockProducts(ctx context.Context, locker Locker, productIDs []string) (func(), error) {
	ids := make([]string, 0, len(productIDs))
	seen := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	releases := make([]func(), 0, len(ids))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, id := range ids {
		release, err := locker.Lock(ctx, shared.ProductLockKey(id))
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

// LocalLocker is an in-process keyed mutex.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker constructs an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*lockSlot)}
}

// Lock blocks until key is free or ctx is done.
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.ch
				l.unref(key, slot)
			})
		}, nil
	case <-ctx.Done():
		l.unref(key, slot)
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) unref(key string, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}

// RedisLocker shares product locks between processes through Redis.
type RedisLocker struct {
	client  *redislock.Client
	ttl     time.Duration
	backoff time.Duration
	retries int
}

// NewRedisLocker builds a RedisLocker. The lock expires after ttl if the
// holder dies; waiters retry with a linear backoff.
func NewRedisLocker(rdb redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{client: redislock.New(rdb), ttl: ttl, backoff: 25 * time.Millisecond, retries: 200}
}

// Lock obtains key or fails with ErrLockNotObtained.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lock, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.backoff), l.retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrLockNotObtained, key)
	}
	if err != nil {
		return nil, err
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}
