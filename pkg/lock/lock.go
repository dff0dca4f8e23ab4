package lock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lvalenta/fulfillment-core/pkg/redis"
)

const (
	defaultTTL       = 30 * time.Second
	defaultRetryWait = 25 * time.Millisecond
)

// store defines the redis operations the lock needs.
type store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(parts ...string) string
}

// Locker serializes writers that touch the same aggregates. Keys are always
// acquired in lexicographic order so two callers locking the same pair can
// never deadlock against each other.
type Locker struct {
	client    store
	ttl       time.Duration
	retryWait time.Duration
}

// ReleaseFunc releases every key acquired by AcquireOrdered.
type ReleaseFunc func(ctx context.Context) error

// New constructs a redis-backed Locker.
func New(client *redis.Client, ttl time.Duration) (*Locker, error) {
	if client == nil {
		return nil, errors.New("redis client required for locker")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Locker{client: client, ttl: ttl, retryWait: defaultRetryWait}, nil
}

// AcquireOrdered blocks until every key is held or ctx is done. Keys are
// deduplicated and sorted before acquisition.
func (l *Locker) AcquireOrdered(ctx context.Context, keys ...string) (ReleaseFunc, error) {
	if len(keys) == 0 {
		return nil, errors.New("at least one lock key is required")
	}

	ordered := dedupeSorted(keys)
	owner := uuid.NewString()

	held := make([]string, 0, len(ordered))
	for _, key := range ordered {
		namespaced := l.client.LockKey(key)
		if err := l.acquireOne(ctx, namespaced, owner); err != nil {
			l.releaseAll(context.WithoutCancel(ctx), held, owner)
			return nil, err
		}
		held = append(held, namespaced)
	}

	return func(ctx context.Context) error {
		return l.releaseAll(ctx, held, owner)
	}, nil
}

func (l *Locker) acquireOne(ctx context.Context, key, owner string) error {
	for {
		ok, err := l.client.SetNX(ctx, key, owner, l.ttl)
		if err != nil {
			return fmt.Errorf("setnx %s: %w", key, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retryWait):
		}
	}
}

// releaseAll frees keys in reverse acquisition order, skipping keys whose owner
// token no longer matches (TTL expiry handed them to someone else).
func (l *Locker) releaseAll(ctx context.Context, held []string, owner string) error {
	var firstErr error
	for i := len(held) - 1; i >= 0; i-- {
		key := held[i]
		value, err := l.client.Get(ctx, key)
		if err != nil {
			if redis.IsNil(err) {
				continue
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("read lock owner %s: %w", key, err)
			}
			continue
		}
		if value != owner {
			continue
		}
		if err := l.client.Del(ctx, key); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("delete lock %s: %w", key, err)
		}
	}
	return firstErr
}

func dedupeSorted(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	ordered := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		ordered = append(ordered, key)
	}
	sort.Strings(ordered)
	return ordered
}
