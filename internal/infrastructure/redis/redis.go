// Package redis holds cross-instance coordination for mailbox processing.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	dedupePrefix    = "chreosis:push:"
	lockPrefix      = "chreosis:lock:"
	defaultDedupTTL = 24 * time.Hour
	defaultLockTTL  = 2 * time.Minute
)

var ErrLockBusy = errors.New("lock is held by another worker")

// NewClient connects to Redis from a redis:// URL.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// Deduper records Pub/Sub message ids for a limited time.
type Deduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDeduper(client *redis.Client, ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}
	return &Deduper{client: client, ttl: ttl}
}

// Seen atomically records id and reports whether it was already there.
func (d *Deduper) Seen(ctx context.Context, id string) (bool, error) {
	created, err := d.client.SetNX(ctx, dedupePrefix+id, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record push id: %w", err)
	}
	return !created, nil
}

// Forget removes id so the next delivery of it is treated as new.
func (d *Deduper) Forget(ctx context.Context, id string) error {
	if err := d.client.Del(ctx, dedupePrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to release push id: %w", err)
	}
	return nil
}

// Locker is a redsync mutex per key. Waiting callers retry until the lock
// frees or the context ends.
type Locker struct {
	rs     *redsync.Redsync
	expiry time.Duration
	tries  int
}

func NewLocker(client *redis.Client, expiry time.Duration) *Locker {
	if expiry <= 0 {
		expiry = defaultLockTTL
	}
	return &Locker{
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: expiry,
		tries:  64,
	}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	mutex := l.rs.NewMutex(lockPrefix+key,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(l.tries),
		redsync.WithRetryDelay(250*time.Millisecond),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if errors.Is(err, redsync.ErrFailed) || strings.Contains(err.Error(), "lock already taken") {
			return nil, fmt.Errorf("%w: %s", ErrLockBusy, key)
		}
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	return func() {
		// The job context may be done by now.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if ok, err := mutex.UnlockContext(ctx); !ok || err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to release lock")
		}
	}, nil
}
