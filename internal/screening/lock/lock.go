// Package lock serializes work on a single screening record. The
// orchestrator holds a record's lock for each read-modify-write step so a
// running workflow and an admin cancel never interleave.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"basecamp/pkg/platform/sentinel"
	psync "basecamp/pkg/platform/sync"
)

// Locker acquires a per-key lock. The returned func releases it and is safe
// to call once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Sharded is an in-process Locker.
type Sharded struct {
	mu *psync.ShardedMutex
}

func NewSharded() *Sharded {
	return &Sharded{mu: psync.NewShardedMutex()}
}

func (l *Sharded) Lock(ctx context.Context, key string) (func(), error) {
	if err := l.mu.LockContext(ctx, key); err != nil {
		return nil, err
	}
	return func() { l.mu.Unlock(key) }, nil
}

const (
	keyPrefix     = "basecamp:lock:screening:"
	defaultTTL    = 30 * time.Second
	retryInterval = 25 * time.Millisecond
)

// releaseScript deletes the key only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Redis is a cross-process Locker built on SET NX PX. Locks expire after
// ttl so a crashed holder cannot wedge a record. The lock is not renewed:
// ttl must exceed the longest call made while holding it, which is the
// vendor cancel in RequestCancel. Config validation enforces that against
// the adapter timeouts. Long-running ownership uses Leases instead.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedis(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, ttl: ttl, logger: logger}
}

func (l *Redis) Lock(ctx context.Context, key string) (func(), error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	redisKey := keyPrefix + key

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("acquire lock %s: %w: %w", key, sentinel.ErrUnavailable, err)
		}
		if ok {
			return func() { l.release(ctx, key, redisKey, token) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock %s: %w: %w", key, sentinel.ErrLockHeld, ctx.Err())
		case <-ticker.C:
		}
	}
}

// release drops the lock. A lock that expired while held is logged: the
// holder ran part of its critical section without exclusion.
func (l *Redis) release(ctx context.Context, key, redisKey, token string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	n, err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Int64()
	switch {
	case err != nil:
		l.logger.WarnContext(ctx, "record lock release failed; it expires on its own",
			"key", key, "ttl", l.ttl.String(), "error", err)
	case n == 0:
		l.logger.ErrorContext(ctx, "record lock expired before release",
			"key", key, "ttl", l.ttl.String())
	}
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// IsHeld reports whether err came from waiting on a lock someone else holds.
func IsHeld(err error) bool {
	return errors.Is(err, sentinel.ErrLockHeld)
}
