package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"basecamp/pkg/platform/sentinel"
)

// Leases track which instance owns a record's workflow task. A lease is
// held for the whole task, across the many short Lock sections it takes,
// so another instance can tell the record is being worked.
type Leases interface {
	// Acquire takes the lease for key without waiting. ok is false when
	// another holder has it.
	Acquire(ctx context.Context, key string) (lease Lease, ok bool, err error)
	Held(ctx context.Context, key string) (bool, error)
}

// Lease is a held task lease.
type Lease interface {
	// Lost is closed when the lease expired or was taken over before
	// Release. It may be nil for leases that cannot be lost.
	Lost() <-chan struct{}
	Release()
}

// MemoryLeases is an in-process Leases.
type MemoryLeases struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLeases() *MemoryLeases {
	return &MemoryLeases{held: make(map[string]struct{})}
}

func (l *MemoryLeases) Acquire(_ context.Context, key string) (Lease, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, false, nil
	}
	l.held[key] = struct{}{}
	return &memoryLease{release: func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}}, true, nil
}

func (l *MemoryLeases) Held(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok, nil
}

type memoryLease struct {
	once    sync.Once
	release func()
}

func (m *memoryLease) Lost() <-chan struct{} { return nil }

func (m *memoryLease) Release() { m.once.Do(m.release) }

const leasePrefix = "basecamp:lease:screening:"

// renewScript extends the key only if this holder still owns it.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// RedisLeases is a cross-process Leases. A held lease is renewed every
// third of its ttl, so it outlives its holder by at most ttl after a crash.
type RedisLeases struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisLeases(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *RedisLeases {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLeases{client: client, ttl: ttl, logger: logger}
}

func (l *RedisLeases) Acquire(ctx context.Context, key string) (Lease, bool, error) {
	token, err := newToken()
	if err != nil {
		return nil, false, err
	}
	redisKey := leasePrefix + key
	ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lease %s: %w: %w", key, sentinel.ErrUnavailable, err)
	}
	if !ok {
		return nil, false, nil
	}
	lease := &redisLease{
		owner: l,
		key:   redisKey,
		token: token,
		lost:  make(chan struct{}),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go lease.renew()
	return lease, true, nil
}

func (l *RedisLeases) Held(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Exists(ctx, leasePrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("check lease %s: %w: %w", key, sentinel.ErrUnavailable, err)
	}
	return n > 0, nil
}

type redisLease struct {
	owner *RedisLeases
	key   string
	token string
	once  sync.Once
	lost  chan struct{}
	stop  chan struct{}
	done  chan struct{}
}

func (r *redisLease) Lost() <-chan struct{} { return r.lost }

// renew keeps the key alive until Release. A failed renewal is retried on
// the next tick; the lease is only reported lost once the key is gone or
// belongs to someone else.
func (r *redisLease) renew() {
	defer close(r.done)
	interval := r.owner.ttl / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		n, err := renewScript.Run(ctx, r.owner.client, []string{r.key}, r.token, r.owner.ttl.Milliseconds()).Int64()
		cancel()
		switch {
		case err != nil:
			r.owner.logger.Warn("task lease renewal failed", "key", r.key, "error", err)
		case n == 0:
			r.owner.logger.Error("task lease lost", "key", r.key)
			close(r.lost)
			return
		}
	}
}

func (r *redisLease) Release() {
	r.once.Do(func() {
		close(r.stop)
		<-r.done
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, r.owner.client, []string{r.key}, r.token).Err(); err != nil {
			r.owner.logger.Warn("task lease release failed; it expires on its own", "key", r.key, "error", err)
		}
	})
}
