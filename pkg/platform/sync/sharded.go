package sync

import (
	"context"
	"hash/fnv"
)

const shardCount = 32

// ShardedMutex serializes work per key without one global lock. Keys hash
// onto a fixed set of shards, so unrelated keys may share a shard; callers
// must not hold two keys at once.
type ShardedMutex struct {
	shards [shardCount]chan struct{}
}

// NewShardedMutex creates a ShardedMutex with 32 shards.
func NewShardedMutex() *ShardedMutex {
	m := &ShardedMutex{}
	for i := range m.shards {
		m.shards[i] = make(chan struct{}, 1)
	}
	return m
}

// Lock blocks until the key's shard is free.
func (m *ShardedMutex) Lock(key string) {
	m.shards[shardFor(key)] <- struct{}{}
}

// LockContext acquires the key's shard or gives up when ctx is done.
func (m *ShardedMutex) LockContext(ctx context.Context, key string) error {
	select {
	case m.shards[shardFor(key)] <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unlock releases the key's shard. Unlocking a free shard panics, like
// sync.Mutex.
func (m *ShardedMutex) Unlock(key string) {
	select {
	case <-m.shards[shardFor(key)]:
	default:
		panic("sync: unlock of unlocked shard")
	}
}

func shardFor(key string) int {
	if key == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % shardCount)
}
