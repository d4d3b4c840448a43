package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	IdempotencyHeader       = "Idempotency-Key"
	IdempotentReplayHeader  = "Idempotent-Replay"
	DefaultIdempotencySize  = 10_000
	DefaultIdempotencyTTL   = 24 * time.Hour
	maxIdempotencyKeyLength = 255
)

type cachedResponse struct {
	status      int
	body        any
	fingerprint string
}

// IdempotencyCache remembers accepted submissions by client key so a retried
// POST returns the original response instead of a duplicate error. Keys are
// scoped to the client address, and a replay must carry the same body.
type IdempotencyCache struct {
	lru *expirable.LRU[string, cachedResponse]
}

func NewIdempotencyCache(size int, ttl time.Duration) *IdempotencyCache {
	if size <= 0 {
		size = DefaultIdempotencySize
	}
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyCache{lru: expirable.NewLRU[string, cachedResponse](size, nil, ttl)}
}

func (c *IdempotencyCache) get(key string) (cachedResponse, bool) {
	return c.lru.Get(key)
}

func (c *IdempotencyCache) add(key string, res cachedResponse) {
	c.lru.Add(key, res)
}

func (c *IdempotencyCache) Len() int {
	return c.lru.Len()
}

// scopedKey keeps two clients that pick the same key apart.
func scopedKey(clientIP, key string) string {
	return clientIP + "\x00" + key
}

func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
