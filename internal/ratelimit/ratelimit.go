// Package ratelimit caps how often one client may hit an endpoint, using a
// sliding window per key.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int
}

// Store counts requests per key within a window.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// Key builds "prefix:identifier:class". Identifiers are escaped so a
// crafted value containing ':' cannot land in another bucket.
func Key(prefix, identifier, class string) string {
	return fmt.Sprintf("%s:%s:%s", prefix, sanitize(identifier), class)
}

// sanitize escapes '_' first, then ':', which keeps the mapping injective.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "_", "__")
	return strings.ReplaceAll(s, ":", "_c")
}

func retryAfterSeconds(allowed bool, resetAt, now time.Time) int {
	if allowed {
		return 0
	}
	seconds := int(resetAt.Sub(now).Seconds())
	if seconds < 1 {
		return 1
	}
	return seconds
}
