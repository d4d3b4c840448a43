package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	dErrors "basecamp/pkg/domain-errors"
	"basecamp/pkg/platform/httputil"
	"basecamp/pkg/platform/privacy"
	"basecamp/pkg/requestcontext"
)

// Middleware enforces a per-client-IP limit.
type Middleware struct {
	store   Store
	limit   int
	window  time.Duration
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Middleware)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Middleware) {
		m.logger = logger
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(m *Middleware) {
		m.metrics = metrics
	}
}

// New returns a limiter admitting limit requests per window per IP. A
// non-positive limit disables it.
func New(store Store, limit int, window time.Duration, opts ...Option) *Middleware {
	m := &Middleware{store: store, limit: limit, window: window}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// PerIP limits by the client IP the metadata middleware resolved. Store
// errors fail open.
func (m *Middleware) PerIP(class string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil || m.limit <= 0 || m.window <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)

			result, err := m.store.Allow(ctx, Key("ip", ip, class), m.limit, m.window)
			if err != nil {
				if m.metrics != nil {
					m.metrics.StoreErrors.Inc()
				}
				m.logger.ErrorContext(ctx, "failed to check rate limit",
					"error", err,
					"class", class,
					"ip_prefix", privacy.AnonymizeIP(ip),
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			addHeaders(w, result)
			if !result.Allowed {
				m.record(class, "rejected")
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"class", class,
					"ip_prefix", privacy.AnonymizeIP(ip),
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests from this address; try again later"))
				return
			}
			m.record(class, "allowed")
			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) record(class, outcome string) {
	if m.metrics != nil {
		m.metrics.Decisions.WithLabelValues(class, outcome).Inc()
	}
}

func addHeaders(w http.ResponseWriter, result *Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
