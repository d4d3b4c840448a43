// Package tracer is a small tracing facade so workflow code does not import
// OpenTelemetry directly.
//
// Implementations:
//   - NoopTracer for tests
//   - OTelTracer backed by the global OpenTelemetry provider
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Span is an active trace span. End must be called exactly once.
type Span interface {
	// End completes the span; a non-nil err marks it failed.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: int64(value)}
}

// Duration records the value in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// HashEmail returns a short SHA-256 prefix of an email so traces can be
// correlated without carrying the address.
func HashEmail(email string) string {
	if email == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(email))
	return hex.EncodeToString(hash[:8])
}

// Span names.
const (
	SpanWorkflowRun      = "screening.workflow.run"
	SpanProviderInitiate = "screening.provider.initiate"
	SpanProviderPoll     = "screening.provider.poll"
	SpanProviderCancel   = "screening.provider.cancel"
	SpanNoticeDeliver    = "screening.notice.deliver"
	SpanAccountProvision = "screening.account.provision"
)

// Attribute keys.
const (
	AttrScreeningID = "screening.id"
	AttrProvider    = "screening.provider"
	AttrTier        = "screening.tier"
	AttrStatus      = "screening.status"
	AttrAttempt     = "poll.attempt"
	AttrReportID    = "report.id"
	AttrEmailHash   = "email.hash"
)

// Event names.
const (
	EventStatusChanged   = "status.changed"
	EventCancelObserved  = "cancel.observed"
	EventTransientFailed = "poll.transient_failure"
)
