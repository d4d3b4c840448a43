// Package audit records who did what to a screening. Events are append-only;
// PII is reduced before an event is built (redacted email, anonymized IP,
// summarized user agent).
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	ActionScreeningSubmitted Action = "screening_submitted"
	ActionDuplicateRejected  Action = "screening_duplicate_rejected"
	ActionScreeningViewed    Action = "screening_viewed"
	ActionCancelRequested    Action = "screening_cancel_requested"
	ActionRerunRequested     Action = "screening_rerun_requested"
)

// Actor values for events not triggered by an operator.
const (
	ActorCandidate = "candidate"
	ActorSystem    = "system"
)

// Event is one audit entry. RecordID is the screening the action touched.
type Event struct {
	ID        uuid.UUID
	Timestamp time.Time
	Action    Action
	RecordID  string
	Actor     string
	Email     string
	ClientIP  string
	UserAgent string
	Detail    string
	RequestID string
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByRecord(ctx context.Context, recordID string) ([]Event, error)
}
