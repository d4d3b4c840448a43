package store

import (
	"encoding/json"
	"time"

	"basecamp/internal/screening/models"
	"basecamp/pkg/platform/outbox"
	"basecamp/pkg/platform/privacy"
)

// Lifecycle event types published through the outbox.
const (
	AggregateType           = "screening"
	EventStatusChanged      = "screening.status_changed"
	EventNoticeFailed       = "screening.pre_adverse_notice_failed"
	EventAccountProvisioned = "screening.account_provisioned"
)

// Event is the outbox payload. Email is redacted.
type Event struct {
	RecordID  string           `json:"record_id"`
	Email     string           `json:"email"`
	Provider  string           `json:"provider"`
	From      models.Status    `json:"from,omitempty"`
	To        models.Status    `json:"to"`
	ErrorKind models.ErrorKind `json:"error_kind,omitempty"`
	UserID    string           `json:"user_id,omitempty"`
	RerunOf   string           `json:"rerun_of,omitempty"`
	At        time.Time        `json:"at"`
}

// events derives the outbox entries implied by a write. before is nil on
// create.
func events(before, after *models.Record, now time.Time) []*outbox.Entry {
	base := Event{
		RecordID: after.ID.String(),
		Email:    privacy.RedactEmail(after.Email),
		Provider: after.Provider,
		To:       after.Status,
		At:       now,
	}
	if after.RerunOf != nil {
		base.RerunOf = after.RerunOf.String()
	}
	if after.Error != nil {
		base.ErrorKind = after.Error.Kind
	}

	var out []*outbox.Entry
	if before == nil || before.Status != after.Status {
		ev := base
		if before != nil {
			ev.From = before.Status
		}
		out = append(out, entry(EventStatusChanged, ev))
	}
	if after.HasErrorKind(models.ErrorKindNotificationDelivery) &&
		(before == nil || !before.HasErrorKind(models.ErrorKindNotificationDelivery)) {
		out = append(out, entry(EventNoticeFailed, base))
	}
	if after.UserID != nil && (before == nil || before.UserID == nil) {
		ev := base
		ev.UserID = after.UserID.String()
		out = append(out, entry(EventAccountProvisioned, ev))
	}
	return out
}

func entry(eventType string, ev Event) *outbox.Entry {
	payload, _ := json.Marshal(ev) //nolint:errchkjson // plain struct of strings and times
	return outbox.NewEntry(AggregateType, ev.RecordID, eventType, payload, ev.At)
}
