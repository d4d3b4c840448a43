package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"basecamp/pkg/requestcontext"
)

// Emitter is satisfied by publisher.Publisher.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Logger writes each event as an audit log line and hands it to the emitter.
// A nil emitter only logs.
type Logger struct {
	textLogger *slog.Logger
	emitter    Emitter
}

func NewLogger(textLogger *slog.Logger, emitter Emitter) *Logger {
	if textLogger == nil {
		textLogger = slog.Default()
	}
	return &Logger{textLogger: textLogger, emitter: emitter}
}

// Record fills request id, actor and timestamp from ctx when unset, then
// logs and emits. Emission failures are logged, never returned: an audit
// sink outage must not fail the action being audited.
func (l *Logger) Record(ctx context.Context, event Event) {
	if l == nil {
		return
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Actor == "" {
		event.Actor = requestcontext.AdminActor(ctx)
	}
	if event.Actor == "" {
		event.Actor = ActorSystem
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}

	l.textLogger.InfoContext(ctx, string(event.Action),
		"log_type", "audit",
		"event", string(event.Action),
		"record_id", event.RecordID,
		"actor", event.Actor,
		"email", event.Email,
		"client_ip", event.ClientIP,
		"user_agent", event.UserAgent,
		"detail", event.Detail,
		"request_id", event.RequestID,
	)

	if l.emitter == nil {
		return
	}
	if err := l.emitter.Emit(ctx, event); err != nil {
		l.textLogger.ErrorContext(ctx, "failed to emit audit event",
			"error", err,
			"event", string(event.Action),
			"record_id", event.RecordID,
		)
	}
}
