package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	audit "basecamp/pkg/platform/audit"
)

// Store implements audit.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append is idempotent on event id so a retried emit cannot double-write.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	const query = `
		INSERT INTO audit_events (
			id, occurred_at, action, record_id, actor,
			email, client_ip, user_agent, detail, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.Timestamp,
		string(event.Action),
		event.RecordID,
		event.Actor,
		event.Email,
		event.ClientIP,
		event.UserAgent,
		event.Detail,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByRecord(ctx context.Context, recordID string) ([]audit.Event, error) {
	const query = `
		SELECT id, occurred_at, action, record_id, actor,
			email, client_ip, user_agent, detail, request_id
		FROM audit_events
		WHERE record_id = $1
		ORDER BY occurred_at ASC, id ASC
	`
	return s.query(ctx, query, recordID)
}

// ListRecent returns the newest events across all records.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	if limit <= 0 {
		return nil, nil
	}
	const query = `
		SELECT id, occurred_at, action, record_id, actor,
			email, client_ip, user_agent, detail, request_id
		FROM audit_events
		ORDER BY occurred_at DESC, id DESC
		LIMIT $1
	`
	return s.query(ctx, query, limit)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e      audit.Event
			action string
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &action, &e.RecordID, &e.Actor,
			&e.Email, &e.ClientIP, &e.UserAgent, &e.Detail, &e.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Action = audit.Action(action)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
