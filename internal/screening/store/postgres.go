package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"basecamp/internal/screening/models"
	"basecamp/pkg/domain"
	outboxpg "basecamp/pkg/platform/outbox/postgres"
	"basecamp/pkg/requestcontext"
)

const uniqueViolation = "23505"

// PostgresStore persists records in screening_records. Every write appends
// its lifecycle events to the outbox in the same transaction.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const recordColumns = `id, email, provider, tier, status, external_report_id, candidate, credential_hash,
	consent, decision, report_artifact_url, error, user_id, cancel_requested, poll_attempts,
	notice_sent_at, profile_created_at, rerun_of, version, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, rec *models.Record) error {
	if rec.Version == 0 {
		rec.Version = 1
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		args, err := recordArgs(rec)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO screening_records (`+recordColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
			args...)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return models.ErrDuplicateActive
			}
			return fmt.Errorf("insert screening record: %w", err)
		}
		return s.appendEvents(ctx, tx, nil, rec)
	})
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.ScreeningID) (*models.Record, error) {
	return s.findOne(ctx, s.db, `SELECT `+recordColumns+` FROM screening_records WHERE id = $1`, id)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Record, error) {
	return s.findOne(ctx, s.db, `SELECT `+recordColumns+` FROM screening_records
		WHERE lower(email) = lower($1) ORDER BY created_at DESC LIMIT 1`, email)
}

func (s *PostgresStore) FindActiveByEmail(ctx context.Context, email string) (*models.Record, error) {
	return s.findOne(ctx, s.db, `SELECT `+recordColumns+` FROM screening_records
		WHERE lower(email) = lower($1) AND status NOT IN ('processing_failed', 'cancelled')`, email)
}

// Update locks the row, applies the patch in Go and writes the result back.
func (s *PostgresStore) Update(ctx context.Context, id domain.ScreeningID, patch models.Patch) (*models.Record, error) {
	var updated *models.Record
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := s.findOne(ctx, tx, `SELECT `+recordColumns+` FROM screening_records WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			return err
		}
		next := current.Clone()
		if err := patch.ApplyTo(next, requestcontext.Now(ctx)); err != nil {
			return err
		}

		decision, err := nullableJSON(next.Decision)
		if err != nil {
			return err
		}
		recErr, err := nullableJSON(next.Error)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE screening_records SET
			status = $2, external_report_id = $3, decision = $4, report_artifact_url = $5, error = $6,
			user_id = $7, cancel_requested = $8, poll_attempts = $9, notice_sent_at = $10,
			profile_created_at = $11, version = $12, updated_at = $13
			WHERE id = $1`,
			next.ID, next.Status, nullString(next.ExternalReportID), decision, nullString(next.ReportArtifactURL), recErr,
			next.UserID, next.CancelRequested, next.PollAttempts, next.NoticeSentAt,
			next.ProfileCreatedAt, next.Version, next.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update screening record: %w", err)
		}
		if err := s.appendEvents(ctx, tx, current, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, statuses ...models.Status) ([]*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM screening_records`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args = append(args, string(st))
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list screening records: %w", err)
	}
	defer rows.Close()

	var out []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate screening records: %w", err)
	}
	return out, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) findOne(ctx context.Context, q queryer, query string, args ...any) (*models.Record, error) {
	rec, err := scanRecord(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	return rec, err
}

func (s *PostgresStore) appendEvents(ctx context.Context, tx *sql.Tx, before, after *models.Record) error {
	for _, e := range events(before, after, requestcontext.Now(ctx)) {
		if err := outboxpg.AppendWith(ctx, tx, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.Record, error) {
	var (
		rec                            models.Record
		reportID, artifact             sql.NullString
		candidate, consent             []byte
		decision, recErr               []byte
		noticeSentAt, profileCreatedAt sql.NullTime
	)
	err := row.Scan(&rec.ID, &rec.Email, &rec.Provider, &rec.Tier, &rec.Status, &reportID, &candidate,
		&rec.CredentialHash, &consent, &decision, &artifact, &recErr, &rec.UserID, &rec.CancelRequested,
		&rec.PollAttempts, &noticeSentAt, &profileCreatedAt, &rec.RerunOf, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan screening record: %w", err)
	}

	rec.ExternalReportID = reportID.String
	rec.ReportArtifactURL = artifact.String
	if err := json.Unmarshal(candidate, &rec.Candidate); err != nil {
		return nil, fmt.Errorf("decode candidate: %w", err)
	}
	if err := json.Unmarshal(consent, &rec.Consent); err != nil {
		return nil, fmt.Errorf("decode consent: %w", err)
	}
	if len(decision) > 0 {
		rec.Decision = &models.Decision{}
		if err := json.Unmarshal(decision, rec.Decision); err != nil {
			return nil, fmt.Errorf("decode decision: %w", err)
		}
	}
	if len(recErr) > 0 {
		rec.Error = &models.RecordError{}
		if err := json.Unmarshal(recErr, rec.Error); err != nil {
			return nil, fmt.Errorf("decode error: %w", err)
		}
	}
	if noticeSentAt.Valid {
		rec.NoticeSentAt = &noticeSentAt.Time
	}
	if profileCreatedAt.Valid {
		rec.ProfileCreatedAt = &profileCreatedAt.Time
	}
	return &rec, nil
}

func recordArgs(rec *models.Record) ([]any, error) {
	candidate, err := json.Marshal(rec.Candidate)
	if err != nil {
		return nil, fmt.Errorf("encode candidate: %w", err)
	}
	consent, err := json.Marshal(rec.Consent)
	if err != nil {
		return nil, fmt.Errorf("encode consent: %w", err)
	}
	decision, err := nullableJSON(rec.Decision)
	if err != nil {
		return nil, err
	}
	recErr, err := nullableJSON(rec.Error)
	if err != nil {
		return nil, err
	}
	return []any{
		rec.ID, rec.Email, rec.Provider, string(rec.Tier), string(rec.Status), nullString(rec.ExternalReportID),
		string(candidate), rec.CredentialHash, string(consent), decision, nullString(rec.ReportArtifactURL),
		recErr, rec.UserID, rec.CancelRequested, rec.PollAttempts, rec.NoticeSentAt, rec.ProfileCreatedAt,
		rec.RerunOf, rec.Version, rec.CreatedAt, rec.UpdatedAt,
	}, nil
}

// nullableJSON encodes v, mapping a nil pointer to SQL NULL.
func nullableJSON[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	return string(raw), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
