// Package store persists accounts and profiles. Both writes are idempotent
// so provisioning can be retried after a partial failure.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"basecamp/internal/accounts/models"
	"basecamp/pkg/domain"
	"basecamp/pkg/platform/sentinel"
	"basecamp/pkg/requestcontext"
)

// InMemoryStore keeps accounts in process.
type InMemoryStore struct {
	mu       sync.Mutex
	byEmail  map[string]*models.Account
	profiles map[domain.UserID]*models.Profile
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byEmail:  make(map[string]*models.Account),
		profiles: make(map[domain.UserID]*models.Profile),
	}
}

// FindOrCreateAccount returns the existing account for the email, or stores
// acct. The bool reports whether acct was created.
func (s *InMemoryStore) FindOrCreateAccount(_ context.Context, acct *models.Account) (*models.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(acct.Email)
	if existing, ok := s.byEmail[key]; ok {
		cp := *existing
		return &cp, false, nil
	}
	cp := *acct
	s.byEmail[key] = &cp
	out := cp
	return &out, true, nil
}

func (s *InMemoryStore) FindAccountByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
	}
	cp := *acct
	return &cp, nil
}

// UpsertProfile creates or replaces the profile for p.UserID.
func (s *InMemoryStore) UpsertProfile(ctx context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := requestcontext.Now(ctx)
	cp := *p
	cp.UpdatedAt = now
	if existing, ok := s.profiles[p.UserID]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else {
		cp.CreatedAt = now
	}
	s.profiles[p.UserID] = &cp
	return nil
}

func (s *InMemoryStore) FindProfile(_ context.Context, userID domain.UserID) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile not found: %w", sentinel.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

// AccountCount is for tests asserting no duplicate identity was created.
func (s *InMemoryStore) AccountCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byEmail)
}

// PostgresStore persists accounts with a native pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) FindOrCreateAccount(ctx context.Context, acct *models.Account) (*models.Account, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin account upsert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) //nolint:errcheck // no-op after commit
	}()

	tag, err := tx.Exec(ctx, `
		INSERT INTO accounts (id, email, display_name, credential_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ((lower(email))) DO NOTHING`,
		acct.ID.String(), acct.Email, acct.DisplayName, acct.CredentialHash, acct.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("insert account: %w", err)
	}

	found, err := scanAccount(tx.QueryRow(ctx, selectAccount+` WHERE lower(email) = lower($1)`, acct.Email))
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit account upsert: %w", err)
	}
	return found, tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) FindAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, selectAccount+` WHERE lower(email) = lower($1)`, email))
}

func (s *PostgresStore) UpsertProfile(ctx context.Context, p *models.Profile) error {
	now := requestcontext.Now(ctx)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO profiles (user_id, record_id, tier, risk, screened_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			record_id = EXCLUDED.record_id,
			tier = EXCLUDED.tier,
			risk = EXCLUDED.risk,
			screened_at = EXCLUDED.screened_at,
			updated_at = EXCLUDED.updated_at`,
		p.UserID.String(), p.RecordID.String(), p.Tier, p.Risk, p.ScreenedAt, now)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindProfile(ctx context.Context, userID domain.UserID) (*models.Profile, error) {
	var (
		p        models.Profile
		uid, rid string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT user_id::text, record_id::text, tier, risk, screened_at, created_at, updated_at
		FROM profiles WHERE user_id = $1`, userID.String()).
		Scan(&uid, &rid, &p.Tier, &p.Risk, &p.ScreenedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("profile not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	if p.UserID, err = domain.ParseUserID(uid); err != nil {
		return nil, err
	}
	if p.RecordID, err = domain.ParseScreeningID(rid); err != nil {
		return nil, err
	}
	return &p, nil
}

const selectAccount = `SELECT id::text, email, display_name, credential_hash, created_at FROM accounts`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var (
		acct models.Account
		id   string
	)
	if err := row.Scan(&id, &acct.Email, &acct.DisplayName, &acct.CredentialHash, &acct.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	uid, err := domain.ParseUserID(id)
	if err != nil {
		return nil, err
	}
	acct.ID = uid
	return &acct, nil
}
