package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"basecamp/internal/platform/config"
)

// Pool holds the two Postgres handles the service uses: database/sql over
// the pgx driver for the screening store and outbox, and a native pgxpool
// for the accounts store.
type Pool struct {
	db     *sql.DB
	native *pgxpool.Pool
}

// New opens both handles. Returns nil, nil if the URL is empty.
func New(ctx context.Context, cfg config.DBConfig) (*Pool, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("ping database: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		db.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("parse pgxpool config: %w", err)
	}
	poolCfg.MaxConns = int32(max(cfg.MaxIdleConns, 2)) // #nosec G115 -- small configured value
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	native, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		db.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("create pgxpool: %w", err)
	}

	return &Pool{db: db, native: native}, nil
}

// DB returns the database/sql handle.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Native returns the pgxpool handle.
func (p *Pool) Native() *pgxpool.Pool {
	return p.native
}

// Health pings both handles.
func (p *Pool) Health(ctx context.Context) error {
	if p == nil || p.db == nil {
		return fmt.Errorf("database not configured")
	}
	if err := p.db.PingContext(ctx); err != nil {
		return err
	}
	return p.native.Ping(ctx)
}

func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	p.native.Close()
	return p.db.Close()
}

func (p *Pool) Stats() sql.DBStats {
	if p == nil || p.db == nil {
		return sql.DBStats{}
	}
	return p.db.Stats()
}
