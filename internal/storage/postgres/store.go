// Package postgres provides the Postgres-backed frontier store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/url-frontier/internal/frontier"
)

// DefaultTable is the table used when Config.Table is empty.
const DefaultTable = "urls"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool backing the frontier.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pool is the subset of *pgxpool.Pool the store needs; pgxmock satisfies it.
type pool interface {
	Begin(context.Context) (pgx.Tx, error)
	Ping(context.Context) error
	Close()
}

// URLStore keeps one row per URL in Postgres. Every operation runs in its own
// transaction.
type URLStore struct {
	pool   pool
	table  string
	clock  frontier.Clock
	lease  frontier.LeaseConfig
	chunk  int
	logger *zap.Logger
}

// Option customizes a URLStore.
type Option func(*URLStore)

// WithClock overrides the clock used to stamp leases.
func WithClock(clock frontier.Clock) Option {
	return func(s *URLStore) { s.clock = clock }
}

// WithLeaseConfig overrides batch size and lease TTL.
func WithLeaseConfig(cfg frontier.LeaseConfig) Option {
	return func(s *URLStore) { s.lease = cfg.Normalize() }
}

// WithScoreChunkSize bounds the number of URLs looked up per score query.
func WithScoreChunkSize(n int) Option {
	return func(s *URLStore) {
		if n > 0 {
			s.chunk = n
		}
	}
}

// WithLogger sets the logger used for contention warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(s *URLStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewURLStore connects to Postgres using cfg.
func NewURLStore(ctx context.Context, cfg Config, opts ...Option) (*URLStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if !validTableName.MatchString(tableOrDefault(cfg.Table)) {
		return nil, fmt.Errorf("invalid table name %q", cfg.Table)
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewURLStoreWithPool(p, cfg.Table, opts...)
}

// NewURLStoreWithPool builds a store on an existing pool (primarily for testing).
func NewURLStoreWithPool(p pool, table string, opts ...Option) (*URLStore, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	table = tableOrDefault(table)
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	s := &URLStore{
		pool:   p,
		table:  table,
		clock:  frontier.SystemClock{},
		lease:  frontier.DefaultLeaseConfig(),
		chunk:  frontier.ScoreChunkSize,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func tableOrDefault(table string) string {
	if table == "" {
		return DefaultTable
	}
	return table
}

// CreateTables creates the frontier table and its lease index if missing.
// The score default of 1 is kept for compatibility with existing tables;
// every write path supplies an explicit score.
func (s *URLStore) CreateTables(ctx context.Context) error {
	ddl := []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	url          TEXT PRIMARY KEY,
	status       INTEGER NOT NULL DEFAULT 0,
	user_id_hash TEXT NOT NULL,
	score        DOUBLE PRECISION NOT NULL DEFAULT 1,
	updated      TIMESTAMP NOT NULL DEFAULT now()
)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_status_score_idx ON %[1]s (status, score DESC)`, s.table),
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		for _, stmt := range ddl {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}
		}
		return nil
	})
}

// Ping checks database connectivity.
func (s *URLStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func (s *URLStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// withTx runs fn inside a transaction, committing on success and rolling back
// when fn fails.
func (s *URLStore) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
