// Package storage persists the ledger and its aggregates in SQLite.
//
// Every owner-scoped lookup filters by owner_id, so an entity that belongs to
// someone else is reported as core.ErrNotFound. Goals, budgets and reports
// carry a version column; Save* methods only write when the version still
// matches and return core.ErrConflict otherwise.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fintrack/internal/core"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// DefaultTimeout bounds a single storage call when none is configured.
const DefaultTimeout = 5 * time.Second

type SQLiteRepository struct {
	db      *sql.DB
	dsn     string
	timeout time.Duration
}

// Option customizes a repository.
type Option func(*SQLiteRepository)

// WithTimeout sets the per-call deadline applied to every query.
func WithTimeout(d time.Duration) Option {
	return func(r *SQLiteRepository) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func dsnFor(path string) string {
	return filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies migrations.
func NewSQLiteRepository(dbPath string, opts ...Option) (*SQLiteRepository, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, errors.New("storage path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dsnFor(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{db: db, dsn: dsn, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(repo)
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) ctx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// persistErr classifies a driver error. Missing rows become ErrNotFound,
// everything else is a persistence failure.
func persistErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return fmt.Errorf("%w: %s: %w", core.ErrPersistence, op, err)
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// expectOne maps a zero-row write to missing.
func expectOne(res sql.Result, op string, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return persistErr(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, missing)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func parseDecimal(column, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: decode %s %q: %w", core.ErrPersistence, column, s, err)
	}
	return d, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// orderClause resolves a sort field against a whitelist.
func orderClause(opts core.ListOptions, allowed map[string]string, fallback string) string {
	col, ok := allowed[opts.Order]
	if !ok {
		col = allowed[fallback]
	}
	dir := "ASC"
	if opts.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, id %s", col, dir, dir)
}
