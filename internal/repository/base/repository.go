package base

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/languagebuddy/buddy/internal/schema"
	"github.com/languagebuddy/buddy/internal/watch"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB owns the connection pool and the change hub.
type DB struct {
	db      *sql.DB
	dialect schema.Dialect
	hub     *watch.Hub
	logger  *zap.Logger
}

// NewDB wraps an opened database.
func NewDB(db *sql.DB, dialect schema.Dialect, hub *watch.Hub, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hub == nil {
		hub = watch.NewHub(logger)
	}
	return &DB{db: db, dialect: dialect, hub: hub, logger: logger}
}

func (d *DB) SQL() *sql.DB { return d.db }

func (d *DB) Dialect() schema.Dialect { return d.dialect }

func (d *DB) Hub() *watch.Hub { return d.hub }

func (d *DB) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

// Repository returns a repository bound to the pool. Writes are published
// to the hub as soon as they succeed.
func (d *DB) Repository() *Repository {
	return &Repository{q: d.db, dialect: d.dialect, touch: d.hub.Publish}
}

// WithTx runs fn inside one transaction. Tables written through the
// repository passed to fn are published only after a successful commit.
func (d *DB) WithTx(ctx context.Context, fn func(r *Repository) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	touched := make(map[string]struct{})
	repo := &Repository{
		q:       tx,
		dialect: d.dialect,
		touch: func(tables ...string) {
			for _, t := range tables {
				touched[t] = struct{}{}
			}
		},
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(repo); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			d.logger.Error("Rollback failed", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	tables := make([]string, 0, len(touched))
	for t := range touched {
		tables = append(tables, t)
	}
	d.hub.Publish(tables...)

	return nil
}

// Repository is the base every table repository embeds.
type Repository struct {
	q       DBTX
	dialect schema.Dialect
	touch   func(tables ...string)
}

func (r *Repository) Dialect() schema.Dialect { return r.dialect }

// Builder returns a squirrel builder with the dialect's placeholders.
func (r *Repository) Builder() sq.StatementBuilderType {
	return r.dialect.Builder()
}

// QueryRow runs a ?-placeholder query that returns at most one row.
func (r *Repository) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.q.QueryRowContext(ctx, r.dialect.Rebind(query), args...)
}

// Query runs a ?-placeholder query.
func (r *Repository) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.q.QueryContext(ctx, r.dialect.Rebind(query), args...)
}

// ExecAffected runs a write against table and returns the affected row count.
// The table is marked changed when at least one row was affected.
func (r *Repository) ExecAffected(ctx context.Context, table, query string, args ...any) (int64, error) {
	res, err := r.q.ExecContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.Touch(table)
	}
	return n, nil
}

// ExecBuilder runs a squirrel statement against table.
func (r *Repository) ExecBuilder(ctx context.Context, table string, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.Touch(table)
	}
	return n, nil
}

// Touch marks tables as changed.
func (r *Repository) Touch(tables ...string) {
	if r.touch != nil {
		r.touch(tables...)
	}
}

// IsNotFound reports whether err means "no row".
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsUniqueViolation reports whether err is a unique or primary key conflict
// from either engine.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			// primary result code only, when extended codes are off
			return strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
		}
	}

	return false
}
