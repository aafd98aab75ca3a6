package app

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/languagebuddy/buddy/internal/config"
	"github.com/languagebuddy/buddy/internal/schema"
)

const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

// Database is an opened store together with its dialect.
type Database struct {
	SQL     *sql.DB
	Dialect schema.Dialect
	pool    *pgxpool.Pool
}

// OpenDatabase connects to the configured engine.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*Database, error) {
	dialect, err := schema.DialectFor(cfg.DBDriver)
	if err != nil {
		return nil, err
	}

	if dialect.Name == schema.Postgres.Name {
		return openPostgres(ctx, cfg.GetDBDSN())
	}
	return OpenSQLite(ctx, cfg.GetDBDSN())
}

// OpenSQLite opens a database file. The engine allows one writer, so the
// pool is limited to a single connection.
func OpenSQLite(ctx context.Context, path string) (*Database, error) {
	db, err := sql.Open(schema.SQLite.DriverName, SQLiteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &Database{SQL: db, Dialect: schema.SQLite}, nil
}

// SQLiteDSN appends the connection pragmas unless path already carries options.
func SQLiteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?" + sqlitePragmas
}

func openPostgres(ctx context.Context, dsn string) (*Database, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Database{
		SQL:     stdlib.OpenDBFromPool(pool),
		Dialect: schema.Postgres,
		pool:    pool,
	}, nil
}

// Close releases the connection and, for postgres, the pool behind it.
func (d *Database) Close() error {
	err := d.SQL.Close()
	if d.pool != nil {
		d.pool.Close()
	}
	return err
}
