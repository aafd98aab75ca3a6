package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/languagebuddy/buddy/internal/schema"
)

// Migrator wraps the goose provider of the store schema.
type Migrator struct {
	provider *goose.Provider
	logger   *zap.Logger
}

// NewMigrator does not take ownership of db.
func NewMigrator(db *sql.DB, dialect schema.Dialect, logger *zap.Logger) (*Migrator, error) {
	provider, err := schema.NewProvider(db, dialect)
	if err != nil {
		return nil, err
	}

	return &Migrator{provider: provider, logger: logger}, nil
}

// Run applies every pending migration.
func (mg *Migrator) Run(ctx context.Context) error {
	mg.logger.Info("Applying database migrations")

	results, err := mg.provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	for _, r := range results {
		mg.logger.Info("Migration applied",
			zap.Int64("version", r.Source.Version),
			zap.Duration("duration", r.Duration),
		)
	}

	version, err := mg.Version(ctx)
	if err != nil {
		return err
	}

	mg.logger.Info("Migrations applied successfully",
		zap.Int("applied", len(results)),
		zap.Int64("version", version),
	)
	return nil
}

// UpTo applies migrations up to and including version.
func (mg *Migrator) UpTo(ctx context.Context, version int64) error {
	if _, err := mg.provider.UpTo(ctx, version); err != nil {
		return fmt.Errorf("apply migrations to %d: %w", version, err)
	}
	return nil
}

// Version returns the current schema version.
func (mg *Migrator) Version(ctx context.Context) (int64, error) {
	version, err := mg.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("get version: %w", err)
	}
	return version, nil
}
