package schema

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"

	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrationsFS embed.FS

// NewProvider returns a goose provider for the dialect. Version 1 is the SQL
// baseline; every later version runs EnsureLatest, so a database at any
// earlier version ends up in the same shape.
func NewProvider(db *sql.DB, d Dialect, opts ...goose.ProviderOption) (*goose.Provider, error) {
	fsys, err := fs.Sub(migrationsFS, path.Join("migrations", d.Name))
	if err != nil {
		return nil, fmt.Errorf("migrations for %s: %w", d.Name, err)
	}

	steps := make([]*goose.Migration, 0, CurrentVersion-1)
	for v := int64(2); v <= CurrentVersion; v++ {
		steps = append(steps, goose.NewGoMigration(v, &goose.GoFunc{
			RunTx: func(ctx context.Context, tx *sql.Tx) error {
				return EnsureLatest(ctx, tx, d)
			},
		}, nil))
	}

	opts = append(opts,
		goose.WithDisableGlobalRegistry(true),
		goose.WithGoMigrations(steps...),
	)

	provider, err := goose.NewProvider(d.goose, db, fsys, opts...)
	if err != nil {
		return nil, fmt.Errorf("create goose provider: %w", err)
	}

	return provider, nil
}
