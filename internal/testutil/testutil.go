// Package testutil builds migrated throwaway stores for tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/languagebuddy/buddy/internal/app"
	"github.com/languagebuddy/buddy/internal/credential"
	"github.com/languagebuddy/buddy/internal/model"
	"github.com/languagebuddy/buddy/internal/repository/base"
	"github.com/languagebuddy/buddy/internal/service"
	"github.com/languagebuddy/buddy/internal/watch"
)

// Timeout bounds every wait on a subscription.
const Timeout = 5 * time.Second

// OpenDB returns a migrated sqlite store in a temp directory. It is closed
// when the test ends.
func OpenDB(t *testing.T) *base.DB {
	t.Helper()
	return openDB(t, "")
}

// OpenLegacyDB stops at the baseline schema, runs seed against it and then
// migrates to the latest version.
func OpenLegacyDB(t *testing.T, seed string) *base.DB {
	t.Helper()
	return openDB(t, seed)
}

func openDB(t *testing.T, seed string) *base.DB {
	t.Helper()

	ctx := context.Background()

	database, err := app.OpenSQLite(ctx, filepath.Join(t.TempDir(), "buddy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	migrator, err := app.NewMigrator(database.SQL, database.Dialect, zap.NewNop())
	require.NoError(t, err)
	if seed != "" {
		require.NoError(t, migrator.UpTo(ctx, 1))
		_, err = database.SQL.ExecContext(ctx, seed)
		require.NoError(t, err)
	}
	require.NoError(t, migrator.Run(ctx))

	return base.NewDB(database.SQL, database.Dialect, watch.NewHub(zap.NewNop()), zap.NewNop())
}

// Env is a fully wired store.
type Env struct {
	DB       *base.DB
	Creds    *credential.Store
	Services *service.Services
}

// NewEnv wires every service over a fresh store.
func NewEnv(t *testing.T, opts service.Options) *Env {
	t.Helper()
	return newEnv(t, opts, OpenDB(t))
}

// NewLegacyEnv wires every service over a store seeded at the baseline schema.
func NewLegacyEnv(t *testing.T, opts service.Options, seed string) *Env {
	t.Helper()
	return newEnv(t, opts, OpenLegacyDB(t, seed))
}

func newEnv(t *testing.T, opts service.Options, db *base.DB) *Env {
	t.Helper()

	creds := credential.NewStore(filepath.Join(t.TempDir(), "account_store.yaml"), zap.NewNop())

	return &Env{
		DB:    db,
		Creds: creds,
		Services: service.New(
			db,
			creds,
			credential.NewHasher(bcrypt.MinCost),
			opts,
			nil,
			zap.NewNop(),
		),
	}
}

// CreateAccount stores a plain account for email.
func (e *Env) CreateAccount(t *testing.T, email, displayName string) *model.Account {
	t.Helper()

	a, err := e.Services.Accounts.Upsert(context.Background(), model.Account{
		Email:       email,
		Name:        displayName,
		DisplayName: displayName,
	})
	require.NoError(t, err)
	return a
}

// Next waits for the next snapshot of sub or fails the test.
func Next[T any](t *testing.T, sub *watch.Subscription[T]) T {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()

	v, ok := sub.Next(ctx)
	require.True(t, ok, "no snapshot within %s", Timeout)
	return v
}

// Eventually reads snapshots until cond holds or the timeout passes.
func Eventually[T any](t *testing.T, sub *watch.Subscription[T], cond func(T) bool) T {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()

	for {
		v, ok := sub.Next(ctx)
		require.True(t, ok, "condition not met within %s", Timeout)
		if cond(v) {
			return v
		}
	}
}
