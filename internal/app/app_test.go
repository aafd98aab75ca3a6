package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/languagebuddy/buddy/internal/app"
	"github.com/languagebuddy/buddy/internal/metrics"
	"github.com/languagebuddy/buddy/internal/schema"
	"github.com/languagebuddy/buddy/internal/testutil"
)

type fixedVersion struct {
	version int64
	err     error
}

func (f fixedVersion) Version(context.Context) (int64, error) {
	return f.version, f.err
}

func TestHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.OpenDB(t)

	router := app.NewRouter(db, fixedVersion{version: schema.CurrentVersion}, metrics.New())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status        string `json:"status"`
		Dialect       string `json:"dialect"`
		SchemaVersion int64  `json:"schema_version"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "sqlite", body.Dialect)
	assert.Equal(t, schema.CurrentVersion, body.SchemaVersion)
}

func TestHealthzReportsVersionFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.OpenDB(t)

	router := app.NewRouter(db, fixedVersion{err: errors.New("no version table")}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.OpenDB(t)

	m := metrics.New()
	m.Observe("session_join", time.Now(), nil)

	router := app.NewRouter(db, fixedVersion{version: 1}, m)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "buddy_store_operations_total")
}

func TestMigratorReachesCurrentVersion(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)

	migrator, err := app.NewMigrator(db.SQL(), db.Dialect(), zap.NewNop())
	require.NoError(t, err)

	// already migrated by OpenDB; running again is a no-op
	require.NoError(t, migrator.Run(ctx))

	version, err := migrator.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.CurrentVersion, version)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "buddy.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", app.SQLiteDSN("buddy.db"))
	assert.Equal(t, "file:buddy.db?mode=ro", app.SQLiteDSN("file:buddy.db?mode=ro"))
}

type fakeSweeper struct {
	calls atomic.Int32
	err   error
}

func (f *fakeSweeper) SweepOrphans(context.Context) (int64, error) {
	f.calls.Add(1)
	return 1, f.err
}

func TestSchedulerSweepsOnStartAndTick(t *testing.T) {
	sweeper := &fakeSweeper{}
	s := app.NewScheduler(sweeper, 10*time.Millisecond, zap.NewNop())

	s.Start(context.Background())
	require.Eventually(t, func() bool { return sweeper.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()

	after := sweeper.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, sweeper.calls.Load())
}

func TestSchedulerKeepsRunningAfterErrors(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("locked")}
	s := app.NewScheduler(sweeper, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.Eventually(t, func() bool { return sweeper.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	s.Stop()
}

func TestSchedulerDisabled(t *testing.T) {
	sweeper := &fakeSweeper{}
	s := app.NewScheduler(sweeper, 0, zap.NewNop())

	s.Start(context.Background())
	s.Stop()

	assert.Zero(t, sweeper.calls.Load())
}
