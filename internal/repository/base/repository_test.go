package base_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/languagebuddy/buddy/internal/repository/base"
	"github.com/languagebuddy/buddy/internal/testutil"
	"github.com/languagebuddy/buddy/internal/watch"
)

func countNotifications(t *testing.T, db *base.DB) int {
	t.Helper()

	var n int
	require.NoError(t, db.SQL().QueryRowContext(context.Background(), `SELECT COUNT(*) FROM notifications`).Scan(&n))
	return n
}

func insertNotification(ctx context.Context, r *base.Repository) error {
	_, err := r.ExecAffected(ctx, "notifications",
		`INSERT INTO notifications (user_email, message, created_at) VALUES (?, ?, ?)`,
		"a@x.com", "hello", time.Now().UnixMilli())
	return err
}

func observeCount(t *testing.T, db *base.DB) *watch.Subscription[int] {
	t.Helper()

	sub := watch.Observe(context.Background(), db.Hub(), []string{"notifications"}, func(ctx context.Context) (int, error) {
		var n int
		err := db.SQL().QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications`).Scan(&n)
		return n, err
	})
	t.Cleanup(sub.Close)

	require.Equal(t, 0, testutil.Next(t, sub))
	return sub
}

func TestWithTxCommitsAndPublishes(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	sub := observeCount(t, db)

	err := db.WithTx(ctx, func(r *base.Repository) error {
		if err := insertNotification(ctx, r); err != nil {
			return err
		}
		return insertNotification(ctx, r)
	})
	require.NoError(t, err)

	assert.Equal(t, 2, countNotifications(t, db))
	assert.Equal(t, 2, testutil.Eventually(t, sub, func(n int) bool { return n == 2 }))
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	sub := observeCount(t, db)

	boom := errors.New("boom")
	err := db.WithTx(ctx, func(r *base.Repository) error {
		if err := insertNotification(ctx, r); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Zero(t, countNotifications(t, db))

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, published := sub.Next(waitCtx)
	assert.False(t, published)
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = db.WithTx(ctx, func(r *base.Repository) error {
			if err := insertNotification(ctx, r); err != nil {
				return err
			}
			panic("boom")
		})
	})

	assert.Zero(t, countNotifications(t, db))
}

func TestIsUniqueViolation(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	r := db.Repository()

	insert := func() error {
		_, err := r.ExecAffected(ctx, "user_session_join",
			`INSERT INTO user_session_join (email, session_id) VALUES (?, ?)`, "a@x.com", "s1")
		return err
	}

	require.NoError(t, insert())

	err := insert()
	require.Error(t, err)
	assert.True(t, base.IsUniqueViolation(err))
	assert.False(t, base.IsUniqueViolation(errors.New("other")))
	assert.False(t, base.IsNotFound(err))
}
