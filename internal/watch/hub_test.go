package watch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const wait = 2 * time.Second

func next[T any](t *testing.T, s *Subscription[T]) T {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	v, ok := s.Next(ctx)
	require.True(t, ok, "no snapshot")
	return v
}

func counter() (*atomic.Int64, func(context.Context) (int64, error)) {
	var n atomic.Int64
	return &n, func(context.Context) (int64, error) {
		return n.Add(1), nil
	}
}

func TestObserveEmitsInitialSnapshot(t *testing.T) {
	hub := NewHub(zap.NewNop())
	_, load := counter()

	sub := Observe(context.Background(), hub, []string{"accounts"}, load)
	defer sub.Close()

	assert.Equal(t, int64(1), next(t, sub))
	assert.Equal(t, 1, hub.Len())
}

func TestPublishReloadsMatchingSubscriptions(t *testing.T) {
	hub := NewHub(zap.NewNop())
	_, load := counter()

	sub := Observe(context.Background(), hub, []string{"accounts", "sessions"}, load)
	defer sub.Close()
	require.Equal(t, int64(1), next(t, sub))

	hub.Publish("sessions")
	assert.Equal(t, int64(2), next(t, sub))
}

func TestPublishIgnoresOtherTables(t *testing.T) {
	hub := NewHub(zap.NewNop())
	calls, load := counter()

	sub := Observe(context.Background(), hub, []string{"accounts"}, load)
	defer sub.Close()
	require.Equal(t, int64(1), next(t, sub))

	hub.Publish("messages", "chats")
	hub.Publish()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, ok := sub.Next(ctx)
	assert.False(t, ok)
	assert.Equal(t, int64(1), calls.Load())
}

func TestSlowReaderSeesNewestSnapshot(t *testing.T) {
	hub := NewHub(zap.NewNop())
	calls, load := counter()

	sub := Observe(context.Background(), hub, []string{"accounts"}, load)
	defer sub.Close()

	for i := 0; i < 5; i++ {
		hub.Publish("accounts")
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, wait, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	v := next(t, sub)
	assert.Equal(t, calls.Load(), v)
}

func TestCloseEndsSubscription(t *testing.T) {
	hub := NewHub(zap.NewNop())
	_, load := counter()

	sub := Observe(context.Background(), hub, []string{"accounts"}, load)
	next(t, sub)

	sub.Close()

	_, ok := <-sub.C
	assert.False(t, ok)
	assert.Zero(t, hub.Len())

	// publishing after close is harmless
	hub.Publish("accounts")
}

func TestContextCancelEndsSubscription(t *testing.T) {
	hub := NewHub(zap.NewNop())
	_, load := counter()

	ctx, cancel := context.WithCancel(context.Background())
	sub := Observe(ctx, hub, []string{"accounts"}, load)
	next(t, sub)

	cancel()

	require.Eventually(t, func() bool { return hub.Len() == 0 }, wait, 5*time.Millisecond)
	sub.Close()
}

func TestLoadErrorEmitsZeroValue(t *testing.T) {
	hub := NewHub(zap.NewNop())
	boom := errors.New("boom")

	var fail atomic.Bool
	load := func(context.Context) ([]string, error) {
		if fail.Load() {
			return nil, boom
		}
		return []string{"a@x.com"}, nil
	}

	sub := Observe(context.Background(), hub, []string{"accounts"}, load)
	defer sub.Close()

	assert.Equal(t, []string{"a@x.com"}, next(t, sub))
	assert.NoError(t, sub.Err())

	fail.Store(true)
	hub.Publish("accounts")

	assert.Empty(t, next(t, sub))
	assert.ErrorIs(t, sub.Err(), boom)
}
