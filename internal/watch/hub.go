// Package watch re-runs queries whenever a committed write touches one of
// the tables they read, and hands the fresh snapshot to subscribers.
package watch

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Hub tracks live subscriptions by table name.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*listener
	nextID uint64
	logger *zap.Logger
}

type listener struct {
	tables map[string]struct{}
	wake   chan struct{}
}

// NewHub creates an empty hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[uint64]*listener),
		logger: logger,
	}
}

// Publish wakes every subscription that reads one of tables. It never blocks:
// a subscription that is already due for a reload is not woken twice.
func (h *Hub) Publish(tables ...string) {
	if len(tables) == 0 {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, l := range h.subs {
		if !l.matches(tables) {
			continue
		}
		select {
		case l.wake <- struct{}{}:
		default:
		}
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) subscribe(tables []string) (uint64, <-chan struct{}) {
	l := &listener{
		tables: make(map[string]struct{}, len(tables)),
		wake:   make(chan struct{}, 1),
	}
	for _, t := range tables {
		l.tables[t] = struct{}{}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	h.subs[h.nextID] = l
	return h.nextID, l.wake
}

func (h *Hub) unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

func (l *listener) matches(tables []string) bool {
	for _, t := range tables {
		if _, ok := l.tables[t]; ok {
			return true
		}
	}
	return false
}

// Subscription delivers query snapshots on C until it is closed or its
// context ends; C is closed afterwards. Delivery conflates: a reader that
// falls behind receives only the newest snapshot.
type Subscription[T any] struct {
	C <-chan T

	out    chan T
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Observe loads the first snapshot right away and reloads after every
// publish that touches tables. A failed load is logged and replaced by the
// zero value of T; Err reports it.
func Observe[T any](ctx context.Context, h *Hub, tables []string, load func(context.Context) (T, error)) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	id, wake := h.subscribe(tables)

	s := &Subscription[T]{
		out:    make(chan T, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.C = s.out

	go s.run(ctx, h, id, wake, tables, load)

	return s
}

func (s *Subscription[T]) run(ctx context.Context, h *Hub, id uint64, wake <-chan struct{}, tables []string, load func(context.Context) (T, error)) {
	defer close(s.done)
	defer close(s.out)
	defer h.unsubscribe(id)

	s.emit(ctx, h, tables, load)

	for {
		select {
		case <-ctx.Done():
			return
		case <-wake:
			s.emit(ctx, h, tables, load)
		}
	}
}

func (s *Subscription[T]) emit(ctx context.Context, h *Hub, tables []string, load func(context.Context) (T, error)) {
	v, err := load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		h.logger.Warn("Subscription query failed, emitting empty result",
			zap.Strings("tables", tables),
			zap.Error(err),
		)
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()

		var zero T
		v = zero
	}

	// drop the unread snapshot, if any; this goroutine is the only sender
	select {
	case <-s.out:
	default:
	}
	s.out <- v
}

// Next waits for the next snapshot. ok is false once the subscription ended
// or ctx is done.
func (s *Subscription[T]) Next(ctx context.Context) (v T, ok bool) {
	select {
	case v, ok = <-s.C:
		return v, ok
	case <-ctx.Done():
		return v, false
	}
}

// Err returns the last load error.
func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the subscription and waits for its goroutine to exit.
func (s *Subscription[T]) Close() {
	s.cancel()
	<-s.done
}
