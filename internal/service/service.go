package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/languagebuddy/buddy/internal/apperrors"
	"github.com/languagebuddy/buddy/internal/metrics"
	"github.com/languagebuddy/buddy/internal/repository"
	"github.com/languagebuddy/buddy/internal/repository/base"
	"github.com/languagebuddy/buddy/internal/watch"
)

const defaultRecentChatsLimit = 3

// CredentialStore is the key-value area holding password hashes and the
// active email.
type CredentialStore interface {
	Hash(email string) (string, bool)
	Has(email string) bool
	SetCredential(email, hash string, activate bool) error
	CurrentEmail() string
	SetCurrentEmail(email string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Check(hash, password string) bool
}

// Options tune service behaviour.
type Options struct {
	// RatingsOnePerRater keeps a single rating per rater and ratee instead
	// of adding a row per call.
	RatingsOnePerRater bool
	RecentChatsLimit   int
}

// Services bundles every store service over one database.
type Services struct {
	Accounts *AccountService
	Sessions *SessionService
	Friends  *FriendService
	Chats    *ChatService
	Invites  *InviteService
}

func New(
	db *base.DB,
	creds CredentialStore,
	hasher PasswordHasher,
	opts Options,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Services {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Services{
		Accounts: NewAccountService(db, creds, hasher, m, logger),
		Sessions: NewSessionService(db, m, logger),
		Friends:  NewFriendService(db, opts.RatingsOnePerRater, m, logger),
		Chats:    NewChatService(db, opts.RecentChatsLimit, m, logger),
		Invites:  NewInviteService(db, m, logger),
	}
}

// core is shared by every service.
type core struct {
	db      *base.DB
	store   *repository.Store
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func newCore(db *base.DB, m *metrics.Metrics, logger *zap.Logger) core {
	if logger == nil {
		logger = zap.NewNop()
	}
	return core{
		db:      db,
		store:   repository.NewStore(db.Repository()),
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// inTx runs fn with repositories bound to one transaction.
func (c *core) inTx(ctx context.Context, fn func(st *repository.Store) error) error {
	return c.db.WithTx(ctx, func(r *base.Repository) error {
		return fn(repository.NewStore(r))
	})
}

func observe[T any](ctx context.Context, c *core, tables []string, load func(context.Context) (T, error)) *watch.Subscription[T] {
	return watch.Observe(ctx, c.db.Hub(), tables, load)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	return nil
}
