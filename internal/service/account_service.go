package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/languagebuddy/buddy/internal/apperrors"
	"github.com/languagebuddy/buddy/internal/metrics"
	"github.com/languagebuddy/buddy/internal/model"
	"github.com/languagebuddy/buddy/internal/repository"
	"github.com/languagebuddy/buddy/internal/repository/base"
	"github.com/languagebuddy/buddy/internal/watch"
)

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Name            string `validate:"required"`
	Email           string `validate:"required,email"`
	Password        string `validate:"min=6,max=72"`
	ConfirmPassword string `validate:"eqfield=Password"`
}

type AccountService struct {
	core
	creds  CredentialStore
	hasher PasswordHasher
}

func NewAccountService(
	db *base.DB,
	creds CredentialStore,
	hasher PasswordHasher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *AccountService {
	return &AccountService{
		core:   newCore(db, m, logger),
		creds:  creds,
		hasher: hasher,
	}
}

// Upsert stores the account, overwriting any row with the same email.
// Missing id, status and creation time are filled in.
func (s *AccountService) Upsert(ctx context.Context, a model.Account) (_ *model.Account, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("account_upsert", start, err) }()

	a.Email = model.NormalizeEmail(a.Email)
	if a.Email == "" {
		return nil, fmt.Errorf("%w: email is required", apperrors.ErrValidation)
	}
	if a.Status == "" {
		a.Status = model.StatusStudent
	}
	if !model.IsValidStatus(a.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, a.Status)
	}
	if a.AccountID == 0 {
		a.AccountID = model.AccountIDFor(a.Email)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}

	if err := s.store.Accounts.Upsert(ctx, &a); err != nil {
		return nil, fmt.Errorf("upsert account: %w", err)
	}

	s.logger.Info("Account upserted",
		zap.String("email", a.Email),
		zap.Int64("account_id", a.AccountID),
	)

	return &a, nil
}

// Get returns nil when there is no account for email.
func (s *AccountService) Get(ctx context.Context, email string) (*model.Account, error) {
	a, err := s.store.Accounts.GetByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// GetByAccountID returns nil when no account carries id.
func (s *AccountService) GetByAccountID(ctx context.Context, id int64) (*model.Account, error) {
	a, err := s.store.Accounts.GetByAccountID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get account by id: %w", err)
	}
	return a, nil
}

// Observe follows one account; the snapshot is nil while it does not exist.
func (s *AccountService) Observe(ctx context.Context, email string) *watch.Subscription[*model.Account] {
	email = model.NormalizeEmail(email)
	return observe(ctx, &s.core, []string{repository.TableAccounts}, func(ctx context.Context) (*model.Account, error) {
		return s.store.Accounts.GetByEmail(ctx, email)
	})
}

// ObserveOthers follows every account except excludeEmail, ordered by display name.
func (s *AccountService) ObserveOthers(ctx context.Context, excludeEmail string) *watch.Subscription[[]*model.Account] {
	excludeEmail = model.NormalizeEmail(excludeEmail)
	return observe(ctx, &s.core, []string{repository.TableAccounts}, func(ctx context.Context) ([]*model.Account, error) {
		return s.store.Accounts.ListOthers(ctx, excludeEmail)
	})
}

func (s *AccountService) ObserveAll(ctx context.Context) *watch.Subscription[[]*model.Account] {
	return observe(ctx, &s.core, []string{repository.TableAccounts}, s.store.Accounts.ListAll)
}

func (s *AccountService) ObserveByStatus(ctx context.Context, status string) *watch.Subscription[[]*model.Account] {
	return observe(ctx, &s.core, []string{repository.TableAccounts}, func(ctx context.Context) ([]*model.Account, error) {
		return s.store.Accounts.ListByStatus(ctx, status)
	})
}

// Search finds accounts whose profile text contains term.
func (s *AccountService) Search(ctx context.Context, term string) ([]*model.Account, error) {
	if strings.TrimSpace(term) == "" {
		return s.store.Accounts.ListAll(ctx)
	}
	accounts, err := s.store.Accounts.Search(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("search accounts: %w", err)
	}
	return accounts, nil
}

// Register creates the account and its credential and makes it the active
// one. It fails with ErrEmailAlreadyExists when the email already has a
// credential; the stored hash is then left untouched.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (_ *model.Principal, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("account_register", start, err) }()

	in.Email = model.NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)

	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if fe.Field() == "ConfirmPassword" {
					return nil, apperrors.ErrPasswordMismatch
				}
			}
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	if s.creds.Has(in.Email) {
		return nil, apperrors.ErrEmailAlreadyExists
	}

	id := model.AccountIDFor(in.Email)
	owner, err := s.store.Accounts.GetByAccountID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("check account id: %w", err)
	}
	if owner != nil && owner.Email != in.Email {
		s.logger.Error("Account id collision",
			zap.Int64("account_id", id),
			zap.String("email", in.Email),
			zap.String("owner", owner.Email),
		)
		return nil, apperrors.ErrAccountIDCollision
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &model.Account{
		AccountID:   id,
		Email:       in.Email,
		Name:        in.Name,
		DisplayName: in.Name,
		Status:      model.StatusStudent,
		CreatedAt:   s.now(),
	}

	if err := s.store.Accounts.Insert(ctx, account); err != nil {
		if !base.IsUniqueViolation(err) {
			return nil, fmt.Errorf("create account: %w", err)
		}
		// synced earlier without a credential
		account, err = s.adoptAccount(ctx, in.Email, in.Name)
		if err != nil {
			return nil, err
		}
	}

	if err := s.creds.SetCredential(in.Email, hash, true); err != nil {
		return nil, fmt.Errorf("store credential: %w", err)
	}

	s.logger.Info("Account registered",
		zap.String("email", in.Email),
		zap.Int64("account_id", id),
	)

	p := model.PrincipalFor(account)
	return &p, nil
}

func (s *AccountService) adoptAccount(ctx context.Context, email, name string) (*model.Account, error) {
	account, err := s.store.Accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get existing account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("account %s vanished during registration", email)
	}

	account.Name = name
	if account.AccountID == 0 {
		account.AccountID = model.AccountIDFor(email)
	}
	if strings.TrimSpace(account.DisplayName) == "" {
		account.DisplayName = name
	}
	if err := s.store.Accounts.Upsert(ctx, account); err != nil {
		return nil, fmt.Errorf("update existing account: %w", err)
	}

	return account, nil
}

// VerifyCredentials signs a user in. Email is matched case-insensitively,
// the password exactly. Only a successful check changes the active email.
func (s *AccountService) VerifyCredentials(ctx context.Context, email, password string) (_ *model.Principal, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("account_verify", start, err) }()

	email = model.NormalizeEmail(email)

	hash, ok := s.creds.Hash(email)
	if !ok || !s.hasher.Check(hash, password) {
		s.logger.Info("Sign-in rejected", zap.String("email", email))
		return nil, apperrors.ErrInvalidCredentials
	}

	if err := s.creds.SetCurrentEmail(email); err != nil {
		return nil, fmt.Errorf("set active email: %w", err)
	}

	p, err := s.principal(ctx, email)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Signed in", zap.String("email", email))
	return p, nil
}

// UpdateProfile applies a partial edit. Fields left nil keep their value;
// id, creation time and rating are never touched. An account that does not
// exist yet is created from the edit.
func (s *AccountService) UpdateProfile(ctx context.Context, email string, upd model.ProfileUpdate) (_ *model.Account, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("account_update_profile", start, err) }()

	email = model.NormalizeEmail(email)
	if upd.Status != nil && !model.IsValidStatus(*upd.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, *upd.Status)
	}

	var updated *model.Account
	err = s.inTx(ctx, func(st *repository.Store) error {
		existing, err := st.Accounts.GetByEmail(ctx, email)
		if err != nil {
			return err
		}

		if existing == nil {
			a := newAccountFromUpdate(email, upd, s.now())
			if err := st.Accounts.Insert(ctx, a); err != nil {
				return err
			}
			updated = a
			return nil
		}

		if existing.AccountID == 0 {
			existing.AccountID = model.AccountIDFor(email)
			if err := st.Accounts.Upsert(ctx, existing); err != nil {
				return err
			}
		}
		if err := st.Accounts.UpdateProfile(ctx, email, upd); err != nil {
			return err
		}
		updated, err = st.Accounts.GetByEmail(ctx, email)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	s.logger.Info("Profile updated", zap.String("email", email))

	return updated, nil
}

func newAccountFromUpdate(email string, upd model.ProfileUpdate, now time.Time) *model.Account {
	a := &model.Account{
		AccountID: model.AccountIDFor(email),
		Email:     email,
		Status:    model.StatusStudent,
		CreatedAt: now,
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&a.Name, upd.Name)
	set(&a.DisplayName, upd.DisplayName)
	set(&a.Status, upd.Status)
	set(&a.Bio, upd.Bio)
	set(&a.Languages, upd.Languages)
	set(&a.Specialties, upd.Specialties)
	set(&a.TimeZone, upd.TimeZone)
	set(&a.Location, upd.Location)
	set(&a.Availability, upd.Availability)
	return a
}

// CurrentPrincipal restores the signed-in user from the credential area.
func (s *AccountService) CurrentPrincipal(ctx context.Context) (*model.Principal, error) {
	email := s.creds.CurrentEmail()
	if email == "" {
		return nil, apperrors.ErrNoActiveSession
	}
	return s.principal(ctx, email)
}

// Logout clears the active email. The account is kept.
func (s *AccountService) Logout(ctx context.Context) error {
	if err := s.creds.SetCurrentEmail(""); err != nil {
		return fmt.Errorf("clear active email: %w", err)
	}
	s.logger.Info("Signed out")
	return nil
}

func (s *AccountService) principal(ctx context.Context, email string) (*model.Principal, error) {
	a, err := s.store.Accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if a == nil {
		return &model.Principal{AccountID: model.AccountIDFor(email), Email: email}, nil
	}
	if a.AccountID == 0 {
		a.AccountID = model.AccountIDFor(email)
	}
	p := model.PrincipalFor(a)
	return &p, nil
}
