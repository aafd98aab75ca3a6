package repository

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/languagebuddy/buddy/internal/apperrors"
	"github.com/languagebuddy/buddy/internal/model"
	"github.com/languagebuddy/buddy/internal/repository/base"
)

type AccountRepository struct {
	*base.Repository
}

func NewAccountRepository(r *base.Repository) *AccountRepository {
	return &AccountRepository{Repository: r}
}

const accountColumns = `
	account_id, email, COALESCE(name, ''), COALESCE(display_name, ''), status,
	COALESCE(bio, ''), COALESCE(languages, ''), COALESCE(specialties, ''),
	COALESCE(time_zone, ''), COALESCE(location, ''), COALESCE(availability, ''),
	created_at, rating, rating_count
`

func scanAccount(row scanner) (*model.Account, error) {
	var (
		a         model.Account
		createdAt int64
	)
	err := row.Scan(
		&a.AccountID,
		&a.Email,
		&a.Name,
		&a.DisplayName,
		&a.Status,
		&a.Bio,
		&a.Languages,
		&a.Specialties,
		&a.TimeZone,
		&a.Location,
		&a.Availability,
		&createdAt,
		&a.Rating,
		&a.RatingCount,
	)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = fromMillis(createdAt)
	return &a, nil
}

func accountArgs(a *model.Account) []any {
	return []any{
		a.AccountID,
		a.Email,
		a.Name,
		a.DisplayName,
		a.Status,
		a.Bio,
		a.Languages,
		a.Specialties,
		a.TimeZone,
		a.Location,
		a.Availability,
		toMillis(a.CreatedAt),
		a.Rating,
		a.RatingCount,
	}
}

const accountInsert = `
	INSERT INTO accounts (account_id, email, name, display_name, status, bio, languages, specialties,
		time_zone, location, availability, created_at, rating, rating_count)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// Insert creates an account and fails on a duplicate email.
func (r *AccountRepository) Insert(ctx context.Context, a *model.Account) error {
	if _, err := r.ExecAffected(ctx, TableAccounts, accountInsert, accountArgs(a)...); err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// Upsert inserts the account or overwrites every column of the existing row.
func (r *AccountRepository) Upsert(ctx context.Context, a *model.Account) error {
	query := accountInsert + `
		ON CONFLICT (email) DO UPDATE SET
			account_id = excluded.account_id,
			name = excluded.name,
			display_name = excluded.display_name,
			status = excluded.status,
			bio = excluded.bio,
			languages = excluded.languages,
			specialties = excluded.specialties,
			time_zone = excluded.time_zone,
			location = excluded.location,
			availability = excluded.availability,
			created_at = excluded.created_at,
			rating = excluded.rating,
			rating_count = excluded.rating_count
	`

	if _, err := r.ExecAffected(ctx, TableAccounts, query, accountArgs(a)...); err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

// GetByEmail returns nil when there is no such account.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = ?`

	a, err := scanAccount(r.QueryRow(ctx, query, email))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account by email: %w", err)
	}

	return a, nil
}

// GetByAccountID returns nil when no account carries id.
func (r *AccountRepository) GetByAccountID(ctx context.Context, id int64) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = ? ORDER BY email LIMIT 1`

	a, err := scanAccount(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account by id: %w", err)
	}

	return a, nil
}

// ListOthers returns every account except excludeEmail, ordered by display name.
func (r *AccountRepository) ListOthers(ctx context.Context, excludeEmail string) ([]*model.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE email <> ?
		ORDER BY COALESCE(display_name, ''), email
	`

	rows, err := r.Query(ctx, query, excludeEmail)
	if err != nil {
		return nil, fmt.Errorf("list other accounts: %w", err)
	}

	accounts, err := collect(rows, scanAccount)
	if err != nil {
		return nil, fmt.Errorf("scan other accounts: %w", err)
	}

	return accounts, nil
}

// ListAll returns every account ordered by display name.
func (r *AccountRepository) ListAll(ctx context.Context) ([]*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY COALESCE(display_name, ''), email`

	rows, err := r.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	accounts, err := collect(rows, scanAccount)
	if err != nil {
		return nil, fmt.Errorf("scan accounts: %w", err)
	}

	return accounts, nil
}

// ListByStatus returns the accounts with the given status.
func (r *AccountRepository) ListByStatus(ctx context.Context, status string) ([]*model.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE status = ?
		ORDER BY COALESCE(display_name, ''), email
	`

	rows, err := r.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("list accounts by status: %w", err)
	}

	accounts, err := collect(rows, scanAccount)
	if err != nil {
		return nil, fmt.Errorf("scan accounts by status: %w", err)
	}

	return accounts, nil
}

// Search matches term case-insensitively against the profile text columns.
func (r *AccountRepository) Search(ctx context.Context, term string) ([]*model.Account, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(term)) + "%"

	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE LOWER(COALESCE(display_name, '')) LIKE ?
			OR LOWER(COALESCE(name, '')) LIKE ?
			OR LOWER(COALESCE(bio, '')) LIKE ?
			OR LOWER(COALESCE(languages, '')) LIKE ?
			OR LOWER(COALESCE(specialties, '')) LIKE ?
		ORDER BY COALESCE(display_name, ''), email
	`

	rows, err := r.Query(ctx, query, pattern, pattern, pattern, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("search accounts: %w", err)
	}

	accounts, err := collect(rows, scanAccount)
	if err != nil {
		return nil, fmt.Errorf("scan searched accounts: %w", err)
	}

	return accounts, nil
}

// UpdateProfile writes only the non-nil fields of upd.
func (r *AccountRepository) UpdateProfile(ctx context.Context, email string, upd model.ProfileUpdate) error {
	set := map[string]any{}
	add := func(col string, v *string) {
		if v != nil {
			set[col] = *v
		}
	}
	add("name", upd.Name)
	add("display_name", upd.DisplayName)
	add("status", upd.Status)
	add("bio", upd.Bio)
	add("languages", upd.Languages)
	add("specialties", upd.Specialties)
	add("time_zone", upd.TimeZone)
	add("location", upd.Location)
	add("availability", upd.Availability)

	if len(set) == 0 {
		return nil
	}

	stmt := r.Builder().
		Update(TableAccounts).
		SetMap(set).
		Where(sq.Eq{"email": email})

	n, err := r.ExecBuilder(ctx, TableAccounts, stmt)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n == 0 {
		return apperrors.ErrAccountNotFound
	}

	return nil
}

// UpdateRating stores the cached rating aggregate.
func (r *AccountRepository) UpdateRating(ctx context.Context, email string, rating float64, count int) error {
	query := `UPDATE accounts SET rating = ?, rating_count = ? WHERE email = ?`

	if _, err := r.ExecAffected(ctx, TableAccounts, query, rating, count, email); err != nil {
		return fmt.Errorf("update account rating: %w", err)
	}
	return nil
}
