package platformusers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when an account lookup finds no matching record.
var ErrNotFound = errors.New("platformusers: not found")

// ErrDuplicateEmail is returned when signup uses an already-registered email.
var ErrDuplicateEmail = errors.New("platformusers: email already registered")

// Repository provides CRUD operations for staff accounts against PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository builds a Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new account record, assigning its ID and timestamps.
func (r *Repository) Create(ctx context.Context, a *Account) error {
	a.ID = uuid.New()
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now

	_, err := r.db.Exec(ctx,
		`INSERT INTO platform_accounts (id, email, password_hash, display_name, email_verified, is_admin, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.Email, a.PasswordHash, a.DisplayName, a.EmailVerified, a.IsAdmin, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("platformusers: create: %w", err)
	}
	return nil
}

// GetByID retrieves an account by its internal UUID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return r.scanOne(ctx, `SELECT * FROM platform_accounts WHERE id = $1`, id)
}

// GetByEmail retrieves an account by email address.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return r.scanOne(ctx, `SELECT * FROM platform_accounts WHERE email = $1`, email)
}

// GetByOAuth retrieves an account linked to the given OAuth identity.
func (r *Repository) GetByOAuth(ctx context.Context, provider, providerID string) (*Account, error) {
	return r.scanOne(ctx, `
		SELECT a.* FROM platform_accounts a
		JOIN platform_oauth_links o ON o.account_id = a.id
		WHERE o.provider = $1 AND o.provider_id = $2`, provider, providerID)
}

// LinkOAuth adds an OAuth provider link to an existing account, ignoring a
// duplicate link.
func (r *Repository) LinkOAuth(ctx context.Context, accountID uuid.UUID, provider, providerID string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO platform_oauth_links (id, account_id, provider, provider_id, created_at)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (provider, provider_id) DO NOTHING`,
		uuid.New(), accountID, provider, providerID, time.Now().UTC(),
	)
	return err
}

// SetEmailVerified marks an account's email as verified.
func (r *Repository) SetEmailVerified(ctx context.Context, accountID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE platform_accounts SET email_verified = true, updated_at = $2 WHERE id = $1`,
		accountID, time.Now().UTC())
	return err
}

// SetPasswordHash updates an account's password hash.
func (r *Repository) SetPasswordHash(ctx context.Context, accountID uuid.UUID, hash string) error {
	_, err := r.db.Exec(ctx, `UPDATE platform_accounts SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		accountID, hash, time.Now().UTC())
	return err
}

// CreateVerificationToken stores a new email-verification token.
func (r *Repository) CreateVerificationToken(ctx context.Context, accountID uuid.UUID, token string, expires time.Time) error {
	return r.createToken(ctx, accountID, token, "email_verification", expires)
}

// CreatePasswordResetToken stores a new password-reset token.
func (r *Repository) CreatePasswordResetToken(ctx context.Context, accountID uuid.UUID, token string, expires time.Time) error {
	return r.createToken(ctx, accountID, token, "password_reset", expires)
}

func (r *Repository) createToken(ctx context.Context, accountID uuid.UUID, token, tokenType string, expires time.Time) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO platform_account_tokens (id, account_id, token, token_type, expires_at, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		uuid.New(), accountID, token, tokenType, expires, time.Now().UTC(),
	)
	return err
}

// UseVerificationToken atomically marks a verification token used, sets
// email_verified, and returns the account.
func (r *Repository) UseVerificationToken(ctx context.Context, token string) (*Account, error) {
	return r.useToken(ctx, token, "email_verification", true)
}

// UsePasswordResetToken atomically marks a reset token used and returns the
// account. Unlike UseVerificationToken, it leaves email_verified untouched.
func (r *Repository) UsePasswordResetToken(ctx context.Context, token string) (*Account, error) {
	return r.useToken(ctx, token, "password_reset", false)
}

func (r *Repository) useToken(ctx context.Context, token, tokenType string, markVerified bool) (*Account, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("platformusers: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var accountID uuid.UUID
	var expiresAt time.Time
	var usedAt *time.Time
	err = tx.QueryRow(ctx,
		`SELECT account_id, expires_at, used_at FROM platform_account_tokens WHERE token = $1 AND token_type = $2`,
		token, tokenType,
	).Scan(&accountID, &expiresAt, &usedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("platformusers: query token: %w", err)
	}
	if usedAt != nil {
		return nil, fmt.Errorf("platformusers: token already used")
	}
	if time.Now().After(expiresAt) {
		return nil, fmt.Errorf("platformusers: token expired")
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE platform_account_tokens SET used_at = $2 WHERE token = $1`, token, now); err != nil {
		return nil, fmt.Errorf("platformusers: mark token used: %w", err)
	}
	if markVerified {
		if _, err := tx.Exec(ctx, `UPDATE platform_accounts SET email_verified = true, updated_at = $2 WHERE id = $1`, accountID, now); err != nil {
			return nil, fmt.Errorf("platformusers: set email verified: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("platformusers: commit: %w", err)
	}
	return r.GetByID(ctx, accountID)
}

// ListAdmins returns every account with is_admin = true.
func (r *Repository) ListAdmins(ctx context.Context) ([]*Account, error) {
	rows, err := r.db.Query(ctx, `SELECT * FROM platform_accounts WHERE is_admin = true`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Account
	for rows.Next() {
		a, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) scanOne(ctx context.Context, q string, args ...any) (*Account, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanRow(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRow scans a platform_accounts row, matching the column order in
// migrations/011_platformusers.up.sql.
func scanRow(row rowScanner) (*Account, error) {
	var a Account
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.DisplayName, &a.EmailVerified, &a.IsAdmin, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, fmt.Errorf("platformusers: scan: %w", err)
	}
	return &a, nil
}
