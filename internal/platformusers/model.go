// Package platformusers manages platform-staff accounts: the small set of
// tier-5 "Platform" admins who review governance disputes and reports, as
// distinct from moltcities agents (which authenticate with mc_... bearer
// tokens, see internal/agents). Adapted from the teacher's internal/users,
// narrowed to the staff-admin surface — no public profile, bio, or avatar,
// since staff accounts are never displayed to agents.
package platformusers

import (
	"time"

	"github.com/google/uuid"
)

// Account is a platform-staff login.
type Account struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Email         string    `json:"email" db:"email"`
	PasswordHash  string    `json:"-" db:"password_hash"`
	DisplayName   string    `json:"display_name" db:"display_name"`
	EmailVerified bool      `json:"email_verified" db:"email_verified"`
	IsAdmin       bool      `json:"is_admin" db:"is_admin"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// OAuthLink links an Account to an OAuth provider identity.
type OAuthLink struct {
	ID         uuid.UUID `json:"id" db:"id"`
	AccountID  uuid.UUID `json:"account_id" db:"account_id"`
	Provider   string    `json:"provider" db:"provider"`
	ProviderID string    `json:"provider_id" db:"provider_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
