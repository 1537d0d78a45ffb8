package platformusers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/moltcities/backend/internal/email"
)

// accountRepo is the storage interface consumed by Service.
type accountRepo interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByOAuth(ctx context.Context, provider, providerID string) (*Account, error)
	LinkOAuth(ctx context.Context, accountID uuid.UUID, provider, providerID string) error
	SetEmailVerified(ctx context.Context, accountID uuid.UUID) error
	SetPasswordHash(ctx context.Context, accountID uuid.UUID, hash string) error
	CreateVerificationToken(ctx context.Context, accountID uuid.UUID, token string, expires time.Time) error
	UseVerificationToken(ctx context.Context, token string) (*Account, error)
	CreatePasswordResetToken(ctx context.Context, accountID uuid.UUID, token string, expires time.Time) error
	UsePasswordResetToken(ctx context.Context, token string) (*Account, error)
}

// Service implements platform-staff account management: signup, login,
// email verification, password reset, and OAuth. Adapted from the
// teacher's UserService, narrowed to staff accounts only.
type Service struct {
	repo        accountRepo
	mailer      email.EmailSender
	frontendURL string
	logger      *zap.Logger
}

// NewService builds a Service.
func NewService(repo accountRepo, mailer email.EmailSender, frontendURL string, logger *zap.Logger) *Service {
	return &Service{repo: repo, mailer: mailer, frontendURL: frontendURL, logger: logger}
}

// Signup creates a new staff account with email/password authentication.
func (s *Service) Signup(ctx context.Context, emailAddr, password, displayName string) (*Account, error) {
	if emailAddr == "" || password == "" {
		return nil, fmt.Errorf("email and password are required")
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if displayName == "" {
		displayName = emailAddr
	}

	a := &Account{Email: emailAddr, PasswordHash: string(hash), DisplayName: displayName}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	if _, err := s.createAndSendVerification(ctx, a); err != nil {
		s.logger.Warn("send verification email failed", zap.String("account_id", a.ID.String()), zap.Error(err))
	}
	return a, nil
}

// Login verifies email/password credentials.
func (s *Service) Login(ctx context.Context, emailAddr, password string) (*Account, error) {
	a, err := s.repo.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("invalid credentials")
		}
		return nil, err
	}
	if a.PasswordHash == "" {
		return nil, fmt.Errorf("account uses OAuth login; no password set")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}
	return a, nil
}

// VerifyEmail consumes a verification token.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*Account, error) {
	a, err := s.repo.UseVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("verification token not found")
		}
		return nil, err
	}
	s.logger.Info("platform account email verified", zap.String("account_id", a.ID.String()))
	return a, nil
}

// ResendVerificationByEmail resends a verification email if the account
// exists and is unverified. Always returns nil — callers must not be able
// to enumerate registered emails from the response.
func (s *Service) ResendVerificationByEmail(ctx context.Context, emailAddr string) error {
	a, err := s.repo.GetByEmail(ctx, emailAddr)
	if err != nil {
		return nil
	}
	if a.EmailVerified {
		return nil
	}
	if _, err := s.createAndSendVerification(ctx, a); err != nil {
		s.logger.Warn("resend verification failed", zap.String("account_id", a.ID.String()), zap.Error(err))
	}
	return nil
}

func (s *Service) createAndSendVerification(ctx context.Context, a *Account) (string, error) {
	token, err := generateSecureToken(32)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	expires := time.Now().UTC().Add(24 * time.Hour)
	if err := s.repo.CreateVerificationToken(ctx, a.ID, token, expires); err != nil {
		return "", fmt.Errorf("persist verification token: %w", err)
	}
	link := s.frontendURL + "/admin/verify-email?token=" + token
	body := fmt.Sprintf("Hello %s,\n\nVerify your moltcities staff account:\n\n  %s\n\nThis link expires in 24 hours.\n", a.DisplayName, link)
	if err := s.mailer.Send(ctx, a.Email, "Verify your moltcities staff account", body); err != nil {
		return token, fmt.Errorf("send verification email: %w", err)
	}
	return token, nil
}

// ForgotPassword emails a password-reset link. Always returns nil.
func (s *Service) ForgotPassword(ctx context.Context, emailAddr string) error {
	a, err := s.repo.GetByEmail(ctx, emailAddr)
	if err != nil {
		return nil
	}
	if a.PasswordHash == "" {
		_ = s.mailer.Send(ctx, a.Email, "moltcities staff account — no password set",
			fmt.Sprintf("Hello %s,\n\nYour staff account was created via OAuth — sign in with the OAuth button instead.\n", a.DisplayName))
		return nil
	}

	token, err := generateSecureToken(32)
	if err != nil {
		s.logger.Error("generate password reset token", zap.Error(err))
		return nil
	}
	expires := time.Now().UTC().Add(time.Hour)
	if err := s.repo.CreatePasswordResetToken(ctx, a.ID, token, expires); err != nil {
		s.logger.Error("persist password reset token", zap.Error(err))
		return nil
	}
	link := s.frontendURL + "/admin/reset-password?token=" + token
	body := fmt.Sprintf("Hello %s,\n\nReset your moltcities staff account password:\n\n  %s\n\nThis link expires in 1 hour.\n", a.DisplayName, link)
	if err := s.mailer.Send(ctx, a.Email, "Reset your moltcities staff account password", body); err != nil {
		s.logger.Warn("send password reset email failed", zap.String("account_id", a.ID.String()), zap.Error(err))
	}
	return nil
}

// ResetPassword validates a reset token and sets the new password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	a, err := s.repo.UsePasswordResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("reset token not found or expired")
		}
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.SetPasswordHash(ctx, a.ID, string(hash)); err != nil {
		return err
	}
	s.logger.Info("platform account password reset", zap.String("account_id", a.ID.String()))
	return nil
}

// GetOrCreateFromOAuth retrieves the account linked to an OAuth identity,
// linking by email or creating a new staff account if needed.
func (s *Service) GetOrCreateFromOAuth(ctx context.Context, provider, providerID, emailAddr, displayName string) (*Account, error) {
	a, err := s.repo.GetByOAuth(ctx, provider, providerID)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("lookup oauth account: %w", err)
	}

	existing, err := s.repo.GetByEmail(ctx, emailAddr)
	if err == nil {
		if linkErr := s.repo.LinkOAuth(ctx, existing.ID, provider, providerID); linkErr != nil {
			s.logger.Warn("link oauth to existing account failed", zap.String("account_id", existing.ID.String()), zap.Error(linkErr))
		}
		if !existing.EmailVerified {
			_ = s.repo.SetEmailVerified(ctx, existing.ID)
			existing.EmailVerified = true
		}
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("lookup by email: %w", err)
	}

	if displayName == "" {
		displayName = emailAddr
	}
	a = &Account{Email: emailAddr, DisplayName: displayName, EmailVerified: true}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create oauth account: %w", err)
	}
	if err := s.repo.LinkOAuth(ctx, a.ID, provider, providerID); err != nil {
		s.logger.Warn("link oauth after create failed", zap.Error(err))
	}
	return a, nil
}

// GetByID retrieves an account by ID.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

func generateSecureToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
