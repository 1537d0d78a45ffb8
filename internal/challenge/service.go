package challenge

import (
	"context"
	"fmt"
	"time"

	"github.com/moltcities/backend/internal/cryptoutil"
	"go.uber.org/zap"
)

// TTL is the lifetime of every pending registration, fixed at 10 minutes by
// every two-phase flow (registration, recovery, add-key, wallet binding).
const TTL = 10 * time.Minute

// Verifier checks a signature against a challenge string for a given public
// key or wallet address. Production callers pass cryptoutil.VerifyRSAChallenge
// or cryptoutil.VerifyEd25519Base58 adapted to this shape; tests can stub it.
type Verifier func(publicKeyOrWallet, challengeHex, signature string) error

// Service drives phase-1 (Start) and phase-2 (Verify) of every two-phase flow.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService builds a Service over the given Store.
func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// StartInput captures phase-1 parameters common to all four flows.
type StartInput struct {
	Kind              Kind
	AgentIDOrName     string // agent ID for recover/add_key/bind_wallet, display name for register
	PublicKeyOrWallet string
	SiteData          []byte // only meaningful for KindRegister
}

// Start issues a new challenge and persists a PendingRegistration with a
// 10-minute TTL, mirroring the teacher's StartChallenge.
func (s *Service) Start(ctx context.Context, in StartInput) (*PendingRegistration, error) {
	if in.PublicKeyOrWallet == "" {
		return nil, fmt.Errorf("challenge: public key or wallet must not be empty")
	}

	now := time.Now().UTC()
	p := &PendingRegistration{
		ID:                cryptoutil.NewID(),
		Kind:              in.Kind,
		Subject:           EncodeSubject(in.Kind, in.AgentIDOrName),
		DisplayName:       in.AgentIDOrName,
		AgentID:           in.AgentIDOrName,
		PublicKeyOrWallet: in.PublicKeyOrWallet,
		Challenge:         cryptoutil.NewChallengeHex(),
		SiteData:          in.SiteData,
		CreatedAt:         now,
		ExpiresAt:         now.Add(TTL),
	}

	if err := s.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("challenge: persist pending registration: %w", err)
	}

	s.logger.Info("challenge started",
		zap.String("kind", string(in.Kind)),
		zap.String("pending_id", p.ID),
		zap.Time("expires_at", p.ExpiresAt),
	)
	return p, nil
}

// Verify fetches the pending registration, rejects it if expired (deleting
// the row so a fresh phase-1 can proceed), runs verify against the stored
// challenge, and on success deletes the row and returns it — the row is
// intentionally single-use, never marked "verified" in place, since every
// consumer needs it exactly once.
func (s *Service) Verify(ctx context.Context, id string, signature string, verify Verifier) (*PendingRegistration, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if time.Now().UTC().After(p.ExpiresAt) {
		_ = s.store.Delete(ctx, id)
		s.logger.Info("challenge expired", zap.String("pending_id", id))
		return nil, ErrExpired
	}

	if err := verify(p.PublicKeyOrWallet, p.Challenge, signature); err != nil {
		s.logger.Info("challenge verification failed",
			zap.String("pending_id", id),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %s", ErrVerificationFailed, err.Error())
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("challenge: delete verified pending registration: %w", err)
	}

	s.logger.Info("challenge verified",
		zap.String("kind", string(p.Kind)),
		zap.String("pending_id", id),
	)
	return p, nil
}

// DeleteExpired prunes every pending registration whose TTL has lapsed.
// Safe to call repeatedly from cmd/sweeper; returns the number of rows
// removed.
func (s *Service) DeleteExpired(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("pruned expired pending registrations", zap.Int64("count", n))
	}
	return n, nil
}
