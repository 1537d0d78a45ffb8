package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/moltcities/backend/internal/escrow"
	"github.com/moltcities/backend/internal/jobs/verify"
	"github.com/moltcities/backend/internal/ledger"
	"github.com/moltcities/backend/internal/ratelimit"
	"github.com/moltcities/backend/internal/trust"
	"go.uber.org/zap"
)

type fakeAgentLookup struct {
	tier    trust.Tier
	wallet  string
	bound   bool
	tierErr error
}

func (f fakeAgentLookup) TrustTier(_ context.Context, _ string) (trust.Tier, error) {
	return f.tier, f.tierErr
}

func (f fakeAgentLookup) WalletAddress(_ context.Context, _ string) (string, bool, error) {
	return f.wallet, f.bound, nil
}

type fakeEscrowClient struct{}

func (fakeEscrowClient) PlatformWallet() string { return "platform-wallet" }
func (fakeEscrowClient) FundFromPlatform(_ context.Context, _ string, _ int64) (string, error) {
	return "sig", nil
}
func (fakeEscrowClient) BuildCreateEscrowTx(_ context.Context, _, _ string, _ int64) (*escrow.UnsignedTx, error) {
	return &escrow.UnsignedTx{Base64: "tx", EscrowPDA: "pda"}, nil
}
func (fakeEscrowClient) GetEscrowInfo(_ context.Context, _, _ string) (*escrow.EscrowInfo, error) {
	return &escrow.EscrowInfo{Exists: true, Status: escrow.StatusActive}, nil
}
func (fakeEscrowClient) ReleaseToWorker(_ context.Context, _, _ string) (string, error) {
	return "release-sig", nil
}
func (fakeEscrowClient) RefundToPoster(_ context.Context, _, _ string) (string, error) {
	return "refund-sig", nil
}
func (fakeEscrowClient) AutoRelease(_ context.Context, _ string) (string, error) { return "", nil }

type fakeLedger struct{}

func (fakeLedger) Append(_ context.Context, _ string, _ ledger.Kind, _ int64, _ string) (*ledger.Entry, error) {
	return &ledger.Entry{}, nil
}

type fakeNotifier struct{ notified []string }

func (f *fakeNotifier) Notify(agentID, eventType string, _ interface{}) {
	f.notified = append(f.notified, agentID+":"+eventType)
}

type fakeLimiter struct{ err error }

func (f fakeLimiter) Check(_ context.Context, _ ratelimit.Action, _ string, _ trust.Tier) (ratelimit.Decision, error) {
	if f.err != nil {
		return ratelimit.Decision{}, f.err
	}
	return ratelimit.Decision{Allowed: true}, nil
}

func newTestService(agents fakeAgentLookup) *Service {
	return NewService(nil, fakeEscrowClient{}, fakeLedger{}, &fakeNotifier{}, fakeLimiter{}, agents, verify.Dependencies{}, zap.NewNop())
}

func validCreateRequest() CreateJobRequest {
	return CreateJobRequest{
		Title:                "Write a guestbook entry",
		Description:          "Leave a thoughtful guestbook entry on the target site, at least 50 characters long.",
		RewardLamports:       10_000_000,
		VerificationTemplate: "guestbook_entry",
		VerificationParams:   map[string]interface{}{"target_site_slug": "acme", "min_length": 50},
	}
}

func TestCreateRejectsShortTitle(t *testing.T) {
	s := newTestService(fakeAgentLookup{tier: trust.TierResident, bound: true, wallet: "w"})
	req := validCreateRequest()
	req.Title = "Hi"
	_, _, err := s.Create(context.Background(), "poster-1", req)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateRejectsLowReward(t *testing.T) {
	s := newTestService(fakeAgentLookup{tier: trust.TierResident, bound: true, wallet: "w"})
	req := validCreateRequest()
	req.RewardLamports = 100
	_, _, err := s.Create(context.Background(), "poster-1", req)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateRejectsUnknownVerificationTemplate(t *testing.T) {
	s := newTestService(fakeAgentLookup{tier: trust.TierResident, bound: true, wallet: "w"})
	req := validCreateRequest()
	req.VerificationTemplate = "does_not_exist"
	_, _, err := s.Create(context.Background(), "poster-1", req)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateRejectsBelowResidentTier(t *testing.T) {
	s := newTestService(fakeAgentLookup{tier: trust.TierVerified, bound: true, wallet: "w"})
	_, _, err := s.Create(context.Background(), "poster-1", validCreateRequest())
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCreateRejectsUnboundWalletWhenNotPlatformFunded(t *testing.T) {
	s := newTestService(fakeAgentLookup{tier: trust.TierResident, bound: false})
	_, _, err := s.Create(context.Background(), "poster-1", validCreateRequest())
	if !errors.Is(err, ErrWalletRequired) {
		t.Fatalf("expected ErrWalletRequired, got %v", err)
	}
}

func TestValidateCreateRejectsShortDescription(t *testing.T) {
	req := validCreateRequest()
	req.Description = "too short"
	if err := validateCreate(req); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
