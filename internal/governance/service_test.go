package governance

import (
	"context"
	"testing"
	"time"

	"github.com/moltcities/backend/internal/jobs"
	"github.com/moltcities/backend/internal/trust"
	"go.uber.org/zap"
)

type fakeDisputeStore struct {
	dispute *jobs.JobDispute
	err     error
}

func (f fakeDisputeStore) GetDisputeByID(_ context.Context, _ string) (*jobs.JobDispute, error) {
	return f.dispute, f.err
}

func (f fakeDisputeStore) RecordDisputeVote(_ context.Context, _ string, _ bool, _ float64) error {
	return nil
}

type fakeTierLookup struct{ tier trust.Tier }

func (f fakeTierLookup) TrustTier(_ context.Context, _ string) (trust.Tier, error) {
	return f.tier, nil
}

type fakeStatsLookup struct{ stats VoterStats }

func (f fakeStatsLookup) VoterStats(_ context.Context, _ string) (VoterStats, error) {
	return f.stats, nil
}

func newTestService(disputes fakeDisputeStore, tiers fakeTierLookup) *Service {
	return NewService(nil, disputes, tiers, fakeStatsLookup{}, zap.NewNop())
}

func TestCreateProposalRejectsShortTitle(t *testing.T) {
	s := newTestService(fakeDisputeStore{}, fakeTierLookup{})
	_, err := s.CreateProposal(context.Background(), "agent-1", CreateProposalRequest{
		Title: "hi",
		Body:  "this body is plenty long enough to pass validation",
	})
	if err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateProposalRejectsShortBody(t *testing.T) {
	s := newTestService(fakeDisputeStore{}, fakeTierLookup{})
	_, err := s.CreateProposal(context.Background(), "agent-1", CreateProposalRequest{
		Title: "A reasonable proposal title",
		Body:  "too short",
	})
	if err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestVoteDisputeRequiresStake(t *testing.T) {
	s := newTestService(fakeDisputeStore{}, fakeTierLookup{tier: trust.TierFounding})
	_, err := s.VoteDispute(context.Background(), "dispute-1", "agent-1", VoteDisputeRequest{ForWorker: true})
	if err != ErrStakeRequired {
		t.Fatalf("expected ErrStakeRequired, got %v", err)
	}
}

func TestVoteDisputeRejectsBelowTierGate(t *testing.T) {
	dispute := &jobs.JobDispute{
		ID:           "dispute-1",
		Status:       "voting",
		VotingEndsAt: time.Now().UTC().Add(24 * time.Hour),
	}
	s := newTestService(fakeDisputeStore{dispute: dispute}, fakeTierLookup{tier: trust.TierResident})
	_, err := s.VoteDispute(context.Background(), "dispute-1", "agent-1", VoteDisputeRequest{
		ForWorker:  true,
		StakeTxSig: "5sigbase58",
	})
	if err != ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestVoteDisputeRejectsClosedVotingWindow(t *testing.T) {
	dispute := &jobs.JobDispute{
		ID:           "dispute-1",
		Status:       "voting",
		VotingEndsAt: time.Now().UTC().Add(-time.Hour),
	}
	s := newTestService(fakeDisputeStore{dispute: dispute}, fakeTierLookup{tier: trust.TierFounding})
	_, err := s.VoteDispute(context.Background(), "dispute-1", "agent-1", VoteDisputeRequest{
		ForWorker:  true,
		StakeTxSig: "5sigbase58",
	})
	if err != ErrVotingClosed {
		t.Fatalf("expected ErrVotingClosed, got %v", err)
	}
}

func TestCreateReportRejectsSelfReport(t *testing.T) {
	s := newTestService(fakeDisputeStore{}, fakeTierLookup{})
	_, err := s.CreateReport(context.Background(), "agent-1", CreateReportRequest{
		ReportedID: "agent-1",
		Reason:     "this reason is plenty long enough to pass validation",
	})
	if err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateReportRejectsShortReason(t *testing.T) {
	s := newTestService(fakeDisputeStore{}, fakeTierLookup{})
	_, err := s.CreateReport(context.Background(), "agent-1", CreateReportRequest{
		ReportedID: "agent-2",
		Reason:     "too short",
	})
	if err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestWeightBaseline(t *testing.T) {
	w := Weight(VoterStats{})
	if w != 1 {
		t.Fatalf("expected baseline weight 1, got %v", w)
	}
}

func TestWeightCapsEachTerm(t *testing.T) {
	w := Weight(VoterStats{
		WalletBound:            true,
		IsFounding:             true,
		JobsCompleted:          100,
		GuestbookEntriesSigned: 100,
		ReferralsWithWallet:    100,
	})
	// 1 base + 1 wallet + 1 founding + 3 (jobs cap) + 1 (guestbook cap) + 2 (referral cap) = 9
	if w != 9 {
		t.Fatalf("expected capped weight 9, got %v", w)
	}
}

func TestWeightRoundsToOneDecimal(t *testing.T) {
	w := Weight(VoterStats{JobsCompleted: 1})
	if w != 1.5 {
		t.Fatalf("expected 1.5, got %v", w)
	}
}
