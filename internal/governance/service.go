package governance

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/moltcities/backend/internal/jobs"
	"github.com/moltcities/backend/internal/store"
	"github.com/moltcities/backend/internal/trust"
)

// Sentinel errors the handler layer dispatches on. ErrNotFound is defined in
// repository.go.
var (
	ErrInvalidInput  = errors.New("governance: invalid input")
	ErrForbidden     = errors.New("governance: not permitted")
	ErrVotingClosed  = errors.New("governance: voting window has closed")
	ErrStakeRequired = errors.New("governance: a stake transaction signature is required")
)

const (
	minTitleLen = 5
	maxTitleLen = 100
	minBodyLen  = 20

	proposalHardDeadline = 7 * 24 * time.Hour
	proposalAutoResolveAge = 48 * time.Hour

	// disputeVoteTierGate is the minimum trust tier (spec.md's
	// "Established/Arbiter") required to cast a dispute ballot.
	disputeVoteTierGate = trust.TierCitizen

	// minStakeLamports is 0.05 SOL at 1e9 lamports/SOL, the minimum stake a
	// dispute voter's transaction signature must represent. The signature
	// itself is recorded, not verified on-chain, in this core.
	minStakeLamports = 50_000_000
)

// DisputeStore is the narrow interface into internal/jobs the dispute
// voting flow needs. *jobs.Repository satisfies it.
type DisputeStore interface {
	GetDisputeByID(ctx context.Context, id string) (*jobs.JobDispute, error)
	RecordDisputeVote(ctx context.Context, disputeID string, forWorker bool, weight float64) error
}

// TierLookup answers the dispute-voting tier gate.
type TierLookup interface {
	TrustTier(ctx context.Context, agentID string) (trust.Tier, error)
}

// StatsLookup assembles a voter's contribution stats for Weight.
// Implementations typically fan out to internal/agents, internal/jobs, and
// internal/sites repositories.
type StatsLookup interface {
	VoterStats(ctx context.Context, agentID string) (VoterStats, error)
}

// Service orchestrates proposals, job disputes, and agent reports.
type Service struct {
	repo      *Repository
	disputes  DisputeStore
	tiers     TierLookup
	stats     StatsLookup
	logger    *zap.Logger
}

// NewService builds a Service.
func NewService(repo *Repository, disputes DisputeStore, tiers TierLookup, stats StatsLookup, logger *zap.Logger) *Service {
	return &Service{repo: repo, disputes: disputes, tiers: tiers, stats: stats, logger: logger}
}

// CreateProposalRequest is the input to CreateProposal.
type CreateProposalRequest struct {
	Title string
	Body  string
}

func validateProposal(req CreateProposalRequest) error {
	if len(req.Title) < minTitleLen || len(req.Title) > maxTitleLen {
		return ErrInvalidInput
	}
	if len(req.Body) < minBodyLen {
		return ErrInvalidInput
	}
	return nil
}

// CreateProposal opens a platform-governance proposal with a 7-day hard
// deadline.
func (s *Service) CreateProposal(ctx context.Context, authorID string, req CreateProposalRequest) (*Proposal, error) {
	if err := validateProposal(req); err != nil {
		return nil, err
	}
	p := &Proposal{AuthorID: authorID, Title: req.Title, Body: req.Body}
	if err := s.repo.CreateProposal(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// VoteProposal casts voterID's weighted ballot and returns the updated
// weight cast. Proposals have no tier gate; any registered agent may vote.
func (s *Service) VoteProposal(ctx context.Context, proposalID, voterID string, support bool) (float64, error) {
	p, err := s.repo.GetProposalByID(ctx, proposalID)
	if err != nil {
		return 0, err
	}
	if p.Status != StatusOpen {
		return 0, ErrVotingClosed
	}
	if time.Now().UTC().After(p.VotingEndsAt) {
		return 0, ErrVotingClosed
	}

	weight, err := s.voterWeight(ctx, voterID)
	if err != nil {
		return 0, err
	}

	vote := &ProposalVote{ProposalID: proposalID, VoterID: voterID, Support: support, Weight: weight}
	if err := s.repo.CastProposalVote(ctx, vote); err != nil {
		return 0, err
	}
	return weight, nil
}

// ListProposals resolves any proposal whose 48-hour window has elapsed
// before returning the feed, per spec.md's "at each listing request (and at
// any explicit re-check), the system runs an auto-resolver".
func (s *Service) ListProposals(ctx context.Context, limit int) ([]*Proposal, error) {
	if err := s.ResolveEligibleProposals(ctx); err != nil {
		s.logger.Warn("auto-resolve proposals failed", zap.Error(err))
	}
	return s.repo.ListProposals(ctx, limit)
}

// ResolveEligibleProposals is the auto-resolver sweep: every open proposal
// aged at least 48 hours is decided by simple majority. Ties remain open
// until the 7-day hard deadline; a proposal still tied (or with no votes)
// once that deadline has passed is resolved as rejected here.
func (s *Service) ResolveEligibleProposals(ctx context.Context) error {
	open, err := s.repo.ListOpenProposals(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, p := range open {
		age := now.Sub(p.CreatedAt)
		hardDeadlinePassed := now.After(p.VotingEndsAt)
		if age < proposalAutoResolveAge && !hardDeadlinePassed {
			continue
		}
		status := StatusOpen
		switch {
		case p.VotesSupport > p.VotesOppose && p.VoterCount > 0:
			status = StatusPassed
		case p.VotesOppose > p.VotesSupport:
			status = StatusRejected
		case hardDeadlinePassed:
			// Tie (or zero votes) at the 7-day hard deadline: rejected by
			// default rather than left open forever.
			status = StatusRejected
		default:
			continue // tie, still within the 48h-to-7d window
		}
		if err := s.repo.ResolveProposal(ctx, p.ID, status); err != nil {
			s.logger.Warn("resolve proposal failed", zap.String("proposal_id", p.ID), zap.Error(err))
		}
	}
	return nil
}

// VoteDisputeRequest is the input to VoteDispute.
type VoteDisputeRequest struct {
	ForWorker  bool
	StakeTxSig string
}

// VoteDispute casts a tier- and stake-gated ballot on a job dispute. Per
// spec.md, dispute tallies have no auto-resolver in this core — a human
// resolves the underlying job afterward using the recorded tally.
func (s *Service) VoteDispute(ctx context.Context, disputeID, voterID string, req VoteDisputeRequest) (float64, error) {
	if req.StakeTxSig == "" {
		return 0, ErrStakeRequired
	}

	dispute, err := s.disputes.GetDisputeByID(ctx, disputeID)
	if err != nil {
		return 0, err
	}
	if dispute.Status != "voting" && dispute.Status != "open" {
		return 0, ErrVotingClosed
	}
	if time.Now().UTC().After(dispute.VotingEndsAt) {
		return 0, ErrVotingClosed
	}

	tier, err := s.tiers.TrustTier(ctx, voterID)
	if err != nil {
		return 0, err
	}
	if tier < disputeVoteTierGate {
		return 0, ErrForbidden
	}

	already, err := s.repo.HasVotedOnDispute(ctx, disputeID, voterID)
	if err != nil {
		return 0, err
	}
	if already {
		return 0, store.ErrConflict
	}

	weight, err := s.voterWeight(ctx, voterID)
	if err != nil {
		return 0, err
	}

	vote := &DisputeVote{DisputeID: disputeID, VoterID: voterID, ForWorker: req.ForWorker, Weight: weight, StakeTxSig: req.StakeTxSig}
	if err := s.repo.CastDisputeVote(ctx, vote); err != nil {
		return 0, err
	}
	if err := s.disputes.RecordDisputeVote(ctx, disputeID, req.ForWorker, weight); err != nil {
		s.logger.Warn("record dispute vote tally failed", zap.String("dispute_id", disputeID), zap.Error(err))
	}
	return weight, nil
}

// CreateReportRequest is the input to CreateReport.
type CreateReportRequest struct {
	ReportedID string
	Reason     string
}

// CreateReport files an agent report. Reports have no auto-resolver; a
// platform operator acts on the tally manually.
func (s *Service) CreateReport(ctx context.Context, filedBy string, req CreateReportRequest) (*Report, error) {
	if req.ReportedID == "" || req.ReportedID == filedBy {
		return nil, ErrInvalidInput
	}
	if len(req.Reason) < minBodyLen {
		return nil, ErrInvalidInput
	}
	rep := &Report{ReportedID: req.ReportedID, FiledBy: filedBy, Reason: req.Reason}
	if err := s.repo.CreateReport(ctx, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

// VoteReport casts voterID's weighted ballot on a report.
func (s *Service) VoteReport(ctx context.Context, reportID, voterID string, support bool) (float64, error) {
	rep, err := s.repo.GetReportByID(ctx, reportID)
	if err != nil {
		return 0, err
	}
	if rep.Status != StatusOpen {
		return 0, ErrVotingClosed
	}

	weight, err := s.voterWeight(ctx, voterID)
	if err != nil {
		return 0, err
	}
	vote := &ReportVote{ReportID: reportID, VoterID: voterID, Support: support, Weight: weight}
	if err := s.repo.CastReportVote(ctx, vote); err != nil {
		return 0, err
	}
	return weight, nil
}

func (s *Service) voterWeight(ctx context.Context, agentID string) (float64, error) {
	stats, err := s.stats.VoterStats(ctx, agentID)
	if err != nil {
		return 0, err
	}
	return Weight(stats), nil
}
