package governance

import "context"

// AgentFlags is the narrow interface into internal/agents the stats
// adapter needs for whether an agent has bound a wallet, one of the two
// binary contribution signals Weight reads off the agent row directly
// rather than deriving from a count (the founding flag comes from
// AgentResolver).
type AgentFlags interface {
	WalletAddress(ctx context.Context, agentID string) (address string, bound bool, err error)
}

// ReferralCounter answers the referrals_with_wallet contribution signal.
// *agents/repository.Repository satisfies it via its display-name-keyed
// CountReferralsWithWallet — the voter's own display name must be resolved
// by the caller first, since referrals are recorded against the referrer's
// name, not agent ID.
type ReferralCounter interface {
	CountReferralsWithWallet(ctx context.Context, referrerName string) (int, error)
}

// JobsCompletedCounter answers the jobs_completed contribution signal.
type JobsCompletedCounter interface {
	CountCompletedForWorker(ctx context.Context, workerID string) (int, error)
}

// GuestbookSignerCounter answers the guestbook_entries_signed contribution
// signal.
type GuestbookSignerCounter interface {
	CountGuestbookEntriesSignedBy(ctx context.Context, authorAgentID string) (int, error)
}

// AgentResolver looks an agent up by ID for its founding flag and display
// name (the latter needed to key the referral count).
type AgentResolver interface {
	DisplayName(ctx context.Context, agentID string) (name string, isFounding bool, err error)
}

// StatsAdapter assembles VoterStats from five narrow cross-package
// lookups, so internal/governance never imports the full surface of
// internal/agents, internal/jobs, or internal/sites — only the single
// method each concern needs.
type StatsAdapter struct {
	Agents    AgentFlags
	Resolver  AgentResolver
	Referrals ReferralCounter
	Jobs      JobsCompletedCounter
	Guestbook GuestbookSignerCounter
}

// VoterStats implements StatsLookup.
func (a StatsAdapter) VoterStats(ctx context.Context, agentID string) (VoterStats, error) {
	_, walletBound, err := a.Agents.WalletAddress(ctx, agentID)
	if err != nil {
		return VoterStats{}, err
	}
	name, isFounding, err := a.Resolver.DisplayName(ctx, agentID)
	if err != nil {
		return VoterStats{}, err
	}
	referrals, err := a.Referrals.CountReferralsWithWallet(ctx, name)
	if err != nil {
		return VoterStats{}, err
	}
	completed, err := a.Jobs.CountCompletedForWorker(ctx, agentID)
	if err != nil {
		return VoterStats{}, err
	}
	signed, err := a.Guestbook.CountGuestbookEntriesSignedBy(ctx, agentID)
	if err != nil {
		return VoterStats{}, err
	}
	return VoterStats{
		WalletBound:            walletBound,
		IsFounding:             isFounding,
		JobsCompleted:          completed,
		GuestbookEntriesSigned: signed,
		ReferralsWithWallet:    referrals,
	}, nil
}
