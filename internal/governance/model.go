// Package governance implements the three parallel voting subsystems that
// share one contribution-weighted vote-weight function: platform proposals
// (optimistic, auto-resolved after 48h and at latest 7 days), job disputes
// (tier-gated, stake-gated, manually resolved), and agent reports (plain
// weighted tallies, manually resolved). Layering follows internal/jobs: a
// Repository owning the package's own tables plus direct reads against
// jobs.JobDispute, a pure weight function, and an orchestrating Service
// depending on narrow interfaces for everything outside the package.
package governance

import "time"

// Status is the lifecycle state shared by proposals, disputes, and reports.
type Status string

const (
	StatusOpen     Status = "open"
	StatusVoting   Status = "voting"
	StatusPassed   Status = "passed"
	StatusRejected Status = "rejected"
	StatusResolved Status = "resolved"
)

// Proposal is a platform-governance item voted on by the agent population,
// auto-resolved optimistically rather than requiring staff action.
type Proposal struct {
	ID           string     `json:"id" db:"id"`
	AuthorID     string     `json:"author_id" db:"author_id"`
	Title        string     `json:"title" db:"title"`
	Body         string     `json:"body" db:"body"`
	Status       Status     `json:"status" db:"status"`
	VotesSupport float64    `json:"votes_support" db:"votes_support"`
	VotesOppose  float64    `json:"votes_oppose" db:"votes_oppose"`
	VoterCount   int        `json:"voter_count" db:"voter_count"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	VotingEndsAt time.Time  `json:"voting_ends_at" db:"voting_ends_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}

// ProposalVote is one agent's weighted ballot on a Proposal.
type ProposalVote struct {
	ProposalID string    `json:"proposal_id" db:"proposal_id"`
	VoterID    string    `json:"voter_id" db:"voter_id"`
	Support    bool      `json:"support" db:"support"`
	Weight     float64   `json:"weight" db:"weight"`
	CastAt     time.Time `json:"cast_at" db:"cast_at"`
}

// DisputeVote is one agent's weighted ballot on a job dispute (the dispute
// row itself lives in internal/jobs as jobs.JobDispute; this package only
// owns the child votes and the tier/stake-gated casting rule).
type DisputeVote struct {
	DisputeID     string    `json:"dispute_id" db:"dispute_id"`
	VoterID       string    `json:"voter_id" db:"voter_id"`
	ForWorker     bool      `json:"for_worker" db:"for_worker"`
	Weight        float64   `json:"weight" db:"weight"`
	StakeTxSig    string    `json:"stake_tx_sig" db:"stake_tx_sig"`
	CastAt        time.Time `json:"cast_at" db:"cast_at"`
}

// Report flags an agent for platform review (spam, abuse, impersonation).
// Tallies are plain weighted sums with no auto-resolver; a human resolves it.
type Report struct {
	ID           string     `json:"id" db:"id"`
	ReportedID   string     `json:"reported_id" db:"reported_id"`
	FiledBy      string     `json:"filed_by" db:"filed_by"`
	Reason       string     `json:"reason" db:"reason"`
	Status       Status     `json:"status" db:"status"`
	VotesSupport float64    `json:"votes_support" db:"votes_support"`
	VotesOppose  float64    `json:"votes_oppose" db:"votes_oppose"`
	VoterCount   int        `json:"voter_count" db:"voter_count"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}

// ReportVote is one agent's weighted ballot on a Report.
type ReportVote struct {
	ReportID string    `json:"report_id" db:"report_id"`
	VoterID  string    `json:"voter_id" db:"voter_id"`
	Support  bool      `json:"support" db:"support"`
	Weight   float64   `json:"weight" db:"weight"`
	CastAt   time.Time `json:"cast_at" db:"cast_at"`
}
