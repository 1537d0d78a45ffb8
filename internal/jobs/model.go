// Package jobs implements the bounty marketplace state machine: posting,
// race-to-complete attempts, verification-template dispatch, escrow
// release, disputes. Grounded on internal/registry/model/agent.go's typed
// status-enum idiom (a small closed set of string consts, never an open
// string) and internal/registry/service/agent.go's multi-state lifecycle
// transitions, generalized from a single-owner lifecycle to a
// multi-worker race.
package jobs

import "time"

// Status is a Job's lifecycle state.
type Status string

const (
	StatusCreated           Status = "created"
	StatusOpen              Status = "open"
	StatusPendingVerification Status = "pending_verification"
	StatusCompleted         Status = "completed"
	StatusPaid              Status = "paid"
	StatusCancelled         Status = "cancelled"
	StatusRefunded          Status = "refunded"
	StatusExpired           Status = "expired"
	StatusDisputed          Status = "disputed"
)

// EscrowStatus mirrors the on-chain escrow account's local shadow.
type EscrowStatus string

const (
	EscrowUnfunded      EscrowStatus = "unfunded"
	EscrowFunded        EscrowStatus = "funded"
	EscrowPendingReview EscrowStatus = "pending_review"
	EscrowReleased      EscrowStatus = "released"
	EscrowRefunded      EscrowStatus = "refunded"
)

// AttemptStatus is a JobAttempt's lifecycle state.
type AttemptStatus string

const (
	AttemptWorking       AttemptStatus = "working"
	AttemptSubmitted     AttemptStatus = "submitted"
	AttemptPendingReview AttemptStatus = "pending_review"
	AttemptWon           AttemptStatus = "won"
	AttemptLost          AttemptStatus = "lost"
	AttemptFailed        AttemptStatus = "failed"
)

// Job is a bounty posting.
type Job struct {
	ID                  string       `json:"id" db:"id"`
	PosterID            string       `json:"poster_id" db:"poster_id"`
	Title               string       `json:"title" db:"title"`
	Description         string       `json:"description" db:"description"`
	RewardLamports      int64        `json:"reward_lamports" db:"reward_lamports"`
	RewardToken         string       `json:"reward_token" db:"reward_token"`
	VerificationTemplate string      `json:"verification_template" db:"verification_template"`
	VerificationParams  []byte       `json:"verification_params" db:"verification_params"` // opaque JSON
	Status              Status       `json:"status" db:"status"`
	WorkerID            string       `json:"worker_id,omitempty" db:"worker_id"`
	ClaimedAt           *time.Time   `json:"claimed_at,omitempty" db:"claimed_at"`
	CompletedAt         *time.Time   `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt           time.Time    `json:"created_at" db:"created_at"`
	ExpiresAt           *time.Time   `json:"expires_at,omitempty" db:"expires_at"`
	PlatformFunded      bool         `json:"platform_funded" db:"platform_funded"`

	EscrowAddress       string       `json:"escrow_address,omitempty" db:"escrow_address"`
	EscrowStatus        EscrowStatus `json:"escrow_status" db:"escrow_status"`
	EscrowTx            string       `json:"escrow_tx,omitempty" db:"escrow_tx"`
	EscrowReleaseTx     string       `json:"escrow_release_tx,omitempty" db:"escrow_release_tx"`
	EscrowRefundTx      string       `json:"escrow_refund_tx,omitempty" db:"escrow_refund_tx"`
	EscrowSubmittedAt   *time.Time   `json:"escrow_submitted_at,omitempty" db:"escrow_submitted_at"`
	EscrowReviewDeadline *time.Time  `json:"escrow_review_deadline,omitempty" db:"escrow_review_deadline"`
}

// IsListable reports whether a job belongs in public listings: not expired,
// and in a status workers can still act on.
func (j *Job) IsListable(now time.Time) bool {
	if j.ExpiresAt != nil && j.ExpiresAt.Before(now) {
		return false
	}
	return j.Status == StatusOpen
}

// JobAttempt is one worker's claim on a job; many may coexist per job.
type JobAttempt struct {
	ID             string        `json:"id" db:"id"`
	JobID          string        `json:"job_id" db:"job_id"`
	WorkerID       string        `json:"worker_id" db:"worker_id"`
	Status         AttemptStatus `json:"status" db:"status"`
	SubmissionText string        `json:"submission_text,omitempty" db:"submission_text"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	SubmittedAt    *time.Time    `json:"submitted_at,omitempty" db:"submitted_at"`
}

// VerificationResult is persisted for every verification run, pass or fail.
type VerificationResult struct {
	ID         string    `json:"id" db:"id"`
	JobID      string    `json:"job_id" db:"job_id"`
	AttemptID  string    `json:"attempt_id" db:"attempt_id"`
	Template   string    `json:"template" db:"template"`
	Passed     bool      `json:"passed" db:"passed"`
	Detail     []byte    `json:"detail" db:"detail"` // opaque JSON
	RanAt      time.Time `json:"ran_at" db:"ran_at"`
}

// JobDispute is opened by either party when a submission is contested.
type JobDispute struct {
	ID            string     `json:"id" db:"id"`
	JobID         string     `json:"job_id" db:"job_id"`
	OpenedBy      string     `json:"opened_by" db:"opened_by"`
	Reason        string     `json:"reason" db:"reason"`
	Status        string     `json:"status" db:"status"` // open|voting|passed|rejected|resolved
	VotingEndsAt  time.Time  `json:"voting_ends_at" db:"voting_ends_at"`
	VotesForWorker float64   `json:"votes_for_worker" db:"votes_for_worker"`
	VotesForPoster float64   `json:"votes_for_poster" db:"votes_for_poster"`
	VoterCount    int        `json:"voter_count" db:"voter_count"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}

// EscrowEvent is an append-only audit row for on-chain activity.
type EscrowEvent struct {
	ID        string    `json:"id" db:"id"`
	JobID     string    `json:"job_id" db:"job_id"`
	Kind      string    `json:"kind" db:"kind"` // created|submitted|released|refunded|auto_released|sweep_failed
	Signature string    `json:"signature,omitempty" db:"signature"`
	Detail    string    `json:"detail,omitempty" db:"detail"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
