package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a job or attempt lookup matches no row.
var ErrNotFound = errors.New("jobs: not found")

// ErrConflict is returned when a conditional status transition's WHERE
// clause matched zero rows — another writer already moved the job.
var ErrConflict = errors.New("jobs: conflicting state transition")

// Repository persists Job, JobAttempt, JobDispute and EscrowEvent rows.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository builds a Repository over an existing pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new job in StatusCreated.
func (r *Repository) Create(ctx context.Context, j *Job) error {
	j.ID = uuid.New().String()
	j.CreatedAt = time.Now().UTC()
	if j.Status == "" {
		j.Status = StatusCreated
	}
	if j.EscrowStatus == "" {
		j.EscrowStatus = EscrowUnfunded
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO jobs (id, poster_id, title, description, reward_lamports, reward_token,
		 verification_template, verification_params, status, created_at, expires_at, platform_funded,
		 escrow_address, escrow_status)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		j.ID, j.PosterID, j.Title, j.Description, j.RewardLamports, j.RewardToken,
		j.VerificationTemplate, j.VerificationParams, j.Status, j.CreatedAt, j.ExpiresAt, j.PlatformFunded,
		j.EscrowAddress, j.EscrowStatus,
	)
	return err
}

func scanJob(row pgx.Row) (*Job, error) {
	j := &Job{}
	err := row.Scan(
		&j.ID, &j.PosterID, &j.Title, &j.Description, &j.RewardLamports, &j.RewardToken,
		&j.VerificationTemplate, &j.VerificationParams, &j.Status, &j.WorkerID, &j.ClaimedAt,
		&j.CompletedAt, &j.CreatedAt, &j.ExpiresAt, &j.PlatformFunded,
		&j.EscrowAddress, &j.EscrowStatus, &j.EscrowTx, &j.EscrowReleaseTx, &j.EscrowRefundTx,
		&j.EscrowSubmittedAt, &j.EscrowReviewDeadline,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return j, nil
}

const jobColumns = `id, poster_id, title, description, reward_lamports, reward_token,
	verification_template, verification_params, status, worker_id, claimed_at,
	completed_at, created_at, expires_at, platform_funded,
	escrow_address, escrow_status, escrow_tx, escrow_release_tx, escrow_refund_tx,
	escrow_submitted_at, escrow_review_deadline`

// GetByID returns a job by ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	return scanJob(row)
}

// GetByEscrowAddress looks up the job whose on-chain escrow PDA matches
// address — the seam internal/webhooks uses to match an inbound ledger
// event back to a job.
func (r *Repository) GetByEscrowAddress(ctx context.Context, address string) (*Job, error) {
	row := r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE escrow_address = $1`, address)
	return scanJob(row)
}

// CountByStatus returns the number of jobs in each status, for the /api/stats
// endpoint (internal/statscache caches this read for up to 30s so a burst of
// dashboard polling does not hammer the jobs table).
func (r *Repository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, count(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("jobs: count by status: %w", err)
	}
	defer rows.Close()

	out := make(map[Status]int)
	for rows.Next() {
		var status Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

// ListOpen returns listable jobs (status=open, not expired), newest first.
func (r *Repository) ListOpen(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE status = $1 AND (expires_at IS NULL OR expires_at > now())
		 ORDER BY created_at DESC LIMIT $2`,
		StatusOpen, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// TransitionStatus performs a conditional `WHERE status = expected` update,
// the optimistic-concurrency primitive the whole race-to-complete state
// machine is built on. Returns ErrConflict if another writer already moved
// the job out of expected.
func (r *Repository) TransitionStatus(ctx context.Context, jobID string, expected, next Status) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE jobs SET status = $1 WHERE id = $2 AND status = $3`,
		next, jobID, expected,
	)
	if err != nil {
		return fmt.Errorf("jobs: transition status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// CompleteWithWorker atomically moves a job open->completed, recording the
// winning worker, in one conditional update — the indivisible step of the
// race-to-complete predicate. The attempts are settled afterwards, in their
// own transaction, by SettleAttempts.
func (r *Repository) CompleteWithWorker(ctx context.Context, jobID, workerID string) error {
	now := time.Now().UTC()
	tag, err := r.db.Exec(ctx,
		`UPDATE jobs SET status = $1, worker_id = $2, claimed_at = $3, completed_at = $3
		 WHERE id = $4 AND status = $5`,
		StatusCompleted, workerID, now, jobID, StatusOpen,
	)
	if err != nil {
		return fmt.Errorf("jobs: complete with worker: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// EnterPendingVerification moves a job open->pending_verification for the
// manual-approval template's exclusive-review step.
func (r *Repository) EnterPendingVerification(ctx context.Context, jobID, workerID string) error {
	now := time.Now().UTC()
	tag, err := r.db.Exec(ctx,
		`UPDATE jobs SET status = $1, worker_id = $2, escrow_submitted_at = $3,
		 escrow_review_deadline = $4 WHERE id = $5 AND status = $6`,
		StatusPendingVerification, workerID, now, now.Add(escrowReviewWindow), jobID, StatusOpen,
	)
	if err != nil {
		return fmt.Errorf("jobs: enter pending verification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// ReopenFromPendingVerification reverses EnterPendingVerification when the
// poster rejects a manual submission.
func (r *Repository) ReopenFromPendingVerification(ctx context.Context, jobID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE jobs SET status = $1, worker_id = '', escrow_submitted_at = NULL,
		 escrow_review_deadline = NULL WHERE id = $2 AND status = $3`,
		StatusOpen, jobID, StatusPendingVerification,
	)
	if err != nil {
		return fmt.Errorf("jobs: reopen from pending verification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// SetEscrowReleased records a successful release, moving the job to paid.
func (r *Repository) SetEscrowReleased(ctx context.Context, jobID, tx string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE jobs SET status = $1, escrow_status = $2, escrow_release_tx = $3 WHERE id = $4`,
		StatusPaid, EscrowReleased, tx, jobID,
	)
	return err
}

// SetEscrowRefunded records a refund, moving the job to refunded.
func (r *Repository) SetEscrowRefunded(ctx context.Context, jobID, tx string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE jobs SET status = $1, escrow_status = $2, escrow_refund_tx = $3 WHERE id = $4`,
		StatusRefunded, EscrowRefunded, tx, jobID,
	)
	return err
}

// UpdateEscrowFunding records the escrow address/tx assigned at creation.
func (r *Repository) UpdateEscrowFunding(ctx context.Context, jobID, escrowAddress, escrowTx string, status EscrowStatus) error {
	_, err := r.db.Exec(ctx,
		`UPDATE jobs SET escrow_address = $1, escrow_tx = $2, escrow_status = $3 WHERE id = $4`,
		escrowAddress, escrowTx, status, jobID,
	)
	return err
}

// Cancel moves a job to cancelled, only from created or open.
func (r *Repository) Cancel(ctx context.Context, jobID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE jobs SET status = $1 WHERE id = $2 AND status IN ($3, $4)`,
		StatusCancelled, jobID, StatusCreated, StatusOpen,
	)
	if err != nil {
		return fmt.Errorf("jobs: cancel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// ListPendingVerificationPastDeadline returns up to 20 jobs eligible for the
// sweeper's auto-release pass, per spec.md §4.K step 1.
func (r *Repository) ListPendingVerificationPastDeadline(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs j
		 JOIN agents a ON a.id = j.worker_id
		 WHERE j.status = $1 AND j.escrow_address != ''
		   AND j.escrow_review_deadline < now() AND j.escrow_release_tx = ''
		   AND j.escrow_status IN ($2, $3)
		   AND a.wallet_address != ''
		 ORDER BY j.escrow_review_deadline ASC LIMIT 20`,
		StatusPendingVerification, EscrowPendingReview, EscrowFunded,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// ExpireOpenPastDeadline transitions open jobs past their expiry into the
// expired terminal state. Listings already filter expired jobs out with
// their own expires_at check, but nothing else moves a job out of open
// once its deadline passes without this sweep.
func (r *Repository) ExpireOpenPastDeadline(ctx context.Context) (int, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE jobs SET status = $1 WHERE status = $2 AND expires_at IS NOT NULL AND expires_at < now()`,
		StatusExpired, StatusOpen,
	)
	if err != nil {
		return 0, fmt.Errorf("jobs: expire stale jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// --- JobAttempt ---

// CreateAttempt inserts a new "working" attempt. Multiple concurrent
// attempts per job are legal by design.
func (r *Repository) CreateAttempt(ctx context.Context, a *JobAttempt) error {
	a.ID = uuid.New().String()
	a.CreatedAt = time.Now().UTC()
	if a.Status == "" {
		a.Status = AttemptWorking
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO job_attempts (id, job_id, worker_id, status, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		a.ID, a.JobID, a.WorkerID, a.Status, a.CreatedAt,
	)
	return err
}

// GetAttempt returns a worker's attempt on a job, if any.
func (r *Repository) GetAttempt(ctx context.Context, jobID, workerID string) (*JobAttempt, error) {
	a := &JobAttempt{}
	err := r.db.QueryRow(ctx,
		`SELECT id, job_id, worker_id, status, submission_text, created_at, submitted_at
		 FROM job_attempts WHERE job_id = $1 AND worker_id = $2`,
		jobID, workerID,
	).Scan(&a.ID, &a.JobID, &a.WorkerID, &a.Status, &a.SubmissionText, &a.CreatedAt, &a.SubmittedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// MarkAttemptSubmitted flips an attempt to submitted with its text.
func (r *Repository) MarkAttemptSubmitted(ctx context.Context, attemptID, text string) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx,
		`UPDATE job_attempts SET status = $1, submission_text = $2, submitted_at = $3 WHERE id = $4`,
		AttemptSubmitted, text, now, attemptID,
	)
	return err
}

// SettleAttempts marks the winning attempt won and every other non-terminal
// attempt on the job lost, in one statement each.
func (r *Repository) SettleAttempts(ctx context.Context, jobID, winningAttemptID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`UPDATE job_attempts SET status = $1 WHERE id = $2`, AttemptWon, winningAttemptID,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE job_attempts SET status = $1 WHERE job_id = $2 AND id != $3
		 AND status IN ($4, $5, $6)`,
		AttemptLost, jobID, winningAttemptID, AttemptWorking, AttemptSubmitted, AttemptPendingReview,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// MarkAttemptFailed flips an attempt to failed after a verification miss.
func (r *Repository) MarkAttemptFailed(ctx context.Context, attemptID string) error {
	_, err := r.db.Exec(ctx, `UPDATE job_attempts SET status = $1 WHERE id = $2`, AttemptFailed, attemptID)
	return err
}

// RecordVerification persists a verification run for audit.
func (r *Repository) RecordVerification(ctx context.Context, v *VerificationResult) error {
	v.ID = uuid.New().String()
	v.RanAt = time.Now().UTC()
	_, err := r.db.Exec(ctx,
		`INSERT INTO job_verification_results (id, job_id, attempt_id, template, passed, detail, ran_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		v.ID, v.JobID, v.AttemptID, v.Template, v.Passed, v.Detail, v.RanAt,
	)
	return err
}

// RecordEscrowEvent appends an audit row for on-chain activity.
func (r *Repository) RecordEscrowEvent(ctx context.Context, e *EscrowEvent) error {
	e.ID = uuid.New().String()
	e.CreatedAt = time.Now().UTC()
	_, err := r.db.Exec(ctx,
		`INSERT INTO escrow_events (id, job_id, kind, signature, detail, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		e.ID, e.JobID, e.Kind, e.Signature, e.Detail, e.CreatedAt,
	)
	return err
}

// RecordEscrowEventIfNew inserts e unless a row already exists with the
// same (job_id, signature) — the idempotency guard a re-delivered webhook
// event needs: applying the same signed instruction twice must be a no-op.
// Events with an empty signature (off-chain-originated, e.g. "sweep_failed")
// are never deduplicated.
func (r *Repository) RecordEscrowEventIfNew(ctx context.Context, e *EscrowEvent) (inserted bool, err error) {
	e.ID = uuid.New().String()
	e.CreatedAt = time.Now().UTC()
	tag, err := r.db.Exec(ctx,
		`INSERT INTO escrow_events (id, job_id, kind, signature, detail, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (job_id, signature) WHERE signature <> '' DO NOTHING`,
		e.ID, e.JobID, e.Kind, e.Signature, e.Detail, e.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CreateDispute opens a dispute and sets its 48-hour voting window
// (disputeVotingWindow).
func (r *Repository) CreateDispute(ctx context.Context, d *JobDispute) error {
	d.ID = uuid.New().String()
	d.CreatedAt = time.Now().UTC()
	if d.Status == "" {
		d.Status = "voting"
	}
	if d.VotingEndsAt.IsZero() {
		d.VotingEndsAt = d.CreatedAt.Add(disputeVotingWindow)
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO job_disputes (id, job_id, opened_by, reason, status, voting_ends_at, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		d.ID, d.JobID, d.OpenedBy, d.Reason, d.Status, d.VotingEndsAt, d.CreatedAt,
	)
	return err
}

const disputeColumns = `id, job_id, opened_by, reason, status, voting_ends_at, votes_for_worker, votes_for_poster, voter_count, created_at, resolved_at`

func scanDispute(row pgx.Row) (*JobDispute, error) {
	d := &JobDispute{}
	if err := row.Scan(&d.ID, &d.JobID, &d.OpenedBy, &d.Reason, &d.Status, &d.VotingEndsAt,
		&d.VotesForWorker, &d.VotesForPoster, &d.VoterCount, &d.CreatedAt, &d.ResolvedAt); err != nil {
		return nil, err
	}
	return d, nil
}

// GetDisputeByID loads one dispute, satisfying internal/governance's narrow
// DisputeStore interface.
func (r *Repository) GetDisputeByID(ctx context.Context, id string) (*JobDispute, error) {
	d, err := scanDispute(r.db.QueryRow(ctx, `SELECT `+disputeColumns+` FROM job_disputes WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// RecordDisputeVote folds one weighted ballot into the dispute's running
// tally. internal/governance owns the individual DisputeVote rows (for the
// one-vote-per-agent uniqueness check); this just updates the aggregate
// jobs.JobDispute carries so Submit/Approve-adjacent reads never need to
// join against governance's tables.
func (r *Repository) RecordDisputeVote(ctx context.Context, disputeID string, forWorker bool, weight float64) error {
	column := "votes_for_poster"
	if forWorker {
		column = "votes_for_worker"
	}
	_, err := r.db.Exec(ctx,
		`UPDATE job_disputes SET `+column+` = `+column+` + $1, voter_count = voter_count + 1 WHERE id = $2`,
		weight, disputeID,
	)
	return err
}

// RefundCancelledEscrow records a refund transaction against a job the
// poster cancelled, without disturbing its already-terminal cancelled
// status (unlike SetEscrowRefunded, which is for the dispute-loss path).
func (r *Repository) RefundCancelledEscrow(ctx context.Context, jobID, tx string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE jobs SET escrow_status = $1, escrow_refund_tx = $2 WHERE id = $3`,
		EscrowRefunded, tx, jobID,
	)
	return err
}

// CountCompletedForWorker counts jobs workerID has completed or been paid
// for — governance's contribution-weighted vote weight needs this figure.
func (r *Repository) CountCompletedForWorker(ctx context.Context, workerID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM jobs WHERE worker_id = $1 AND status IN ($2, $3)`,
		workerID, StatusCompleted, StatusPaid,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("jobs: count completed for worker: %w", err)
	}
	return n, nil
}

// ListJobsAwaitingWalletForWorker finds completed-but-unreleased jobs for a
// worker who just bound a wallet — the seam agents/service.EscrowReleaser
// calls on wallet verify.
func (r *Repository) ListJobsAwaitingWalletForWorker(ctx context.Context, workerID string) ([]*Job, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE worker_id = $1 AND status IN ($2, $3) AND escrow_release_tx = ''`,
		workerID, StatusCompleted, StatusPendingVerification,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
