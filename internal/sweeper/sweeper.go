// Package sweeper runs the escrow reconciliation tick: auto-releasing jobs
// whose manual-review window elapsed, expiring stale job postings, and
// pruning expired two-phase pending registrations — grounded on the
// teacher's background-ticker idiom in cmd/registry/main.go ("expire stale
// DNS challenges every 5 minutes"), generalized from one ticker goroutine
// to a cron.Schedule so the interval is externally configurable.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// JobSweeper is the narrow interface into internal/jobs the sweeper drives.
type JobSweeper interface {
	SweepExpiredReviews(ctx context.Context) (released, failed int, err error)
	ExpireStaleJobs(ctx context.Context) (int, error)
}

// ChallengeExpirer is the narrow interface into internal/challenge the
// sweeper drives, satisfied by *challenge.Service.
type ChallengeExpirer interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Runner executes one reconciliation tick at a time.
type Runner struct {
	jobs       JobSweeper
	challenges ChallengeExpirer
	repo       *Repository
	tickTimeout time.Duration
	logger     *zap.Logger
}

// New builds a Runner.
func New(jobs JobSweeper, challenges ChallengeExpirer, repo *Repository, tickTimeout time.Duration, logger *zap.Logger) *Runner {
	if tickTimeout == 0 {
		tickTimeout = 30 * time.Second
	}
	return &Runner{jobs: jobs, challenges: challenges, repo: repo, tickTimeout: tickTimeout, logger: logger}
}

// Tick runs one pass. Every step's error is logged and folded into the
// run's audit row rather than aborting the tick — a transient RPC failure
// on one job must never block the expiry sweep or the next scheduled tick.
func (r *Runner) Tick(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, r.tickTimeout)
	defer cancel()

	start := time.Now().UTC()
	run := &CronRun{StartedAt: start}

	released, failed, err := r.jobs.SweepExpiredReviews(ctx)
	if err != nil {
		r.logger.Error("sweep expired reviews failed", zap.Error(err))
		run.Notes = "sweep_expired_reviews: " + err.Error()
	}
	run.Released, run.Failed = released, failed

	expired, err := r.jobs.ExpireStaleJobs(ctx)
	if err != nil {
		r.logger.Error("expire stale jobs failed", zap.Error(err))
		if run.Notes != "" {
			run.Notes += "; "
		}
		run.Notes += "expire_stale_jobs: " + err.Error()
	}
	run.Expired = expired

	deleted, err := r.challenges.DeleteExpired(ctx)
	if err != nil {
		r.logger.Error("delete expired pending registrations failed", zap.Error(err))
		if run.Notes != "" {
			run.Notes += "; "
		}
		run.Notes += "delete_expired_challenges: " + err.Error()
	}
	run.ChallengesDeleted = deleted

	run.ElapsedMS = time.Since(start).Milliseconds()
	if err := r.repo.RecordRun(ctx, run); err != nil {
		r.logger.Error("record cron run failed", zap.Error(err))
	}

	r.logger.Info("sweeper tick complete",
		zap.Int("released", run.Released), zap.Int("failed", run.Failed),
		zap.Int("expired", run.Expired), zap.Int64("challenges_deleted", run.ChallengesDeleted),
		zap.Int64("elapsed_ms", run.ElapsedMS))
}
