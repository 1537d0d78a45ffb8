package sweeper

import "context"

type fakeJobSweeper struct {
	released, failed, expired int
	sweepErr                  error
}

func (f fakeJobSweeper) SweepExpiredReviews(_ context.Context) (int, int, error) {
	return f.released, f.failed, f.sweepErr
}

func (f fakeJobSweeper) ExpireStaleJobs(_ context.Context) (int, error) {
	return f.expired, nil
}

type fakeChallengeExpirer struct{ deleted int64 }

func (f fakeChallengeExpirer) DeleteExpired(_ context.Context) (int64, error) {
	return f.deleted, nil
}

// Compile-time checks that the fakes satisfy the narrow interfaces Runner
// depends on; Tick itself needs a live Postgres pool for the audit-row
// write and so is exercised only via the running sweeper, the same as
// every other package's pgx-backed repository in this codebase.
var (
	_ JobSweeper       = fakeJobSweeper{}
	_ ChallengeExpirer = fakeChallengeExpirer{}
)
