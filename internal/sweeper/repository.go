package sweeper

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists CronRun audit rows.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository builds a Repository over an existing pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// RecordRun inserts one tick's audit row.
func (r *Repository) RecordRun(ctx context.Context, run *CronRun) error {
	run.ID = uuid.New().String()
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO escrow_cron_runs
		 (id, started_at, elapsed_ms, released, failed, expired, challenges_deleted, notes)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		run.ID, run.StartedAt, run.ElapsedMS, run.Released, run.Failed, run.Expired,
		run.ChallengesDeleted, run.Notes,
	)
	return err
}
