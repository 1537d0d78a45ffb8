// cmd/sweeper runs the escrow reconciliation cron standalone, outside the
// request path: auto-release jobs past their manual-review deadline, expire
// stale job postings, and prune expired two-phase pending registrations.
// Wiring mirrors cmd/server's, minus the HTTP router — grounded on the
// teacher's cmd/registry/main.go, which ran the same kind of cleanup as one
// background goroutine inside the API process rather than a separate binary.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/moltcities/backend/internal/agents/repository"
	agentsvc "github.com/moltcities/backend/internal/agents/service"
	"github.com/moltcities/backend/internal/challenge"
	"github.com/moltcities/backend/internal/config"
	"github.com/moltcities/backend/internal/escrow"
	"github.com/moltcities/backend/internal/jobs"
	"github.com/moltcities/backend/internal/jobs/verify"
	"github.com/moltcities/backend/internal/ledger"
	"github.com/moltcities/backend/internal/notify"
	"github.com/moltcities/backend/internal/ratelimit"
	"github.com/moltcities/backend/internal/sites"
	"github.com/moltcities/backend/internal/sweeper"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("sweeper exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load("sweeper")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("connected to postgres")

	escrowClient, err := escrow.NewClient(escrow.Config{
		RPCURL:         cfg.EscrowRPCURL,
		PlatformWallet: cfg.PlatformWallet,
	})
	if err != nil {
		return fmt.Errorf("build escrow client: %w", err)
	}

	agentRepo := repository.NewRepository(db)
	siteRepo := sites.NewRepository(db)
	chSvc := challenge.NewService(challenge.NewPostgresStore(db), logger)
	led := ledger.New(db, logger)
	hub := notify.NewHub(logger, nil)
	limiter := ratelimit.NewLimiter(ratelimit.NewPostgresBucketStore(db))

	// The sweeper only ever calls Service.SweepExpiredReviews and
	// Service.ExpireStaleJobs, neither of which reaches verify.Run — so the
	// verification-template lookups (worker-submission flows, exercised by
	// cmd/server) are left unwired here rather than duplicating that wiring
	// in a binary that never calls Submit.
	agentSvc := agentsvc.New(agentRepo, siteRepo, chSvc, led, nil, nil, nil, logger)

	jobRepo := jobs.NewRepository(db)
	jobSvc := jobs.NewService(jobRepo, escrowClient, led, hub, limiter, agentSvc, verify.Dependencies{}, logger)

	sweepRepo := sweeper.NewRepository(db)
	runner := sweeper.New(jobSvc, chSvc, sweepRepo, 30*time.Second, logger)

	interval := cfg.SweeperInterval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	c := cron.New()
	spec := fmt.Sprintf("@every %s", interval)
	if _, err := c.AddFunc(spec, func() { runner.Tick(context.Background()) }); err != nil {
		return fmt.Errorf("schedule sweeper tick: %w", err)
	}
	c.Start()
	logger.Info("sweeper scheduled", zap.Duration("interval", interval))

	// Run once immediately so a freshly deployed sweeper doesn't wait a full
	// interval before its first pass.
	runner.Tick(context.Background())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down sweeper...")
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return nil
}
