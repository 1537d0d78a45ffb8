// cmd/server runs the moltcities public API: agent identity, sites, the job
// marketplace, governance, rings, Town Square chat, direct messaging,
// real-time notifications, platform-staff accounts, and the inbound escrow
// webhook. Wiring follows the teacher's cmd/registry/main.go — one run()
// func assembling every layer, a gin.Engine behind CORS and a per-IP rate
// limit, graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	agentrepo "github.com/moltcities/backend/internal/agents/repository"
	agentsvc "github.com/moltcities/backend/internal/agents/service"

	agentshandler "github.com/moltcities/backend/internal/agents/handler"
	"github.com/moltcities/backend/internal/antisquat"
	"github.com/moltcities/backend/internal/challenge"
	"github.com/moltcities/backend/internal/chat"
	chathandler "github.com/moltcities/backend/internal/chat/handler"
	"github.com/moltcities/backend/internal/config"
	"github.com/moltcities/backend/internal/email"
	"github.com/moltcities/backend/internal/escrow"
	"github.com/moltcities/backend/internal/governance"
	governancehandler "github.com/moltcities/backend/internal/governance/handler"
	"github.com/moltcities/backend/internal/health"
	"github.com/moltcities/backend/internal/httpapi"
	"github.com/moltcities/backend/internal/inbox"
	inboxhandler "github.com/moltcities/backend/internal/inbox/handler"
	"github.com/moltcities/backend/internal/jobs"
	jobshandler "github.com/moltcities/backend/internal/jobs/handler"
	"github.com/moltcities/backend/internal/jobs/verify"
	"github.com/moltcities/backend/internal/ledger"
	"github.com/moltcities/backend/internal/notify"
	"github.com/moltcities/backend/internal/platformusers"
	platformhandler "github.com/moltcities/backend/internal/platformusers/handler"
	"github.com/moltcities/backend/internal/ratelimit"
	"github.com/moltcities/backend/internal/rings"
	ringshandler "github.com/moltcities/backend/internal/rings/handler"
	"github.com/moltcities/backend/internal/sites"
	siteshandler "github.com/moltcities/backend/internal/sites/handler"
	"github.com/moltcities/backend/internal/statscache"
	"github.com/moltcities/backend/internal/webhooks"
	"github.com/moltcities/backend/pkg/siteurl"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}

// ringSiteAdapter satisfies rings.SiteResolver over *sites.Repository,
// whose GetByAgentID returns the full *sites.Site the rings package
// deliberately doesn't import — narrowed here to the one field it needs.
type ringSiteAdapter struct {
	sites *sites.Repository
}

func (a ringSiteAdapter) GetByAgentID(ctx context.Context, agentID string) (rings.Site, error) {
	site, err := a.sites.GetByAgentID(ctx, agentID)
	if err != nil {
		return rings.Site{}, err
	}
	return rings.Site{ID: site.ID}, nil
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load("server")
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

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable at startup; burst-limit and stats caching degrade to direct computation", zap.Error(err))
		}
	}

	escrowClient, err := escrow.NewClient(escrow.Config{
		RPCURL:         cfg.EscrowRPCURL,
		PlatformWallet: cfg.PlatformWallet,
	})
	if err != nil {
		return fmt.Errorf("build escrow client: %w", err)
	}

	// ── Repositories ─────────────────────────────────────────────────────────
	agentRepo := agentrepo.NewRepository(db)
	siteRepo := sites.NewRepository(db)
	ringRepo := rings.NewRepository(db)
	chatRepo := chat.NewRepository(db)
	inboxRepo := inbox.NewRepository(db)
	jobRepo := jobs.NewRepository(db)
	governanceRepo := governance.NewRepository(db)
	platformRepo := platformusers.NewRepository(db)

	// ── Cross-cutting services ───────────────────────────────────────────────
	chSvc := challenge.NewService(challenge.NewPostgresStore(db), logger)
	led := ledger.New(db, logger)
	hub := notify.NewHub(logger, nil)
	limiter := ratelimit.NewLimiter(ratelimit.NewPostgresBucketStore(db))
	squatter := antisquat.NewRuleBasedScorer(rdb)
	urls := siteurl.New(cfg.FrontendURL)

	ringSvc := rings.NewService(ringRepo, ringSiteAdapter{sites: siteRepo}, logger)
	siteSvc := sites.NewService(siteRepo, ringSvc, logger)

	var mailer email.EmailSender
	mailer = email.NewNoopSender(logger)

	chatSvc := chat.NewService(chatRepo, hub, siteSvc, logger)
	inboxSvc := inbox.NewService(inboxRepo, hub, siteSvc, agentRepo, led, urls, logger)

	// agentSvc and jobSvc depend on each other (agentSvc.escrow releases
	// jobs awaiting a wallet; jobSvc.agents reads trust tiers and wallet
	// state) — build agentSvc first with no escrow releaser, then wire
	// jobSvc's *Service back in once it exists.
	agentSvc := agentsvc.New(agentRepo, siteRepo, chSvc, led, inboxSvc, nil, squatter, logger)

	verifyDeps := verify.Dependencies{
		Sites:  siteSvc,
		Agents: agentSvc,
		Chat:   chatSvc,
		Inbox:  inboxSvc,
		Rings:  ringSvc,
		HTTP:   &http.Client{Timeout: 10 * time.Second},
	}
	jobSvc := jobs.NewService(jobRepo, escrowClient, led, hub, limiter, agentSvc, verifyDeps, logger)
	agentSvc.SetEscrowReleaser(jobSvc)

	statsAdapter := governance.StatsAdapter{
		Agents:    agentSvc,
		Resolver:  agentSvc,
		Referrals: agentRepo,
		Jobs:      jobRepo,
		Guestbook: siteRepo,
	}
	governanceSvc := governance.NewService(governanceRepo, jobRepo, agentSvc, statsAdapter, logger)

	webhooksSvc := webhooks.NewService(jobSvc, logger)

	platformTokens := platformusers.NewTokenIssuer([]byte(cfg.JWTSigningKey), cfg.FrontendURL, cfg.BearerTokenTTL)
	platformSvc := platformusers.NewService(platformRepo, mailer, cfg.FrontendURL, logger)

	statsCache := statscache.New(rdb, agentRepo, jobRepo, logger)
	healthChecker := health.New(db, escrowClient, health.Config{}, logger)

	// ── Handlers ──────────────────────────────────────────────────────────────
	auth := agentshandler.New(agentSvc, logger)
	jobsH := jobshandler.New(jobSvc, auth, logger)
	sitesH := siteshandler.New(siteSvc, auth, agentSvc, logger)
	governanceH := governancehandler.New(governanceSvc, auth, logger)
	ringsH := ringshandler.New(ringSvc, auth, logger)
	chatH := chathandler.New(chatSvc, auth, logger)
	inboxH := inboxhandler.New(inboxSvc, auth, logger)
	webhooksH := webhooks.New(webhooksSvc, cfg.HeliusWebhookSecret, logger)
	platformH := platformhandler.New(platformSvc, platformTokens, cfg.OAuth, cfg.FrontendURL, logger)
	statsH := statscache.NewHandler(statsCache, logger)
	healthH := health.NewHandler(healthChecker)
	notifyH := notify.NewHandler(hub, func(ctx context.Context, authHeader string) (string, error) {
		agent, err := agentSvc.Authenticate(ctx, authHeader)
		if err != nil {
			return "", err
		}
		return agent.ID, nil
	}, logger)

	engine := httpapi.New(httpapi.Config{
		CORSOrigins:  cfg.CORSOrigins,
		RateLimitRPS: cfg.RateLimitRPS,
	}, logger, healthH,
		auth, jobsH, sitesH, governanceH, ringsH, chatH, inboxH, webhooksH, platformH, statsH, notifyH,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("moltcities server listening", zap.Int("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}
