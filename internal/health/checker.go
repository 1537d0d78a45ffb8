// Package health reports service readiness for GET /healthz: the database
// pool and the escrow ledger RPC endpoint both need to answer before the
// process is considered healthy. Adapted from the teacher's per-agent
// endpoint prober — there is no fleet of agent HTTP endpoints to probe in
// this domain, only the two external dependencies the request path blocks
// on (Postgres, the ledger RPC).
package health

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DBPinger checks database reachability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// LedgerPinger checks escrow RPC reachability.
type LedgerPinger interface {
	Ping(ctx context.Context) error
}

// Status is the outcome of one component's check.
type Status struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Report is the full GET /healthz payload.
type Report struct {
	Healthy   bool              `json:"healthy"`
	CheckedAt time.Time         `json:"checked_at"`
	Checks    map[string]Status `json:"checks"`
}

// Checker probes the service's external dependencies on demand.
type Checker struct {
	db     DBPinger
	ledger LedgerPinger
	cfg    Config
	logger *zap.Logger
}

// Config bounds how long any single probe may block.
type Config struct {
	ProbeTimeout time.Duration
}

// New builds a Checker. ledger may be nil if the process has no escrow
// dependency (e.g. a future read-only binary); its check is then skipped.
func New(db DBPinger, ledger LedgerPinger, cfg Config, logger *zap.Logger) *Checker {
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	return &Checker{db: db, ledger: ledger, cfg: cfg, logger: logger}
}

// Check probes every configured dependency and returns the combined report.
func (c *Checker) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	checks := make(map[string]Status)
	healthy := true

	dbStatus := probe(ctx, c.db.Ping)
	checks["database"] = dbStatus
	healthy = healthy && dbStatus.Healthy

	if c.ledger != nil {
		ledgerStatus := probe(ctx, c.ledger.Ping)
		checks["escrow_rpc"] = ledgerStatus
		healthy = healthy && ledgerStatus.Healthy
	}

	if !healthy {
		c.logger.Warn("health check failed", zap.Any("checks", checks))
	}

	return Report{Healthy: healthy, CheckedAt: time.Now().UTC(), Checks: checks}
}

func probe(ctx context.Context, ping func(context.Context) error) Status {
	if err := ping(ctx); err != nil {
		return Status{Healthy: false, Error: err.Error()}
	}
	return Status{Healthy: true}
}
