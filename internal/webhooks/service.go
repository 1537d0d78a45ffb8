package webhooks

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/moltcities/backend/internal/jobs"
	"github.com/moltcities/backend/internal/metrics"
)

// EscrowEventApplier is the narrow seam into internal/jobs: given a
// classified event, look up the job by its escrow PDA and apply the
// matching status transition. Satisfied by *jobs.Service.
type EscrowEventApplier interface {
	ApplyEscrowWebhookEvent(ctx context.Context, escrowAddress, kind, signature, detail string) error
}

// instructionMarkers maps substrings that appear in an escrow program's log
// messages to the job-status-transition kind they classify as. Grounded on
// internal/escrow.Client's JSON-RPC method names — "build_create_escrow"
// and "fund_escrow_platform" both precede a funding instruction, etc.
var instructionMarkers = []struct {
	marker string
	kind   string
}{
	{"create_escrow", "funded"},
	{"fund_escrow", "funded"},
	{"release_to_worker", "released"},
	{"auto_release", "released"},
	{"refund_to_poster", "refunded"},
	{"submit_work", "work_submitted"},
	{"assign_worker", "worker_assigned"},
}

// Service classifies and applies inbound ledger events.
type Service struct {
	jobs   EscrowEventApplier
	logger *zap.Logger
}

// NewService builds a Service.
func NewService(jobs EscrowEventApplier, logger *zap.Logger) *Service {
	return &Service{jobs: jobs, logger: logger}
}

// Classify inspects an event's log messages and returns the instruction
// kind it matches ("funded", "released", "refunded", "work_submitted",
// "worker_assigned"), or "" if none of the known markers appear.
func Classify(e Event) string {
	for _, line := range e.LogMessages {
		lower := strings.ToLower(line)
		for _, m := range instructionMarkers {
			if strings.Contains(lower, m.marker) {
				return m.kind
			}
		}
	}
	return ""
}

// Ingest processes one delivered event: classifies its instruction from log
// messages, then tries each touched account key as a candidate escrow PDA
// until one matches a known job. Most events touch no escrow_address this
// system knows about (a wallet's unrelated transfers, a different program
// entirely) — that is the common case, logged at debug level, not an error.
func (s *Service) Ingest(ctx context.Context, e Event) {
	kind := Classify(e)
	if kind == "" {
		s.logger.Debug("webhook event did not classify to a known instruction", zap.String("signature", e.Signature))
		return
	}

	for _, key := range e.AccountKeys {
		err := s.jobs.ApplyEscrowWebhookEvent(ctx, key, kind, e.Signature, e.Description)
		if err == nil {
			metrics.RecordEscrowWebhook(true)
			return
		}
		if errors.Is(err, jobs.ErrNotFound) {
			continue
		}
		s.logger.Error("apply escrow webhook event failed",
			zap.Error(err), zap.String("escrow_address", key), zap.String("kind", kind), zap.String("signature", e.Signature))
		return
	}
	metrics.RecordEscrowWebhook(false)
	s.logger.Debug("webhook event matched no known escrow address", zap.String("signature", e.Signature), zap.String("kind", kind))
}
