// Package webhooks ingests unsolicited ledger-operator events describing
// on-chain escrow activity (`POST /api/webhooks/helius`), classifies each
// instruction, and applies the matching job-status transition. Grounded on
// the escrow reconciliation invariant: re-delivery of the same event must
// be a no-op because each (job, signature) pair is recorded once under a
// unique index, and a repeat skips the transition
// (internal/jobs.Service.ApplyEscrowWebhookEvent).
package webhooks

// Event is one transaction event as delivered by the ledger operator's
// webhook. The wire shape mirrors Helius's "enhanced transaction" payload:
// a signature, the account keys touched, and the program's log messages —
// the log messages are what carry the instruction name this package
// classifies on.
type Event struct {
	Signature   string   `json:"signature"`
	AccountKeys []string `json:"accountKeys"`
	LogMessages []string `json:"logMessages"`
	Description string   `json:"description"`
}
