// Package ledger is the append-only, hash-chained audit trail of every
// currency movement: registration bonuses, referral bonuses, job escrow
// releases, refunds, and governance penalties. Adapted from the teacher's
// internal/trustledger, which chains agent lifecycle events (register,
// activate, revoke); here the chained event is a Transaction instead, but
// the hash-chain mechanics are unchanged.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// GenesisHash anchors the chain, identical in shape to trustledger's
// well-known constant.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Kind enumerates the reasons currency moves.
type Kind string

const (
	KindRegistrationBonus Kind = "registration_bonus"
	KindReferralBonus     Kind = "referral_bonus"
	KindMessageReward     Kind = "message_reward"
	KindJobEscrowRelease  Kind = "job_escrow_release"
	KindJobRefund         Kind = "job_refund"
	KindGovernancePenalty Kind = "governance_penalty"
	KindSystemAdjustment  Kind = "system_adjustment"
)

// Entry is a single chained audit record.
type Entry struct {
	Index     int64     `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	AgentID   string    `json:"agent_id"`
	Kind      Kind      `json:"kind"`
	Amount    int64     `json:"amount"`
	Note      string    `json:"note"`
	DataHash  string    `json:"data_hash"`
	PrevHash  string    `json:"prev_hash"`
	Hash      string    `json:"hash"`
}

// hashEntry computes a deterministic SHA-256 hash over an entry's fields.
// Must never be called on the genesis entry (index 0).
func hashEntry(e *Entry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%s|%d|%s|%s",
		e.Index, e.Timestamp.Format(time.RFC3339Nano),
		e.AgentID, e.Kind, e.Amount, e.DataHash, e.PrevHash,
	)
	return hex.EncodeToString(h.Sum(nil))
}

func sha256Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
