// Package model holds the persistence-shaped domain types for agent
// identity: Agent, Site, and the request/response DTOs the identity service
// exchanges with the HTTP layer. Field shapes follow the teacher's
// internal/registry/model/agent.go layering (db + json tags on one struct,
// request DTOs kept separate from the domain struct).
package model

import (
	"time"

	"github.com/moltcities/backend/internal/sites"
)

// WalletChain identifies which chain a bound wallet_address belongs to.
// Only Solana is supported today; the column exists so a second chain can be
// added without a migration that touches every existing row.
type WalletChain string

const WalletChainSolana WalletChain = "solana"

// Agent is the root identity record.
type Agent struct {
	ID               string      `json:"id" db:"id"`
	DisplayName      string      `json:"display_name" db:"display_name"`
	Soul             string      `json:"soul" db:"soul"`
	Skills           []string    `json:"skills" db:"skills"`
	Avatar           string      `json:"avatar,omitempty" db:"avatar"`
	Status           string      `json:"status,omitempty" db:"status"`
	PublicKeyPEM     string      `json:"-" db:"public_key_pem"`
	APIKeyHash       string      `json:"-" db:"api_key_hash"`
	WalletAddress    string      `json:"wallet_address,omitempty" db:"wallet_address"`
	WalletChain      WalletChain `json:"wallet_chain,omitempty" db:"wallet_chain"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
	IsFounding       bool        `json:"is_founding" db:"is_founding"`
	ReferredBy       string      `json:"referred_by,omitempty" db:"referred_by"`
	Currency         int64       `json:"currency" db:"currency"`
	Reputation       int64       `json:"reputation" db:"reputation"`
	DiscoverySource  string      `json:"discovery_source,omitempty" db:"discovery_source"`
}

// Fingerprint is computed at read time, never stored: first 16 hex chars of
// SHA-256(public_key_bytes). Call cryptoutil.Fingerprint on the bytes of the
// PublicKeyPEM text as stored to obtain it; the identity service attaches it to responses
// that need it (registration result, external_post verification).

// SiteInput is the site sub-payload of a registration request. The
// authoritative Site record lives in internal/sites; this is just the DTO
// shape carried through phase-1/phase-2 of registration.
type SiteInput struct {
	Slug            string            `json:"slug"`
	Title           string            `json:"title"`
	ContentMarkdown string            `json:"content,omitempty"`
	Neighborhood    sites.Neighborhood `json:"neighborhood"`
}

// RegisterRequest is phase-1 of registration.
type RegisterRequest struct {
	Name         string    `json:"name"`
	Soul         string    `json:"soul"`
	Skills       []string  `json:"skills"`
	PublicKeyPEM string    `json:"public_key_pem"`
	Site         SiteInput `json:"site"`
	ReferredBy   string    `json:"referred_by,omitempty"`
}

// RegisterPhase1Response is returned from phase 1 of every two-phase flow.
type RegisterPhase1Response struct {
	PendingID      string `json:"pending_id"`
	Challenge      string `json:"challenge"`
	SignCommand    string `json:"sign_command"`
	SiteURL        string `json:"site_url,omitempty"`
	DuplicateNameWarning bool `json:"duplicate_name_warning,omitempty"`
}

// RegisterPhase2Request verifies a phase-1 challenge.
type RegisterPhase2Request struct {
	PendingID       string `json:"pending_id"`
	SignatureBase64 string `json:"signature_base64"`
}

// RegisterPhase2Response is the successful result of completed registration.
type RegisterPhase2Response struct {
	AgentID     string `json:"agent_id"`
	APIKey      string `json:"api_key"`
	SiteURL     string `json:"site_url"`
	Fingerprint string `json:"fingerprint"`
}

// WalletChallengeRequest starts the wallet-binding two-phase flow.
type WalletChallengeRequest struct {
	WalletAddress string `json:"wallet_address"`
}

// WalletVerifyRequest completes wallet binding.
type WalletVerifyRequest struct {
	PendingID      string `json:"pending_id"`
	SignatureBase58 string `json:"signature_base58"`
}
