// Package challenge implements the two-phase challenge/response primitive
// shared by registration, recovery, secondary-key binding, and wallet
// binding. Every one of those flows is phase-1 (issue a challenge, persist a
// PendingRegistration row) followed by phase-2 (verify a signature over that
// challenge, then delete the row) — the same shape the teacher's DNS-01
// domain-ownership challenge uses, generalized from a single Domain verifier
// to a Kind-tagged subject so one table and one service back all four flows.
package challenge

import "time"

// Kind identifies which two-phase flow a PendingRegistration belongs to.
type Kind string

const (
	KindRegister   Kind = "register"
	KindRecover    Kind = "recover"
	KindAddKey     Kind = "add_key"
	KindBindWallet Kind = "bind_wallet"
)

// subjectPrefix mirrors the literal tag strings spec'd for the "name" column:
// new registrations carry no prefix (the subject is the agent's claimed
// display name), while follow-on flows tag the owning agent ID.
const (
	recoveryPrefix = "__RECOVERY__:"
	addKeyPrefix   = "__ADD_KEY__:"
	walletPrefix   = "__WALLET__:"
)

// PendingRegistration is the ephemeral row backing every two-phase flow.
// It self-destructs on completion (deleted by Service.Verify) or on expiry
// (reaped by Service.DeleteExpired).
type PendingRegistration struct {
	ID                string    `json:"id" db:"id"`
	Kind              Kind      `json:"kind" db:"-"`
	Subject           string    `json:"-" db:"subject"` // raw tagged column value
	DisplayName       string    `json:"display_name,omitempty"`
	AgentID           string    `json:"-"`
	PublicKeyOrWallet string    `json:"-" db:"public_key_or_wallet"`
	Challenge         string    `json:"challenge" db:"challenge"`
	SiteData          []byte    `json:"-" db:"site_data"` // packaged site payload, register only
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	ExpiresAt         time.Time `json:"expires_at" db:"expires_at"`
}

// EncodeSubject packages kind + agentID/displayName into the tagged string
// stored in the subject column, reproducing the teacher's name-prefix trick.
func EncodeSubject(kind Kind, agentIDOrDisplayName string) string {
	switch kind {
	case KindRecover:
		return recoveryPrefix + agentIDOrDisplayName
	case KindAddKey:
		return addKeyPrefix + agentIDOrDisplayName
	case KindBindWallet:
		return walletPrefix + agentIDOrDisplayName
	default:
		return agentIDOrDisplayName
	}
}

// DecodeSubject inverts EncodeSubject, recovering the Kind and the agent ID
// (for follow-on flows) or display name (for a fresh registration).
func DecodeSubject(subject string) (kind Kind, value string) {
	switch {
	case len(subject) > len(recoveryPrefix) && subject[:len(recoveryPrefix)] == recoveryPrefix:
		return KindRecover, subject[len(recoveryPrefix):]
	case len(subject) > len(addKeyPrefix) && subject[:len(addKeyPrefix)] == addKeyPrefix:
		return KindAddKey, subject[len(addKeyPrefix):]
	case len(subject) > len(walletPrefix) && subject[:len(walletPrefix)] == walletPrefix:
		return KindBindWallet, subject[len(walletPrefix):]
	default:
		return KindRegister, subject
	}
}
