package ledger

import (
	"testing"
	"time"
)

func TestHashEntryIsDeterministic(t *testing.T) {
	e := &Entry{
		Index:     1,
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		AgentID:   "agent_1",
		Kind:      KindRegistrationBonus,
		Amount:    100,
		DataHash:  sha256Sum([]byte("agent_1|registration_bonus|100|welcome")),
		PrevHash:  GenesisHash,
	}

	h1 := hashEntry(e)
	h2 := hashEntry(e)
	if h1 != h2 {
		t.Errorf("hashEntry is not deterministic: %q != %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("expected 64-char hex hash, got %d chars", len(h1))
	}
}

func TestHashEntryChangesWithAmount(t *testing.T) {
	base := &Entry{
		Index:    1,
		AgentID:  "agent_1",
		Kind:     KindJobEscrowRelease,
		PrevHash: GenesisHash,
	}
	base.Amount = 100
	h1 := hashEntry(base)
	base.Amount = 200
	h2 := hashEntry(base)
	if h1 == h2 {
		t.Error("expected different hashes for different amounts")
	}
}

func TestGenesisHashIsWellKnownZeroValue(t *testing.T) {
	if GenesisHash != "0000000000000000000000000000000000000000000000000000000000000000" {
		t.Errorf("GenesisHash changed unexpectedly: %q", GenesisHash)
	}
}
