package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// advisoryLockKey serialises concurrent Append calls across every registry
// instance. The value is arbitrary but must stay constant.
const advisoryLockKey = int64(2_308_411_009)

// Ledger persists the hash-chained transaction log to Postgres.
type Ledger struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New builds a Ledger over an existing pool.
func New(pool *pgxpool.Pool, logger *zap.Logger) *Ledger {
	return &Ledger{pool: pool, logger: logger}
}

// Append inserts a new chained entry, serialised with a Postgres advisory
// lock so concurrent appends from different request goroutines (or replicas)
// never race on prev_hash.
func (l *Ledger) Append(ctx context.Context, agentID string, kind Kind, amount int64, note string) (*Entry, error) {
	dataHash := sha256Sum([]byte(fmt.Sprintf("%s|%s|%d|%s", agentID, kind, amount, note)))

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return nil, fmt.Errorf("ledger: acquire advisory lock: %w", err)
	}

	var prevIdx int64
	var prevHash string
	if err := tx.QueryRow(ctx,
		"SELECT idx, hash FROM ledger_entries ORDER BY idx DESC LIMIT 1",
	).Scan(&prevIdx, &prevHash); err != nil {
		return nil, fmt.Errorf("ledger: read chain tail: %w", err)
	}

	entry := &Entry{
		Index:     prevIdx + 1,
		Timestamp: time.Now().UTC(),
		AgentID:   agentID,
		Kind:      kind,
		Amount:    amount,
		Note:      note,
		DataHash:  dataHash,
		PrevHash:  prevHash,
	}
	entry.Hash = hashEntry(entry)

	if _, err := tx.Exec(ctx,
		`INSERT INTO ledger_entries (idx, timestamp, agent_id, kind, amount, note, data_hash, prev_hash, hash)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		entry.Index, entry.Timestamp, entry.AgentID, entry.Kind, entry.Amount,
		entry.Note, entry.DataHash, entry.PrevHash, entry.Hash,
	); err != nil {
		return nil, fmt.Errorf("ledger: insert entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ledger: commit tx: %w", err)
	}

	l.logger.Debug("ledger entry appended",
		zap.Int64("idx", entry.Index), zap.String("kind", string(entry.Kind)),
		zap.String("agent_id", entry.AgentID), zap.Int64("amount", entry.Amount))
	return entry, nil
}

// AppendSystemCredit satisfies agents/service.Ledger: a registration or
// referral bonus credited with no counterparty debit.
func (l *Ledger) AppendSystemCredit(ctx context.Context, toAgentID string, amount int64, note string) error {
	kind := KindSystemAdjustment
	switch note {
	case "registration bonus":
		kind = KindRegistrationBonus
	default:
		if len(note) >= 14 && note[:14] == "referral bonus" {
			kind = KindReferralBonus
		}
	}
	_, err := l.Append(ctx, toAgentID, kind, amount, note)
	return err
}

// ListForAgent returns an agent's transaction history, newest first.
func (l *Ledger) ListForAgent(ctx context.Context, agentID string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.pool.Query(ctx,
		`SELECT idx, timestamp, agent_id, kind, amount, note, data_hash, prev_hash, hash
		 FROM ledger_entries WHERE agent_id = $1 ORDER BY idx DESC LIMIT $2`,
		agentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: list for agent: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(&e.Index, &e.Timestamp, &e.AgentID, &e.Kind, &e.Amount,
			&e.Note, &e.DataHash, &e.PrevHash, &e.Hash); err != nil {
			return nil, fmt.Errorf("ledger: scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Verify streams the whole chain ordered by idx and validates every link,
// the same O(n) full-chain audit as trustledger.PostgresLedger.Verify.
func (l *Ledger) Verify(ctx context.Context) error {
	rows, err := l.pool.Query(ctx,
		`SELECT idx, timestamp, agent_id, kind, amount, note, data_hash, prev_hash, hash
		 FROM ledger_entries ORDER BY idx ASC`,
	)
	if err != nil {
		return fmt.Errorf("ledger: query chain: %w", err)
	}
	defer rows.Close()

	var prev *Entry
	for rows.Next() {
		curr := &Entry{}
		if err := rows.Scan(&curr.Index, &curr.Timestamp, &curr.AgentID, &curr.Kind, &curr.Amount,
			&curr.Note, &curr.DataHash, &curr.PrevHash, &curr.Hash); err != nil {
			return fmt.Errorf("ledger: scan row: %w", err)
		}
		if prev == nil {
			if curr.Hash != GenesisHash {
				return fmt.Errorf("ledger: genesis entry has wrong hash: got %q", curr.Hash)
			}
			prev = curr
			continue
		}
		if curr.PrevHash != prev.Hash {
			return fmt.Errorf("ledger: chain broken at index %d", curr.Index)
		}
		if curr.Hash != hashEntry(curr) {
			return fmt.Errorf("ledger: entry %d has invalid hash", curr.Index)
		}
		prev = curr
	}
	return rows.Err()
}
