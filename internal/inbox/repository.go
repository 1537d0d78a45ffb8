package inbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a message is not found.
var ErrNotFound = errors.New("inbox: message not found")

// Repository provides persistence for direct messages and the pending
// queue, following the teacher's webhooks.Repository pool-and-scan shape.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a direct message.
func (r *Repository) Create(ctx context.Context, msg *Message) error {
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(ctx,
		`INSERT INTO inbox_messages (id, from_agent_id, to_agent_id, subject, body, read, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		msg.ID, msg.FromAgentID, msg.ToAgentID, msg.Subject, msg.Body, msg.Read, msg.CreatedAt,
	)
	return err
}

// HasSentSince reports whether fromAgentID has sent toAgentID a direct
// message at or after since.
func (r *Repository) HasSentSince(ctx context.Context, fromAgentID, toAgentID uuid.UUID, since time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM inbox_messages
			WHERE from_agent_id = $1 AND to_agent_id = $2 AND created_at >= $3
		)`, fromAgentID, toAgentID, since,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// ListForAgent returns an agent's most recent messages, newest first.
func (r *Repository) ListForAgent(ctx context.Context, agentID uuid.UUID, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, from_agent_id, to_agent_id, subject, body, read, created_at
		 FROM inbox_messages WHERE to_agent_id = $1 ORDER BY created_at DESC LIMIT $2`,
		agentID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		m := &Message{}
		if err := rows.Scan(&m.ID, &m.FromAgentID, &m.ToAgentID, &m.Subject, &m.Body, &m.Read, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkRead flags a message read, scoped to its owner.
func (r *Repository) MarkRead(ctx context.Context, agentID, messageID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE inbox_messages SET read = true WHERE id = $1 AND to_agent_id = $2`,
		messageID, agentID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// maxPendingPerSlug bounds how many unclaimed messages can queue for a
// single unregistered slug, per spec.
const maxPendingPerSlug = 50

// ErrPendingQueueFull is returned when a slug's pending queue is at capacity.
var ErrPendingQueueFull = errors.New("inbox: pending queue full for slug")

// CreatePending queues a message for a slug that has no registered agent.
func (r *Repository) CreatePending(ctx context.Context, p *PendingMessage) error {
	var count int
	if err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM inbox_pending_messages WHERE to_slug = $1`, p.ToSlug,
	).Scan(&count); err != nil {
		return err
	}
	if count >= maxPendingPerSlug {
		return ErrPendingQueueFull
	}

	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(ctx,
		`INSERT INTO inbox_pending_messages (id, from_agent_id, to_slug, subject, body, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		p.ID, p.FromAgentID, p.ToSlug, p.Subject, p.Body, p.CreatedAt,
	)
	return err
}

// ClaimPendingForSlug moves every queued message addressed to a slug into
// the now-registered agent's inbox, in one transaction, and returns how
// many were claimed.
func (r *Repository) ClaimPendingForSlug(ctx context.Context, slug string, claimedByAgentID uuid.UUID) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rows, err := tx.Query(ctx,
		`DELETE FROM inbox_pending_messages WHERE to_slug = $1 RETURNING from_agent_id, subject, body, created_at`,
		slug,
	)
	if err != nil {
		return 0, err
	}

	type claimed struct {
		from    uuid.UUID
		subject string
		body    string
		created time.Time
	}
	var batch []claimed
	for rows.Next() {
		var c claimed
		if err := rows.Scan(&c.from, &c.subject, &c.body, &c.created); err != nil {
			rows.Close()
			return 0, err
		}
		batch = append(batch, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, c := range batch {
		from := c.from
		if _, err := tx.Exec(ctx,
			`INSERT INTO inbox_messages (id, from_agent_id, to_agent_id, subject, body, read, created_at)
			 VALUES ($1,$2,$3,$4,$5,false,$6)`,
			uuid.New(), from, claimedByAgentID, c.subject, c.body, c.created,
		); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(batch), nil
}
