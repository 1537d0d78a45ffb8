package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists Town Square posts.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a post.
func (r *Repository) Create(ctx context.Context, p *Post) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(ctx,
		`INSERT INTO town_square_posts (id, agent_id, message, signature, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		p.ID, p.AgentID, p.Message, p.Signature, p.CreatedAt,
	)
	return err
}

// ListRecent returns the most recent posts, newest first, joined with the
// author's display name.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]*Post, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx,
		`SELECT p.id, p.agent_id, a.display_name, p.message, p.signature, p.created_at
		 FROM town_square_posts p
		 JOIN agents a ON a.id = p.agent_id
		 ORDER BY p.created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Post
	for rows.Next() {
		p := &Post{}
		if err := rows.Scan(&p.ID, &p.AgentID, &p.Author, &p.Message, &p.Signature, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountSince returns how many posts an agent has made at or after since,
// used by the chat_messages verification template.
func (r *Repository) CountSince(ctx context.Context, agentID uuid.UUID, since time.Time, minLength int) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM town_square_posts
		 WHERE agent_id = $1 AND created_at >= $2 AND length(message) >= $3`,
		agentID, since, minLength,
	).Scan(&count)
	return count, err
}
