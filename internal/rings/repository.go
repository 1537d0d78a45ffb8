package rings

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moltcities/backend/internal/cryptoutil"
	"github.com/moltcities/backend/internal/store"
)

// ErrNotFound is returned when a ring lookup matches no row.
var ErrNotFound = errors.New("rings: not found")

// Repository persists Ring and Membership rows.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository builds a Repository over an existing pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new ring, assigning its ID and CreatedAt.
func (r *Repository) Create(ctx context.Context, ring *Ring) error {
	ring.ID = cryptoutil.NewID()
	ring.CreatedAt = time.Now().UTC()
	_, err := r.db.Exec(ctx,
		`INSERT INTO rings (id, slug, title, description, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ring.ID, ring.Slug, ring.Title, ring.Description, ring.CreatedBy, ring.CreatedAt,
	)
	if store.IsUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

// GetBySlug returns a ring by its case-folded slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*Ring, error) {
	ring := &Ring{}
	err := r.db.QueryRow(ctx,
		`SELECT id, slug, title, description, created_by, created_at
		 FROM rings WHERE lower(slug) = lower($1)`, slug,
	).Scan(&ring.ID, &ring.Slug, &ring.Title, &ring.Description, &ring.CreatedBy, &ring.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ring, err
}

// List returns every ring, most recently created first.
func (r *Repository) List(ctx context.Context) ([]*Ring, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, slug, title, description, created_by, created_at
		 FROM rings ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Ring
	for rows.Next() {
		ring := &Ring{}
		if err := rows.Scan(&ring.ID, &ring.Slug, &ring.Title, &ring.Description, &ring.CreatedBy, &ring.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ring)
	}
	return out, rows.Err()
}

// Join adds siteID to ringID's membership. Idempotent: joining twice is a
// no-op rather than a conflict.
func (r *Repository) Join(ctx context.Context, ringID, siteID string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO ring_memberships (ring_id, site_id, joined_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (ring_id, site_id) DO NOTHING`,
		ringID, siteID, time.Now().UTC(),
	)
	return err
}

// Leave removes siteID from ringID's membership.
func (r *Repository) Leave(ctx context.Context, ringID, siteID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM ring_memberships WHERE ring_id = $1 AND site_id = $2`, ringID, siteID)
	return err
}

// LeaveAllForSite removes every membership for siteID — called when a site
// is deleted, per spec.md's cascade ("deleting a site cascades to
// guestbook, follows, ring memberships").
func (r *Repository) LeaveAllForSite(ctx context.Context, siteID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM ring_memberships WHERE site_id = $1`, siteID)
	return err
}

// IsMember reports whether siteID belongs to the ring identified by slug.
func (r *Repository) IsMember(ctx context.Context, slug, siteID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM ring_memberships m
			JOIN rings r ON r.id = m.ring_id
			WHERE lower(r.slug) = lower($1) AND m.site_id = $2
		)`, slug, siteID,
	).Scan(&exists)
	return exists, err
}

// ListMembers returns every site ID belonging to ringID.
func (r *Repository) ListMembers(ctx context.Context, ringID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT site_id FROM ring_memberships WHERE ring_id = $1`, ringID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var siteID string
		if err := rows.Scan(&siteID); err != nil {
			return nil, err
		}
		out = append(out, siteID)
	}
	return out, rows.Err()
}
