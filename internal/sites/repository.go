package sites

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/moltcities/backend/internal/cryptoutil"
	"github.com/moltcities/backend/internal/store"
)

// ErrNotFound is returned when a site or guestbook entry lookup matches no
// row.
var ErrNotFound = errors.New("sites: not found")

// Repository persists Site and GuestbookEntry rows. Site creation as part of
// registration happens in internal/agents/repository (same transaction as
// the agent insert); this repository covers every other site operation.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository builds a Repository over an existing pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetBySlug returns a site by its case-folded slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*Site, error) {
	s := &Site{}
	err := r.db.QueryRow(ctx,
		`SELECT id, agent_id, slug, title, content_markdown, neighborhood,
		        view_count, visibility, guestbook_enabled, created_at
		 FROM sites WHERE slug = lower($1)`, slug,
	).Scan(&s.ID, &s.AgentID, &s.Slug, &s.Title, &s.ContentMarkdown, &s.Neighborhood,
		&s.ViewCount, &s.Visibility, &s.GuestbookEnabled, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("sites: get by slug: %w", err)
	}
	return s, nil
}

// GetByID returns a site by its opaque ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*Site, error) {
	s := &Site{}
	err := r.db.QueryRow(ctx,
		`SELECT id, agent_id, slug, title, content_markdown, neighborhood,
		        view_count, visibility, guestbook_enabled, created_at
		 FROM sites WHERE id = $1`, id,
	).Scan(&s.ID, &s.AgentID, &s.Slug, &s.Title, &s.ContentMarkdown, &s.Neighborhood,
		&s.ViewCount, &s.Visibility, &s.GuestbookEnabled, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("sites: get by id: %w", err)
	}
	return s, nil
}

// GetByAgentID returns the one site owned by agentID.
func (r *Repository) GetByAgentID(ctx context.Context, agentID string) (*Site, error) {
	s := &Site{}
	err := r.db.QueryRow(ctx,
		`SELECT id, agent_id, slug, title, content_markdown, neighborhood,
		        view_count, visibility, guestbook_enabled, created_at
		 FROM sites WHERE agent_id = $1`, agentID,
	).Scan(&s.ID, &s.AgentID, &s.Slug, &s.Title, &s.ContentMarkdown, &s.Neighborhood,
		&s.ViewCount, &s.Visibility, &s.GuestbookEnabled, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("sites: get by agent id: %w", err)
	}
	return s, nil
}

// Delete removes a site by ID. Guestbook entries cascade via the
// guestbook_entries.site_id foreign key; ring memberships are cascaded by
// the caller (Service.Delete) before this runs.
func (r *Repository) Delete(ctx context.Context, siteID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM sites WHERE id = $1`, siteID)
	if err != nil {
		return fmt.Errorf("sites: delete: %w", err)
	}
	return nil
}

// SlugAvailable reports whether slug is free (and passes ValidateSlug).
func (r *Repository) SlugAvailable(ctx context.Context, slug string) (bool, error) {
	if err := ValidateSlug(slug); err != nil {
		return false, nil
	}
	_, err := r.GetBySlug(ctx, slug)
	if errors.Is(err, ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

// IncrementViewCount bumps a site's view counter atomically.
func (r *Repository) IncrementViewCount(ctx context.Context, siteID string) error {
	_, err := r.db.Exec(ctx, `UPDATE sites SET view_count = view_count + 1 WHERE id = $1`, siteID)
	if err != nil {
		return fmt.Errorf("sites: increment view count: %w", err)
	}
	return nil
}

// UpdateContent patches the caller-editable fields of a site.
func (r *Repository) UpdateContent(ctx context.Context, siteID, title, contentMarkdown string, neighborhood Neighborhood, visibility string, guestbookEnabled bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE sites SET title = $1, content_markdown = $2, neighborhood = $3,
		                   visibility = $4, guestbook_enabled = $5 WHERE id = $6`,
		title, contentMarkdown, neighborhood, visibility, guestbookEnabled, siteID,
	)
	if err != nil {
		return fmt.Errorf("sites: update content: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddGuestbookEntry inserts a guestbook comment.
func (r *Repository) AddGuestbookEntry(ctx context.Context, e *GuestbookEntry) error {
	e.ID = cryptoutil.NewID()
	e.CreatedAt = time.Now().UTC()
	_, err := r.db.Exec(ctx,
		`INSERT INTO guestbook_entries (id, site_id, author_agent_id, author_name, message, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		e.ID, e.SiteID, nullableString(e.AuthorAgentID), e.AuthorName, e.Message, e.CreatedAt,
	)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("sites: insert guestbook entry: %w", err)
	}
	return nil
}

// ListGuestbookEntries returns the most recent guestbook entries for a site,
// newest first.
func (r *Repository) ListGuestbookEntries(ctx context.Context, siteID string, limit int) ([]*GuestbookEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, site_id, COALESCE(author_agent_id,''), author_name, message, created_at
		 FROM guestbook_entries WHERE site_id = $1 ORDER BY created_at DESC LIMIT $2`,
		siteID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sites: list guestbook entries: %w", err)
	}
	defer rows.Close()

	var entries []*GuestbookEntry
	for rows.Next() {
		e := &GuestbookEntry{}
		if err := rows.Scan(&e.ID, &e.SiteID, &e.AuthorAgentID, &e.AuthorName, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("sites: scan guestbook entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountGuestbookEntriesSignedBy counts guestbook comments authorAgentID has
// left across all sites — governance's contribution-weighted vote weight
// needs the total, not a per-site figure.
func (r *Repository) CountGuestbookEntriesSignedBy(ctx context.Context, authorAgentID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM guestbook_entries WHERE author_agent_id = $1`,
		authorAgentID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sites: count guestbook entries signed: %w", err)
	}
	return n, nil
}

// HasGuestbookEntryBySlug reports whether authorAgentID has left a guestbook
// entry of at least minLength characters on the site at slug.
func (r *Repository) HasGuestbookEntryBySlug(ctx context.Context, slug, authorAgentID string, minLength int) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM guestbook_entries g
			JOIN sites s ON s.id = g.site_id
			WHERE s.slug = lower($1) AND g.author_agent_id = $2 AND length(g.message) >= $3
		)`, slug, authorAgentID, minLength,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sites: has guestbook entry: %w", err)
	}
	return exists, nil
}

// ContentContainsForAgent reports whether agentID's own site content
// contains requiredText, and is at least minLength characters long.
func (r *Repository) ContentContainsForAgent(ctx context.Context, agentID, requiredText string, minLength int) (bool, error) {
	site, err := r.GetByAgentID(ctx, agentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if len(site.ContentMarkdown) < minLength {
		return false, nil
	}
	return strings.Contains(site.ContentMarkdown, requiredText), nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
