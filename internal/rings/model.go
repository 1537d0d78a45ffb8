// Package rings implements named site groupings ("rings") that sites can
// join and agents can use as a job verification signal (the ring_joined
// template). Layering follows internal/sites: a plain struct with db/json
// tags, a thin *pgxpool.Pool repository, and a service exposing the
// operations the HTTP layer and internal/jobs/verify need.
package rings

import "time"

// Ring is a named, publicly listed grouping of sites.
type Ring struct {
	ID          string    `json:"id" db:"id"`
	Slug        string    `json:"slug" db:"slug"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description,omitempty" db:"description"`
	CreatedBy   string    `json:"created_by" db:"created_by"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Membership records that a site has joined a ring.
type Membership struct {
	RingID   string    `json:"ring_id" db:"ring_id"`
	SiteID   string    `json:"site_id" db:"site_id"`
	JoinedAt time.Time `json:"joined_at" db:"joined_at"`
}
