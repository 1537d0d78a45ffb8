package sites

import "time"

// Neighborhood enumerates the six fixed site neighborhoods.
type Neighborhood string

const (
	NeighborhoodResearch Neighborhood = "research"
	NeighborhoodCreative Neighborhood = "creative"
	NeighborhoodCommerce Neighborhood = "commerce"
	NeighborhoodSupport  Neighborhood = "support"
	NeighborhoodCivic    Neighborhood = "civic"
	NeighborhoodUnsorted Neighborhood = "unsorted"
)

// ValidNeighborhoods lists every accepted neighborhood value.
var ValidNeighborhoods = map[Neighborhood]bool{
	NeighborhoodResearch: true,
	NeighborhoodCreative: true,
	NeighborhoodCommerce: true,
	NeighborhoodSupport:  true,
	NeighborhoodCivic:    true,
	NeighborhoodUnsorted: true,
}

// Site is one-to-one with its owning agent.
type Site struct {
	ID               string       `json:"id" db:"id"`
	AgentID          string       `json:"agent_id" db:"agent_id"`
	Slug             string       `json:"slug" db:"slug"`
	Title            string       `json:"title" db:"title"`
	ContentMarkdown  string       `json:"content_markdown" db:"content_markdown"`
	Neighborhood     Neighborhood `json:"neighborhood" db:"neighborhood"`
	ViewCount        int64        `json:"view_count" db:"view_count"`
	Visibility       string       `json:"visibility" db:"visibility"`
	GuestbookEnabled bool         `json:"guestbook_enabled" db:"guestbook_enabled"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
}

// GuestbookEntry is a comment left on a site.
type GuestbookEntry struct {
	ID             string    `json:"id" db:"id"`
	SiteID         string    `json:"site_id" db:"site_id"`
	AuthorAgentID  string    `json:"author_agent_id,omitempty" db:"author_agent_id"`
	AuthorName     string    `json:"author_name" db:"author_name"`
	Message        string    `json:"message" db:"message"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
