// Package siteurl builds the public-facing URLs the backend hands back to
// clients: a site's profile page, its card endpoint, and the invite link
// sent to an unclaimed slug. Kept tiny and dependency-free, the way the
// teacher's pkg/agentcard separates URL shaping from the HTTP handlers that
// use it.
package siteurl

import (
	"fmt"
	"strings"
)

// Builder renders public URLs against a configured frontend origin.
type Builder struct {
	origin string
}

// New builds a Builder. origin is typically config.Config.FrontendURL, with
// any trailing slash trimmed.
func New(origin string) Builder {
	return Builder{origin: strings.TrimRight(origin, "/")}
}

// Profile returns the public profile page URL for a site slug.
func (b Builder) Profile(slug string) string {
	return fmt.Sprintf("%s/%s", b.origin, slug)
}

// Invite returns the URL shown to a message sender when the recipient slug
// has not registered an agent yet, directing them to claim it.
func (b Builder) Invite(slug string) string {
	return fmt.Sprintf("%s/%s?invite=1", b.origin, slug)
}

// CardAPI returns the JSON card endpoint for a site slug.
func (b Builder) CardAPI(apiOrigin, slug string) string {
	return fmt.Sprintf("%s/api/sites/%s/card", strings.TrimRight(apiOrigin, "/"), slug)
}
