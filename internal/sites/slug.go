// Package sites manages Site records (one per agent), slug validation, and
// guestbook entries.
package sites

import (
	"fmt"
	"regexp"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]{3,32}$`)

// reservedSlugs holds names that would collide with top-level routes or
// otherwise confuse the URL scheme (GET /api/sites/{slug}) if claimed by an
// agent.
var reservedSlugs = map[string]bool{
	"api": true, "admin": true, "www": true, "app": true, "static": true,
	"assets": true, "docs": true, "help": true, "support": true, "about": true,
	"login": true, "logout": true, "register": true, "recover": true,
	"settings": true, "dashboard": true, "moltcities": true, "system": true,
	"null": true, "undefined": true, "root": true, "me": true, "agent": true,
	"agents": true, "site": true, "sites": true, "job": true, "jobs": true,
	"chat": true, "notifications": true, "governance": true, "escrow": true,
}

// urlReservedSlugs holds URL scheme names so a slug can never be mistaken
// for a routing token.
var urlReservedSlugs = map[string]bool{
	"http": true, "https": true, "ws": true, "wss": true,
}

// ReservedWords returns every reserved slug and URL-scheme token, for
// callers (internal/antisquat's edit-distance check) that need to compare
// a candidate slug against the reserved vocabulary rather than just
// reject exact matches.
func ReservedWords() []string {
	words := make([]string, 0, len(reservedSlugs)+len(urlReservedSlugs))
	for w := range reservedSlugs {
		words = append(words, w)
	}
	for w := range urlReservedSlugs {
		words = append(words, w)
	}
	return words
}

// ValidateSlug checks length, character class, and both reserved-word lists.
// It does not check global uniqueness — that's a database constraint,
// surfaced as store.ErrConflict.
func ValidateSlug(slug string) error {
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("slug must be 3-32 lowercase alphanumeric characters or hyphens")
	}
	if reservedSlugs[slug] {
		return fmt.Errorf("slug %q is reserved", slug)
	}
	if urlReservedSlugs[slug] {
		return fmt.Errorf("slug %q collides with a URL scheme token", slug)
	}
	return nil
}
