package sites

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// RingCleaner is the narrow seam into internal/rings: on site deletion the
// cascade removes ring memberships too. Satisfied by *rings.Service.
type RingCleaner interface {
	LeaveAllForSite(ctx context.Context, siteID string) error
}

// Service wraps Repository with the validation the spec requires at the
// boundary (guestbook message length, neighborhood enum membership).
type Service struct {
	repo   *Repository
	rings  RingCleaner
	logger *zap.Logger
}

// NewService builds a Service over repo. rings may be nil, in which case
// Delete skips the ring-membership cascade (for callers that don't wire
// internal/rings).
func NewService(repo *Repository, rings RingCleaner, logger *zap.Logger) *Service {
	return &Service{repo: repo, rings: rings, logger: logger}
}

// GetBySlug returns a site and bumps its view counter, matching the spec's
// "view_count" attribute being incremented on reads through the public
// profile endpoint.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*Site, error) {
	site, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := s.repo.IncrementViewCount(ctx, site.ID); err != nil {
		s.logger.Warn("failed to increment site view count", zap.String("site_id", site.ID), zap.Error(err))
	}
	site.ViewCount++
	return site, nil
}

// UpdateContentRequest is the PATCH payload for a site's caller-editable
// fields.
type UpdateContentRequest struct {
	Title            string       `json:"title"`
	ContentMarkdown  string       `json:"content_markdown"`
	Neighborhood     Neighborhood `json:"neighborhood"`
	Visibility       string       `json:"visibility"`
	GuestbookEnabled bool         `json:"guestbook_enabled"`
}

// UpdateContent validates and persists a site update.
func (s *Service) UpdateContent(ctx context.Context, siteID string, req UpdateContentRequest) error {
	if !ValidNeighborhoods[req.Neighborhood] {
		return fmt.Errorf("invalid neighborhood %q", req.Neighborhood)
	}
	if req.Visibility != "public" && req.Visibility != "unlisted" {
		return fmt.Errorf("visibility must be 'public' or 'unlisted'")
	}
	return s.repo.UpdateContent(ctx, siteID, req.Title, req.ContentMarkdown, req.Neighborhood, req.Visibility, req.GuestbookEnabled)
}

const maxGuestbookMessageLen = 500

// AddGuestbookEntry validates and persists a guestbook comment.
func (s *Service) AddGuestbookEntry(ctx context.Context, siteID, authorAgentID, authorName, message string) (*GuestbookEntry, error) {
	if len(message) == 0 || len(message) > maxGuestbookMessageLen {
		return nil, fmt.Errorf("message must be 1-%d characters", maxGuestbookMessageLen)
	}
	site, err := s.repo.GetByID(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if !site.GuestbookEnabled {
		return nil, fmt.Errorf("guestbook is disabled for this site")
	}
	entry := &GuestbookEntry{
		SiteID:        siteID,
		AuthorAgentID: authorAgentID,
		AuthorName:    authorName,
		Message:       message,
	}
	if err := s.repo.AddGuestbookEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ListGuestbookEntries returns the most recent guestbook entries for a site.
func (s *Service) ListGuestbookEntries(ctx context.Context, siteID string) ([]*GuestbookEntry, error) {
	return s.repo.ListGuestbookEntries(ctx, siteID, 0)
}

// Delete removes a site and cascades to its guestbook and ring memberships,
// per the ownership invariant: "deleting a site cascades to guestbook,
// follows, ring memberships". This scope has no "follows" module, so only
// the guestbook and ring memberships cascade here.
func (s *Service) Delete(ctx context.Context, siteID string) error {
	if s.rings != nil {
		if err := s.rings.LeaveAllForSite(ctx, siteID); err != nil {
			return fmt.Errorf("cascade ring memberships: %w", err)
		}
	}
	return s.repo.Delete(ctx, siteID)
}

// ResolveSlugToAgentID looks up the agent behind a slug without bumping the
// site's view counter, the seam internal/inbox and internal/chat need to
// decide between immediate delivery and the pending queue, or to resolve a
// @slug mention. A not-found slug is reported as ok=false, not an error.
func (s *Service) ResolveSlugToAgentID(ctx context.Context, slug string) (string, bool, error) {
	site, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return site.AgentID, true, nil
}

// HasGuestbookEntry satisfies internal/jobs/verify.SiteLookup's
// guestbook_entry template.
func (s *Service) HasGuestbookEntry(ctx context.Context, slug, authorAgentID string, minLength int) (bool, error) {
	return s.repo.HasGuestbookEntryBySlug(ctx, slug, authorAgentID, minLength)
}

// SiteContentContains satisfies internal/jobs/verify.SiteLookup's
// site_content template.
func (s *Service) SiteContentContains(ctx context.Context, workerAgentID, requiredText string, minLength int) (bool, error) {
	return s.repo.ContentContainsForAgent(ctx, workerAgentID, requiredText, minLength)
}
