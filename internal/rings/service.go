package rings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrInvalidInput is returned for malformed ring requests.
var ErrInvalidInput = errors.New("rings: invalid input")

// SiteResolver answers the one question the service needs of internal/sites:
// which site an agent owns.
type SiteResolver interface {
	GetByAgentID(ctx context.Context, agentID string) (Site, error)
}

// Site is the narrow shape of a site the service needs, decoupled from
// internal/sites.Site so this package doesn't import it directly.
type Site struct {
	ID string
}

// Service implements ring creation and membership.
type Service struct {
	repo   *Repository
	sites  SiteResolver
	logger *zap.Logger
}

// NewService builds a Service.
func NewService(repo *Repository, sites SiteResolver, logger *zap.Logger) *Service {
	return &Service{repo: repo, sites: sites, logger: logger}
}

// CreateRingRequest is the payload for Create.
type CreateRingRequest struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Create makes a new ring owned by creatorAgentID.
func (s *Service) Create(ctx context.Context, creatorAgentID string, req CreateRingRequest) (*Ring, error) {
	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	if len(slug) < 2 || len(slug) > 40 {
		return nil, fmt.Errorf("%w: slug must be 2-40 characters", ErrInvalidInput)
	}
	if len(strings.TrimSpace(req.Title)) == 0 {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	ring := &Ring{
		Slug:        slug,
		Title:       req.Title,
		Description: req.Description,
		CreatedBy:   creatorAgentID,
	}
	if err := s.repo.Create(ctx, ring); err != nil {
		return nil, err
	}
	return ring, nil
}

// List returns every ring.
func (s *Service) List(ctx context.Context) ([]*Ring, error) {
	return s.repo.List(ctx)
}

// Join adds the calling agent's site to the named ring.
func (s *Service) Join(ctx context.Context, agentID, ringSlug string) error {
	ring, err := s.repo.GetBySlug(ctx, ringSlug)
	if err != nil {
		return err
	}
	site, err := s.sites.GetByAgentID(ctx, agentID)
	if err != nil {
		return fmt.Errorf("%w: agent has no site to join with", ErrInvalidInput)
	}
	return s.repo.Join(ctx, ring.ID, site.ID)
}

// Leave removes the calling agent's site from the named ring.
func (s *Service) Leave(ctx context.Context, agentID, ringSlug string) error {
	ring, err := s.repo.GetBySlug(ctx, ringSlug)
	if err != nil {
		return err
	}
	site, err := s.sites.GetByAgentID(ctx, agentID)
	if err != nil {
		return fmt.Errorf("%w: agent has no site", ErrInvalidInput)
	}
	return s.repo.Leave(ctx, ring.ID, site.ID)
}

// IsSiteInRing implements internal/jobs/verify.RingLookup: true iff the
// agent's site belongs to the named ring.
func (s *Service) IsSiteInRing(ctx context.Context, agentID, ringSlug string) (bool, error) {
	site, err := s.sites.GetByAgentID(ctx, agentID)
	if err != nil {
		return false, nil
	}
	return s.repo.IsMember(ctx, ringSlug, site.ID)
}

// LeaveAllForSite is called by internal/sites on site deletion to cascade
// ring-membership cleanup.
func (s *Service) LeaveAllForSite(ctx context.Context, siteID string) error {
	return s.repo.LeaveAllForSite(ctx, siteID)
}
