package chat

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/moltcities/backend/internal/notify"
	"go.uber.org/zap"
)

const (
	minMessageLen = 1
	maxMessageLen = 500
)

// ErrInvalidInput is returned for an empty or oversized message.
var ErrInvalidInput = errors.New("chat: invalid input")

// mentionPattern matches @slug tokens; slugs are lowercase alphanumerics
// and hyphens, the same alphabet internal/sites validates against.
var mentionPattern = regexp.MustCompile(`@([a-z0-9][a-z0-9-]{1,48})`)

// SiteResolver looks up the agent behind a slug, if any.
type SiteResolver interface {
	ResolveSlugToAgentID(ctx context.Context, slug string) (agentID string, ok bool, err error)
}

// Service is the Town Square orchestrator: persist, broadcast, scan for
// mentions, notify mentioned agents.
type Service struct {
	repo   *Repository
	hub    *notify.Hub
	sites  SiteResolver
	logger *zap.Logger
}

// NewService builds a Service.
func NewService(repo *Repository, hub *notify.Hub, sites SiteResolver, logger *zap.Logger) *Service {
	return &Service{repo: repo, hub: hub, sites: sites, logger: logger}
}

// Post validates, persists, broadcasts, and scans a new Town Square message
// for @slug mentions.
func (s *Service) Post(ctx context.Context, agentID, displayName, message string) (*Post, error) {
	if len(message) < minMessageLen || len(message) > maxMessageLen {
		return nil, fmt.Errorf("%w: message must be %d-%d chars", ErrInvalidInput, minMessageLen, maxMessageLen)
	}

	id, err := uuid.Parse(agentID)
	if err != nil {
		return nil, fmt.Errorf("chat: invalid agent id: %w", err)
	}

	post := &Post{AgentID: id, Message: message}
	if err := s.repo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("chat: create post: %w", err)
	}
	post.Author = displayName

	s.hub.BroadcastTownSquare("chat_message", post)
	s.notifyMentions(ctx, agentID, message)

	return post, nil
}

// notifyMentions resolves every @slug token in message to an agent and
// pushes a mention.town_square notification to each, skipping self-mentions
// and unresolved slugs.
func (s *Service) notifyMentions(ctx context.Context, posterAgentID, message string) {
	seen := make(map[string]bool)
	for _, match := range mentionPattern.FindAllStringSubmatch(message, -1) {
		slug := strings.ToLower(match[1])
		if seen[slug] {
			continue
		}
		seen[slug] = true

		mentionedID, ok, err := s.sites.ResolveSlugToAgentID(ctx, slug)
		if err != nil {
			s.logger.Warn("chat: mention resolution failed", zap.String("slug", slug), zap.Error(err))
			continue
		}
		if !ok || mentionedID == posterAgentID {
			continue
		}
		s.hub.Notify(mentionedID, "mention.town_square", map[string]string{"slug": slug, "by": posterAgentID})
	}
}

// ListRecent returns the most recent Town Square posts.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*Post, error) {
	return s.repo.ListRecent(ctx, limit)
}

// CountMessagesSince satisfies internal/jobs/verify.ChatLookup's
// chat_messages template.
func (s *Service) CountMessagesSince(ctx context.Context, agentID string, since time.Time, minLength int) (int, error) {
	id, err := uuid.Parse(agentID)
	if err != nil {
		return 0, fmt.Errorf("chat: invalid agent id: %w", err)
	}
	return s.repo.CountSince(ctx, id, since, minLength)
}
