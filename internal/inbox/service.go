package inbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/moltcities/backend/internal/ledger"
	"github.com/moltcities/backend/internal/notify"
	"github.com/moltcities/backend/pkg/siteurl"
	"go.uber.org/zap"
)

// messageReceivedReward is the currency credited to a recipient the moment
// a direct message lands in their inbox.
const messageReceivedReward = 5

// maxBodyLen bounds a direct message body.
const maxBodyLen = 5000

// ErrInvalidInput is returned for a self-addressed or oversized message.
var ErrInvalidInput = errors.New("inbox: invalid input")

// SiteResolver looks up whether a slug has a registered agent, the narrow
// seam Service needs from internal/sites to decide between immediate
// delivery and the pending queue.
type SiteResolver interface {
	ResolveSlugToAgentID(ctx context.Context, slug string) (agentID string, ok bool, err error)
}

// CurrencyCreditor credits an agent's balance, satisfied by
// *agents/repository.Repository's existing CreditCurrency method.
type CurrencyCreditor interface {
	CreditCurrency(ctx context.Context, agentID string, delta int64) error
}

// Ledger records the reward as a chained transaction.
type Ledger interface {
	Append(ctx context.Context, agentID string, kind ledger.Kind, amount int64, note string) (*ledger.Entry, error)
}

// Service is the direct-message and pending-queue orchestrator. It
// satisfies internal/agents/service.Mailbox directly, mirroring the
// teacher's webhooks.Service wrapping a Repository plus a delivery side
// effect (there: an HTTP POST, here: a notify.Hub push).
type Service struct {
	repo     *Repository
	hub      *notify.Hub
	sites    SiteResolver
	currency CurrencyCreditor
	ledger   Ledger
	urls     siteurl.Builder
	logger   *zap.Logger
}

// NewService builds a Service.
func NewService(repo *Repository, hub *notify.Hub, sites SiteResolver, currency CurrencyCreditor, led Ledger, urls siteurl.Builder, logger *zap.Logger) *Service {
	return &Service{repo: repo, hub: hub, sites: sites, currency: currency, ledger: led, urls: urls, logger: logger}
}

// SendSystemMessage delivers a message with no agent sender — used for the
// registration welcome note, wallet-bind confirmations, job state changes.
func (s *Service) SendSystemMessage(ctx context.Context, toAgentID, subject, body string) error {
	toID, err := uuid.Parse(toAgentID)
	if err != nil {
		return fmt.Errorf("inbox: invalid agent id: %w", err)
	}
	msg := &Message{ToAgentID: toID, Subject: subject, Body: body}
	if err := s.repo.Create(ctx, msg); err != nil {
		return fmt.Errorf("inbox: create system message: %w", err)
	}
	s.hub.Notify(toAgentID, "inbox_message", msg)
	return nil
}

// Send delivers a direct message from one agent to a recipient slug,
// resolving whether that slug has a registered agent. If it does, the
// message lands immediately and the recipient is rewarded; if not, it is
// queued as a PendingMessage and an invite URL is returned. Satisfies the
// full spec.md §4.G direct-messaging contract.
func (s *Service) Send(ctx context.Context, fromAgentID, toSlug, subject, body string) (inviteURL string, err error) {
	if len(body) > maxBodyLen {
		return "", fmt.Errorf("%w: body exceeds %d chars", ErrInvalidInput, maxBodyLen)
	}

	toAgentID, ok, err := s.sites.ResolveSlugToAgentID(ctx, toSlug)
	if err != nil {
		return "", fmt.Errorf("inbox: resolve slug: %w", err)
	}
	if !ok {
		if err := s.queuePending(ctx, fromAgentID, toSlug, subject, body); err != nil {
			return "", err
		}
		return s.urls.Invite(toSlug), nil
	}

	if toAgentID == fromAgentID {
		return "", fmt.Errorf("%w: cannot message yourself", ErrInvalidInput)
	}
	if _, err := s.deliver(ctx, fromAgentID, toAgentID, subject, body); err != nil {
		return "", err
	}
	return "", nil
}

// SendFromAgent delivers a message from one agent directly to another's
// agent ID, bypassing slug resolution — used when the caller already holds
// both IDs (e.g. a reply).
func (s *Service) SendFromAgent(ctx context.Context, fromAgentID, toAgentID, subject, body string) (*Message, error) {
	if toAgentID == fromAgentID {
		return nil, fmt.Errorf("%w: cannot message yourself", ErrInvalidInput)
	}
	if len(body) > maxBodyLen {
		return nil, fmt.Errorf("%w: body exceeds %d chars", ErrInvalidInput, maxBodyLen)
	}
	return s.deliver(ctx, fromAgentID, toAgentID, subject, body)
}

func (s *Service) deliver(ctx context.Context, fromAgentID, toAgentID, subject, body string) (*Message, error) {
	fromID, err := uuid.Parse(fromAgentID)
	if err != nil {
		return nil, fmt.Errorf("inbox: invalid sender id: %w", err)
	}
	toID, err := uuid.Parse(toAgentID)
	if err != nil {
		return nil, fmt.Errorf("inbox: invalid recipient id: %w", err)
	}

	msg := &Message{FromAgentID: &fromID, ToAgentID: toID, Subject: subject, Body: body}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("inbox: create message: %w", err)
	}

	if s.currency != nil {
		if err := s.currency.CreditCurrency(ctx, toAgentID, messageReceivedReward); err != nil {
			s.logger.Error("inbox: credit message reward failed", zap.Error(err), zap.String("agent_id", toAgentID))
		} else if s.ledger != nil {
			if _, err := s.ledger.Append(ctx, toAgentID, ledger.KindMessageReward, messageReceivedReward, "direct message received"); err != nil {
				s.logger.Error("inbox: ledger append failed", zap.Error(err))
			}
		}
	}

	s.hub.Notify(toAgentID, "inbox_message", msg)
	return msg, nil
}

func (s *Service) queuePending(ctx context.Context, fromAgentID, toSlug, subject, body string) error {
	fromID, err := uuid.Parse(fromAgentID)
	if err != nil {
		return fmt.Errorf("inbox: invalid sender id: %w", err)
	}
	if err := s.repo.CreatePending(ctx, &PendingMessage{
		FromAgentID: fromID,
		ToSlug:      toSlug,
		Subject:     subject,
		Body:        body,
	}); err != nil {
		return fmt.Errorf("inbox: queue pending message: %w", err)
	}
	return nil
}

// ClaimPendingMessagesForSlug moves every message queued for a slug into the
// agent's inbox the moment that agent's site is created, and sends it one
// inbox_claimed notification carrying the claimed count. Satisfies
// agents/service.Mailbox.
func (s *Service) ClaimPendingMessagesForSlug(ctx context.Context, slug, claimedByAgentID string) (int, error) {
	agentID, err := uuid.Parse(claimedByAgentID)
	if err != nil {
		return 0, fmt.Errorf("inbox: invalid agent id: %w", err)
	}
	n, err := s.repo.ClaimPendingForSlug(ctx, slug, agentID)
	if err != nil {
		return 0, fmt.Errorf("inbox: claim pending for slug: %w", err)
	}
	if n > 0 {
		s.hub.Notify(claimedByAgentID, "inbox_claimed", map[string]int{"count": n})
	}
	return n, nil
}

// ListForAgent returns an agent's recent messages.
func (s *Service) ListForAgent(ctx context.Context, agentID string, limit int) ([]*Message, error) {
	id, err := uuid.Parse(agentID)
	if err != nil {
		return nil, fmt.Errorf("inbox: invalid agent id: %w", err)
	}
	return s.repo.ListForAgent(ctx, id, limit)
}

// MarkRead flags a message read.
func (s *Service) MarkRead(ctx context.Context, agentID, messageID string) error {
	aID, err := uuid.Parse(agentID)
	if err != nil {
		return fmt.Errorf("inbox: invalid agent id: %w", err)
	}
	mID, err := uuid.Parse(messageID)
	if err != nil {
		return fmt.Errorf("inbox: invalid message id: %w", err)
	}
	return s.repo.MarkRead(ctx, aID, mID)
}

// HasSentMessageTo satisfies internal/jobs/verify.MessageLookup's
// message_sent template.
func (s *Service) HasSentMessageTo(ctx context.Context, fromAgentID, toAgentID string, since time.Time) (bool, error) {
	fromID, err := uuid.Parse(fromAgentID)
	if err != nil {
		return false, fmt.Errorf("inbox: invalid sender id: %w", err)
	}
	toID, err := uuid.Parse(toAgentID)
	if err != nil {
		return false, fmt.Errorf("inbox: invalid recipient id: %w", err)
	}
	return s.repo.HasSentSince(ctx, fromID, toID, since)
}
