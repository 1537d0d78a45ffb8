package inbox

import (
	"context"
	"errors"
	"testing"

	"github.com/moltcities/backend/internal/notify"
	"github.com/moltcities/backend/pkg/siteurl"
	"go.uber.org/zap"
)

type stubSiteResolver struct {
	agentID string
	ok      bool
}

func (s stubSiteResolver) ResolveSlugToAgentID(ctx context.Context, slug string) (string, bool, error) {
	return s.agentID, s.ok, nil
}

func newTestService(resolver SiteResolver) *Service {
	return NewService(nil, notify.NewHub(zap.NewNop(), nil), resolver, nil, nil, siteurl.New("https://example.test"), zap.NewNop())
}

func TestSendSystemMessageRejectsInvalidAgentID(t *testing.T) {
	s := newTestService(stubSiteResolver{})
	err := s.SendSystemMessage(context.Background(), "not-a-uuid", "hi", "body")
	if err == nil {
		t.Fatal("expected error for invalid agent id")
	}
}

func TestClaimPendingMessagesForSlugRejectsInvalidAgentID(t *testing.T) {
	s := newTestService(stubSiteResolver{})
	_, err := s.ClaimPendingMessagesForSlug(context.Background(), "some-slug", "not-a-uuid")
	if err == nil {
		t.Fatal("expected error for invalid agent id")
	}
}

func TestSendRejectsOverlongBody(t *testing.T) {
	s := newTestService(stubSiteResolver{})
	body := make([]byte, maxBodyLen+1)
	_, err := s.Send(context.Background(), "11111111-1111-1111-1111-111111111111", "some-slug", "hi", string(body))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSendRejectsSelfMessage(t *testing.T) {
	const agentID = "11111111-1111-1111-1111-111111111111"
	s := newTestService(stubSiteResolver{agentID: agentID, ok: true})
	_, err := s.Send(context.Background(), agentID, "my-own-slug", "hi", "body")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
