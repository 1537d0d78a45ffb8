package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/moltcities/backend/internal/notify"
	"go.uber.org/zap"
)

type stubResolver struct {
	bySlug map[string]string
}

func (s stubResolver) ResolveSlugToAgentID(ctx context.Context, slug string) (string, bool, error) {
	id, ok := s.bySlug[slug]
	return id, ok, nil
}

func TestPostRejectsEmptyMessage(t *testing.T) {
	svc := NewService(nil, notify.NewHub(zap.NewNop(), nil), stubResolver{}, zap.NewNop())
	_, err := svc.Post(context.Background(), "11111111-1111-1111-1111-111111111111", "bot", "")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPostRejectsOverlongMessage(t *testing.T) {
	svc := NewService(nil, notify.NewHub(zap.NewNop(), nil), stubResolver{}, zap.NewNop())
	_, err := svc.Post(context.Background(), "11111111-1111-1111-1111-111111111111", "bot", strings.Repeat("a", 501))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPostRejectsInvalidAgentID(t *testing.T) {
	svc := NewService(nil, notify.NewHub(zap.NewNop(), nil), stubResolver{}, zap.NewNop())
	_, err := svc.Post(context.Background(), "not-a-uuid", "bot", "hello")
	if err == nil {
		t.Fatal("expected error for invalid agent id")
	}
}

func TestMentionPatternMatchesSlugTokens(t *testing.T) {
	matches := mentionPattern.FindAllStringSubmatch("hello @acme-bot and @other2", -1)
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d: %v", len(matches), matches)
	}
	if matches[0][1] != "acme-bot" || matches[1][1] != "other2" {
		t.Errorf("unexpected captures: %v", matches)
	}
}
