package ratelimit

import (
	"context"
	"sync"
	"testing"

	"github.com/moltcities/backend/internal/trust"
)

type fakeBucketStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeBucketStore() *fakeBucketStore {
	return &fakeBucketStore{counts: make(map[string]int64)}
}

func (f *fakeBucketStore) Increment(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key], nil
}

func TestCheckAllowsWithinCap(t *testing.T) {
	store := newFakeBucketStore()
	l := NewLimiter(store)

	for i := 0; i < 5; i++ {
		d, err := l.Check(context.Background(), ActionMessage, "agent-1", trust.TierUnverified)
		if err != nil {
			t.Fatalf("attempt %d: unexpected error %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("attempt %d: expected allowed", i)
		}
	}
}

func TestCheckRejectsOverCap(t *testing.T) {
	store := newFakeBucketStore()
	l := NewLimiter(store)

	for i := 0; i < 5; i++ {
		if _, err := l.Check(context.Background(), ActionMessage, "agent-1", trust.TierUnverified); err != nil {
			t.Fatal(err)
		}
	}
	d, err := l.Check(context.Background(), ActionMessage, "agent-1", trust.TierUnverified)
	if err != ErrExceeded {
		t.Fatalf("expected ErrExceeded, got %v", err)
	}
	if d.Cap != 5 {
		t.Errorf("expected cap 5, got %d", d.Cap)
	}
	if d.RetryAfter <= 0 {
		t.Error("expected a positive retry-after window")
	}
}

func TestHourlyCapUnknownActionIsZero(t *testing.T) {
	if HourlyCap("bogus", trust.TierCitizen) != 0 {
		t.Error("expected unknown action to have a zero cap")
	}
}
