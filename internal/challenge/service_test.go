package challenge

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeStore struct {
	mu   sync.Mutex
	rows map[string]*PendingRegistration
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]*PendingRegistration)}
}

func (f *fakeStore) Create(_ context.Context, p *PendingRegistration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.rows[p.ID] = &cp
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*PendingRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeStore) DeleteExpired(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	var n int64
	for id, p := range f.rows {
		if now.After(p.ExpiresAt) {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

func alwaysOK(_, _, _ string) error { return nil }

func TestStartThenVerifySucceedsAndDeletesRow(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, zap.NewNop())

	p, err := svc.Start(context.Background(), StartInput{
		Kind:              KindRegister,
		AgentIDOrName:     "Alice",
		PublicKeyOrWallet: "fake-pem-bytes",
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.Challenge == "" {
		t.Fatal("expected a non-empty challenge")
	}

	verified, err := svc.Verify(context.Background(), p.ID, "sig", alwaysOK)
	if err != nil {
		t.Fatal(err)
	}
	if verified.Kind != KindRegister {
		t.Errorf("expected KindRegister, got %v", verified.Kind)
	}

	if _, err := store.GetByID(context.Background(), p.ID); err != ErrNotFound {
		t.Error("expected pending row to be deleted after successful verify")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, zap.NewNop())

	p, _ := svc.Start(context.Background(), StartInput{
		Kind:              KindRecover,
		AgentIDOrName:     "agent-123",
		PublicKeyOrWallet: "fake-pem-bytes",
	})
	// Force expiry.
	row, _ := store.GetByID(context.Background(), p.ID)
	row.ExpiresAt = time.Now().UTC().Add(-time.Second)
	store.rows[p.ID] = row

	if _, err := svc.Verify(context.Background(), p.ID, "sig", alwaysOK); err != ErrExpired {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if _, err := store.GetByID(context.Background(), p.ID); err != ErrNotFound {
		t.Error("expected expired row to be deleted")
	}
}

func TestVerifyWrapsVerificationFailure(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, zap.NewNop())

	p, _ := svc.Start(context.Background(), StartInput{
		Kind:              KindAddKey,
		AgentIDOrName:     "agent-123",
		PublicKeyOrWallet: "fake-pem-bytes",
	})

	failing := func(_, _, _ string) error { return ErrBadSig }
	if _, err := svc.Verify(context.Background(), p.ID, "sig", failing); err == nil {
		t.Fatal("expected an error")
	}
	// Row must remain for a retry within the TTL window.
	if _, err := store.GetByID(context.Background(), p.ID); err != nil {
		t.Error("expected pending row to survive a failed verification attempt")
	}
}

var ErrBadSig = &testErr{"bad signature"}

type testErr struct{ s string }

func (e *testErr) Error() string { return e.s }

func TestEncodeDecodeSubjectRoundTrip(t *testing.T) {
	cases := []struct {
		kind  Kind
		value string
	}{
		{KindRegister, "Alice"},
		{KindRecover, "agent-abc123"},
		{KindAddKey, "agent-abc123"},
		{KindBindWallet, "agent-abc123"},
	}
	for _, c := range cases {
		subj := EncodeSubject(c.kind, c.value)
		gotKind, gotValue := DecodeSubject(subj)
		if gotKind != c.kind || gotValue != c.value {
			t.Errorf("round trip mismatch for %v/%q: got %v/%q", c.kind, c.value, gotKind, gotValue)
		}
	}
}
