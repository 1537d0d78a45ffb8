package service

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/moltcities/backend/internal/agents/model"
	"github.com/moltcities/backend/internal/agents/repository"
	"github.com/moltcities/backend/internal/challenge"
	"github.com/moltcities/backend/internal/sites"
	"github.com/moltcities/backend/internal/store"
	"go.uber.org/zap"
)

// ---- fakes ----

type fakeAgentStore struct {
	mu        sync.Mutex
	byID      map[string]*model.Agent
	byName    map[string]*model.Agent
	byPubKey  map[string]*model.Agent
	byAPIHash map[string]*model.Agent
}

func newFakeAgentStore() *fakeAgentStore {
	return &fakeAgentStore{
		byID:      make(map[string]*model.Agent),
		byName:    make(map[string]*model.Agent),
		byPubKey:  make(map[string]*model.Agent),
		byAPIHash: make(map[string]*model.Agent),
	}
}

func (f *fakeAgentStore) CreateAgentAndSite(_ context.Context, agent *model.Agent, _ *sites.Site) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byName[lower(agent.DisplayName)]; ok {
		return store.ErrConflict
	}
	cp := *agent
	f.byID[agent.ID] = &cp
	f.byName[lower(agent.DisplayName)] = &cp
	f.byPubKey[agent.PublicKeyPEM] = &cp
	f.byAPIHash[agent.APIKeyHash] = &cp
	return nil
}

func (f *fakeAgentStore) GetByID(_ context.Context, id string) (*model.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAgentStore) GetByAPIKeyHash(_ context.Context, hash string) (*model.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byAPIHash[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAgentStore) GetByDisplayNameCI(_ context.Context, name string) (*model.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byName[lower(name)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAgentStore) GetByPublicKeyPEM(_ context.Context, pemStr string) (*model.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byPubKey[pemStr]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAgentStore) RotateAPIKey(_ context.Context, agentID, newHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[agentID]
	if !ok {
		return repository.ErrNotFound
	}
	delete(f.byAPIHash, a.APIKeyHash)
	a.APIKeyHash = newHash
	f.byAPIHash[newHash] = a
	return nil
}

func (f *fakeAgentStore) AddPublicKey(_ context.Context, agentID, pemStr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[agentID]
	if !ok {
		return repository.ErrNotFound
	}
	a.PublicKeyPEM = pemStr
	f.byPubKey[pemStr] = a
	return nil
}

func (f *fakeAgentStore) BindWallet(_ context.Context, agentID, walletAddress string, chain model.WalletChain) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[agentID]
	if !ok {
		return repository.ErrNotFound
	}
	a.WalletAddress = walletAddress
	a.WalletChain = chain
	return nil
}

func (f *fakeAgentStore) CreditCurrency(_ context.Context, agentID string, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[agentID]
	if !ok {
		return repository.ErrNotFound
	}
	a.Currency += delta
	return nil
}

func (f *fakeAgentStore) CountAgents(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.byID)), nil
}

func (f *fakeAgentStore) UpdateProfile(_ context.Context, agentID, soul string, skills []string, avatar, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[agentID]
	if !ok {
		return repository.ErrNotFound
	}
	a.Soul, a.Skills, a.Avatar, a.Status = soul, skills, avatar, status
	return nil
}

func (f *fakeAgentStore) CountReferralsSince(_ context.Context, _ string, _ time.Time, _ bool) (int, error) {
	return 0, nil
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

type fakeSiteStore struct {
	taken map[string]bool
	sites map[string]*sites.Site
}

func (f *fakeSiteStore) SlugAvailable(_ context.Context, slug string) (bool, error) {
	if sites.ValidateSlug(slug) != nil {
		return false, nil
	}
	return !f.taken[slug], nil
}

func (f *fakeSiteStore) GetByAgentID(_ context.Context, agentID string) (*sites.Site, error) {
	if site, ok := f.sites[agentID]; ok {
		return site, nil
	}
	return nil, repository.ErrNotFound
}

type fakeChallengeStore struct {
	mu   sync.Mutex
	rows map[string]*challenge.PendingRegistration
}

func newFakeChallengeStore() *fakeChallengeStore {
	return &fakeChallengeStore{rows: make(map[string]*challenge.PendingRegistration)}
}

func (f *fakeChallengeStore) Create(_ context.Context, p *challenge.PendingRegistration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.rows[p.ID] = &cp
	return nil
}

func (f *fakeChallengeStore) GetByID(_ context.Context, id string) (*challenge.PendingRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return nil, challenge.ErrNotFound
	}
	cp := *p
	cp.Kind, cp.AgentID = challenge.DecodeSubject(cp.Subject)
	return &cp, nil
}

func (f *fakeChallengeStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeChallengeStore) DeleteExpired(_ context.Context) (int64, error) { return 0, nil }

type fakeLedger struct{ mu sync.Mutex; entries []string }

func (f *fakeLedger) AppendSystemCredit(_ context.Context, toAgentID string, amount int64, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, toAgentID)
	return nil
}

type fakeMailbox struct{ sent []string }

func (f *fakeMailbox) SendSystemMessage(_ context.Context, toAgentID, subject, body string) error {
	f.sent = append(f.sent, toAgentID)
	return nil
}
func (f *fakeMailbox) ClaimPendingMessagesForSlug(_ context.Context, slug, claimedByAgentID string) (int, error) {
	return 0, nil
}

type fakeEscrow struct{}

func (fakeEscrow) ReleaseJobsAwaitingWallet(_ context.Context, agentID, walletAddress string) (int, error) {
	return 0, nil
}

// ---- helpers ----

func genRSAPEMForTest(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	return key, string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func newTestService() (*Service, *fakeAgentStore) {
	agentStore := newFakeAgentStore()
	siteStore := &fakeSiteStore{taken: map[string]bool{}}
	chSvc := challenge.NewService(newFakeChallengeStore(), zap.NewNop())
	svc := New(agentStore, siteStore, chSvc, &fakeLedger{}, &fakeMailbox{}, fakeEscrow{}, nil, zap.NewNop())
	return svc, agentStore
}

const validSoul = "A research assistant focused on climate science and long-term ecological modeling, with a passion for clear explanations and rigorous analysis of messy real-world data."

func TestRegisterStartThenVerifySucceeds(t *testing.T) {
	svc, _ := newTestService()
	key, pubPEM := genRSAPEMForTest(t)

	req := model.RegisterRequest{
		Name:         "Alice",
		Soul:         validSoul,
		Skills:       []string{"research", "coding", "writing"},
		PublicKeyPEM: pubPEM,
		Site: model.SiteInput{
			Slug:         "alice",
			Title:        "Alice's Lab",
			Neighborhood: sites.NeighborhoodResearch,
		},
	}

	p1, err := svc.RegisterStart(context.Background(), req, "")
	if err != nil {
		t.Fatal(err)
	}
	if p1.Challenge == "" {
		t.Fatal("expected a challenge")
	}

	digest := sha256.Sum256([]byte(p1.Challenge))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		t.Fatal(err)
	}
	sigB64 := base64.StdEncoding.EncodeToString(sig)

	result, err := svc.RegisterVerify(context.Background(), p1.PendingID, sigB64)
	if err != nil {
		t.Fatal(err)
	}
	if result.APIKey[:3] != "mc_" {
		t.Errorf("expected api key to start with mc_, got %q", result.APIKey)
	}
	if result.AgentID == "" {
		t.Error("expected a non-empty agent id")
	}
}

func TestRegisterStartRejectsShortSoul(t *testing.T) {
	svc, _ := newTestService()
	_, pubPEM := genRSAPEMForTest(t)

	req := model.RegisterRequest{
		Name:         "Bob",
		Soul:         "too short",
		Skills:       []string{"a", "bb"},
		PublicKeyPEM: pubPEM,
		Site:         model.SiteInput{Slug: "bob", Title: "Bob", Neighborhood: sites.NeighborhoodCivic},
	}
	if _, err := svc.RegisterStart(context.Background(), req, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAuthenticateRejectsMissingBearerPrefix(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Authenticate(context.Background(), "not-a-bearer-token"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

