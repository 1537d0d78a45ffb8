package handler_test

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/moltcities/backend/internal/agents/handler"
	"github.com/moltcities/backend/internal/agents/model"
	"github.com/moltcities/backend/internal/agents/repository"
	"github.com/moltcities/backend/internal/agents/service"
	"github.com/moltcities/backend/internal/challenge"
	"github.com/moltcities/backend/internal/sites"
	"go.uber.org/zap"
)

type stubAgentStore struct {
	mu   sync.Mutex
	byID map[string]*model.Agent
	byPK map[string]*model.Agent
}

func newStubAgentStore() *stubAgentStore {
	return &stubAgentStore{byID: map[string]*model.Agent{}, byPK: map[string]*model.Agent{}}
}

func (s *stubAgentStore) CreateAgentAndSite(_ context.Context, a *model.Agent, _ *sites.Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.byID[a.ID] = &cp
	s.byPK[a.PublicKeyPEM] = &cp
	return nil
}
func (s *stubAgentStore) GetByID(_ context.Context, id string) (*model.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}
func (s *stubAgentStore) GetByAPIKeyHash(_ context.Context, hash string) (*model.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.byID {
		if a.APIKeyHash == hash {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}
func (s *stubAgentStore) GetByDisplayNameCI(_ context.Context, name string) (*model.Agent, error) {
	return nil, repository.ErrNotFound
}
func (s *stubAgentStore) GetByPublicKeyPEM(_ context.Context, pemStr string) (*model.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byPK[pemStr]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}
func (s *stubAgentStore) RotateAPIKey(_ context.Context, agentID, newHash string) error { return nil }
func (s *stubAgentStore) AddPublicKey(_ context.Context, agentID, pem string) error     { return nil }
func (s *stubAgentStore) BindWallet(_ context.Context, agentID, wallet string, chain model.WalletChain) error {
	return nil
}
func (s *stubAgentStore) CreditCurrency(_ context.Context, agentID string, delta int64) error {
	return nil
}
func (s *stubAgentStore) CountAgents(_ context.Context) (int64, error) { return 0, nil }
func (s *stubAgentStore) UpdateProfile(_ context.Context, agentID, soul string, skills []string, avatar, status string) error {
	return nil
}
func (s *stubAgentStore) CountReferralsSince(_ context.Context, _ string, _ time.Time, _ bool) (int, error) {
	return 0, nil
}

type stubSiteStore struct{}

func (stubSiteStore) SlugAvailable(_ context.Context, slug string) (bool, error) {
	return sites.ValidateSlug(slug) == nil, nil
}
func (stubSiteStore) GetByAgentID(_ context.Context, _ string) (*sites.Site, error) {
	return nil, repository.ErrNotFound
}

type stubChallengeStore struct {
	mu   sync.Mutex
	rows map[string]*challenge.PendingRegistration
}

func newStubChallengeStore() *stubChallengeStore {
	return &stubChallengeStore{rows: map[string]*challenge.PendingRegistration{}}
}
func (s *stubChallengeStore) Create(_ context.Context, p *challenge.PendingRegistration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.rows[p.ID] = &cp
	return nil
}
func (s *stubChallengeStore) GetByID(_ context.Context, id string) (*challenge.PendingRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[id]
	if !ok {
		return nil, challenge.ErrNotFound
	}
	cp := *p
	cp.Kind, cp.AgentID = challenge.DecodeSubject(cp.Subject)
	return &cp, nil
}
func (s *stubChallengeStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}
func (s *stubChallengeStore) DeleteExpired(_ context.Context) (int64, error) { return 0, nil }

type stubLedger struct{}

func (stubLedger) AppendSystemCredit(_ context.Context, toAgentID string, amount int64, note string) error {
	return nil
}

type stubMailbox struct{}

func (stubMailbox) SendSystemMessage(_ context.Context, toAgentID, subject, body string) error {
	return nil
}
func (stubMailbox) ClaimPendingMessagesForSlug(_ context.Context, slug, claimedByAgentID string) (int, error) {
	return 0, nil
}

type stubEscrow struct{}

func (stubEscrow) ReleaseJobsAwaitingWallet(_ context.Context, agentID, wallet string) (int, error) {
	return 0, nil
}

func newTestRouter() (*gin.Engine, *stubAgentStore) {
	gin.SetMode(gin.TestMode)
	agentStore := newStubAgentStore()
	chSvc := challenge.NewService(newStubChallengeStore(), zap.NewNop())
	svc := service.New(agentStore, stubSiteStore{}, chSvc, stubLedger{}, stubMailbox{}, stubEscrow{}, nil, zap.NewNop())
	h := handler.New(svc, zap.NewNop())

	r := gin.New()
	h.Register(r.Group("/api"))
	return r, agentStore
}

func genRSAPEM(t *testing.T) (*rsa.PrivateKey, string) {
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

const validSoul = "A research assistant focused on climate science and long-term ecological modeling, with a passion for clear explanations and rigorous analysis of messy real-world data."

func TestRegisterFlowEndToEnd(t *testing.T) {
	router, _ := newTestRouter()
	key, pubPEM := genRSAPEM(t)

	reqBody := model.RegisterRequest{
		Name:         "Carol",
		Soul:         validSoul,
		Skills:       []string{"research", "coding"},
		PublicKeyPEM: pubPEM,
		Site:         model.SiteInput{Slug: "carol", Title: "Carol's Lab", Neighborhood: sites.NeighborhoodResearch},
	}
	body, _ := json.Marshal(reqBody)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var phase1 model.RegisterPhase1Response
	if err := json.Unmarshal(w.Body.Bytes(), &phase1); err != nil {
		t.Fatal(err)
	}

	digest := sha256.Sum256([]byte(phase1.Challenge))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		t.Fatal(err)
	}
	verifyBody, _ := json.Marshal(model.RegisterPhase2Request{
		PendingID:       phase1.PendingID,
		SignatureBase64: base64.StdEncoding.EncodeToString(sig),
	})

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/api/register/verify", bytes.NewReader(verifyBody))
	req2.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w2, req2)

	if w2.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w2.Code, w2.Body.String())
	}

	var phase2 model.RegisterPhase2Response
	if err := json.Unmarshal(w2.Body.Bytes(), &phase2); err != nil {
		t.Fatal(err)
	}
	if phase2.APIKey == "" || phase2.AgentID == "" {
		t.Fatalf("expected populated api key and agent id, got %+v", phase2)
	}
}

func TestMeRequiresBearerToken(t *testing.T) {
	router, _ := newTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestCheckSlugReportsAvailability(t *testing.T) {
	router, _ := newTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/check?slug=fresh-slug", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Available bool `json:"available"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Available {
		t.Fatal("expected fresh-slug to be available")
	}
}
