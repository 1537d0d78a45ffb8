package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	agentsmodel "github.com/moltcities/backend/internal/agents/model"
	agentsrepo "github.com/moltcities/backend/internal/agents/repository"
	agentshandler "github.com/moltcities/backend/internal/agents/handler"
	agentssvc "github.com/moltcities/backend/internal/agents/service"
	"github.com/moltcities/backend/internal/challenge"
	"github.com/moltcities/backend/internal/cryptoutil"
	"github.com/moltcities/backend/internal/escrow"
	"github.com/moltcities/backend/internal/jobs"
	"github.com/moltcities/backend/internal/jobs/handler"
	"github.com/moltcities/backend/internal/jobs/verify"
	"github.com/moltcities/backend/internal/ledger"
	"github.com/moltcities/backend/internal/ratelimit"
	"github.com/moltcities/backend/internal/sites"
	"github.com/moltcities/backend/internal/trust"
)

// stubAgentStore is a minimal single-agent fake of agents/service.AgentStore,
// just enough to authenticate one pre-seeded bearer token the same way
// internal/agents/handler's own test stubs it.
type stubAgentStore struct {
	agent *agentsmodel.Agent
}

func (s *stubAgentStore) CreateAgentAndSite(_ context.Context, _ *agentsmodel.Agent, _ *sites.Site) error {
	return nil
}
func (s *stubAgentStore) GetByID(_ context.Context, id string) (*agentsmodel.Agent, error) {
	if s.agent != nil && s.agent.ID == id {
		cp := *s.agent
		return &cp, nil
	}
	return nil, agentsrepo.ErrNotFound
}
func (s *stubAgentStore) GetByAPIKeyHash(_ context.Context, hash string) (*agentsmodel.Agent, error) {
	if s.agent != nil && s.agent.APIKeyHash == hash {
		cp := *s.agent
		return &cp, nil
	}
	return nil, agentsrepo.ErrNotFound
}
func (s *stubAgentStore) GetByDisplayNameCI(_ context.Context, _ string) (*agentsmodel.Agent, error) {
	return nil, agentsrepo.ErrNotFound
}
func (s *stubAgentStore) GetByPublicKeyPEM(_ context.Context, _ string) (*agentsmodel.Agent, error) {
	return nil, agentsrepo.ErrNotFound
}
func (s *stubAgentStore) RotateAPIKey(_ context.Context, _, _ string) error { return nil }
func (s *stubAgentStore) AddPublicKey(_ context.Context, _, _ string) error { return nil }
func (s *stubAgentStore) BindWallet(_ context.Context, _, _ string, _ agentsmodel.WalletChain) error {
	return nil
}
func (s *stubAgentStore) CreditCurrency(_ context.Context, _ string, _ int64) error { return nil }
func (s *stubAgentStore) CountAgents(_ context.Context) (int64, error)             { return 0, nil }
func (s *stubAgentStore) UpdateProfile(_ context.Context, _, _ string, _ []string, _, _ string) error {
	return nil
}
func (s *stubAgentStore) CountReferralsSince(_ context.Context, _ string, _ time.Time, _ bool) (int, error) {
	return 0, nil
}

type stubSiteStore struct{}

func (stubSiteStore) SlugAvailable(_ context.Context, _ string) (bool, error) { return true, nil }
func (stubSiteStore) GetByAgentID(_ context.Context, _ string) (*sites.Site, error) {
	return nil, agentsrepo.ErrNotFound
}

type noopChallengeStore struct{}

func (noopChallengeStore) Create(_ context.Context, _ *challenge.PendingRegistration) error { return nil }
func (noopChallengeStore) GetByID(_ context.Context, _ string) (*challenge.PendingRegistration, error) {
	return nil, challenge.ErrNotFound
}
func (noopChallengeStore) Delete(_ context.Context, _ string) error          { return nil }
func (noopChallengeStore) DeleteExpired(_ context.Context) (int64, error) { return 0, nil }

type noopLedger struct{}

func (noopLedger) AppendSystemCredit(_ context.Context, _ string, _ int64, _ string) error { return nil }

type noopMailbox struct{}

func (noopMailbox) SendSystemMessage(_ context.Context, _, _, _ string) error { return nil }
func (noopMailbox) ClaimPendingMessagesForSlug(_ context.Context, _, _ string) (int, error) {
	return 0, nil
}

type noopEscrowReleaser struct{}

func (noopEscrowReleaser) ReleaseJobsAwaitingWallet(_ context.Context, _, _ string) (int, error) {
	return 0, nil
}

// fakeAgentLookup satisfies jobs.AgentLookup for the handler test, returning
// a fixed tier/wallet regardless of agent ID.
type fakeAgentLookup struct {
	tier   trust.Tier
	wallet string
	bound  bool
}

func (f fakeAgentLookup) TrustTier(_ context.Context, _ string) (trust.Tier, error) {
	return f.tier, nil
}
func (f fakeAgentLookup) WalletAddress(_ context.Context, _ string) (string, bool, error) {
	return f.wallet, f.bound, nil
}

type fakeEscrowClient struct{}

func (fakeEscrowClient) PlatformWallet() string { return "platform-wallet" }
func (fakeEscrowClient) FundFromPlatform(_ context.Context, _ string, _ int64) (string, error) {
	return "sig", nil
}
func (fakeEscrowClient) BuildCreateEscrowTx(_ context.Context, _, _ string, _ int64) (*escrow.UnsignedTx, error) {
	return &escrow.UnsignedTx{}, nil
}
func (fakeEscrowClient) GetEscrowInfo(_ context.Context, _, _ string) (*escrow.EscrowInfo, error) {
	return &escrow.EscrowInfo{}, nil
}
func (fakeEscrowClient) ReleaseToWorker(_ context.Context, _, _ string) (string, error) {
	return "", nil
}
func (fakeEscrowClient) RefundToPoster(_ context.Context, _, _ string) (string, error) {
	return "", nil
}
func (fakeEscrowClient) AutoRelease(_ context.Context, _ string) (string, error) { return "", nil }

type fakeLedger struct{}

func (fakeLedger) Append(_ context.Context, _ string, _ ledger.Kind, _ int64, _ string) (*ledger.Entry, error) {
	return &ledger.Entry{}, nil
}

type fakeNotifier struct{}

func (fakeNotifier) Notify(_, _ string, _ interface{}) {}

type fakeLimiter struct{}

func (fakeLimiter) Check(_ context.Context, _ ratelimit.Action, _ string, _ trust.Tier) (ratelimit.Decision, error) {
	return ratelimit.Decision{Allowed: true}, nil
}

const bearerToken = "mc_test_token_for_handler_tests"

// newTestRouter wires a real identity auth handler (so RequireToken exercises
// the genuine bearer-token path) over a single-agent stub store, and a job
// handler whose Service has a nil repository — safe as long as tests only
// exercise paths that fail validation before any repository call, the same
// constraint internal/jobs's own service_test.go operates under.
func newTestRouter(tier trust.Tier, walletBound bool) *gin.Engine {
	gin.SetMode(gin.TestMode)

	agent := &agentsmodel.Agent{
		ID:           "agent-1",
		DisplayName:  "Test Agent",
		APIKeyHash:   cryptoutil.HashAPIKey(bearerToken),
		PublicKeyPEM: "stub-key",
	}
	agentStore := &stubAgentStore{agent: agent}
	chSvc := challenge.NewService(noopChallengeStore{}, zap.NewNop())
	agentSvc := agentssvc.New(agentStore, stubSiteStore{}, chSvc, noopLedger{}, noopMailbox{}, noopEscrowReleaser{}, nil, zap.NewNop())
	auth := agentshandler.New(agentSvc, zap.NewNop())

	jobSvc := jobs.NewService(nil, fakeEscrowClient{}, fakeLedger{}, fakeNotifier{}, fakeLimiter{},
		fakeAgentLookup{tier: tier, wallet: "wallet-addr", bound: walletBound}, verify.Dependencies{}, zap.NewNop())
	h := handler.New(jobSvc, auth, zap.NewNop())

	r := gin.New()
	h.Register(r.Group("/api"))
	return r
}

func doRequest(router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateRequiresBearerToken(t *testing.T) {
	router := newTestRouter(trust.TierResident, true)
	w := doRequest(router, http.MethodPost, "/api/jobs", "", validCreateBody())
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateRejectsShortTitle(t *testing.T) {
	router := newTestRouter(trust.TierResident, true)
	body := validCreateBody()
	body["title"] = "Hi"
	w := doRequest(router, http.MethodPost, "/api/jobs", bearerToken, body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateRejectsBelowResidentTier(t *testing.T) {
	router := newTestRouter(trust.TierVerified, true)
	w := doRequest(router, http.MethodPost, "/api/jobs", bearerToken, validCreateBody())
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	router := newTestRouter(trust.TierResident, true)
	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/jobs/job-1/attempt"},
		{http.MethodPost, "/api/jobs/job-1/submit"},
		{http.MethodPost, "/api/jobs/job-1/approve"},
		{http.MethodPost, "/api/jobs/job-1/cancel"},
		{http.MethodPost, "/api/jobs/job-1/dispute"},
	}
	for _, rt := range routes {
		w := doRequest(router, rt.method, rt.path, "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", rt.method, rt.path, w.Code)
		}
	}
}

func validCreateBody() map[string]interface{} {
	return map[string]interface{}{
		"title":                 "Write a guestbook entry",
		"description":           "Leave a thoughtful guestbook entry on the target site, at least fifty characters long.",
		"reward_lamports":       10_000_000,
		"verification_template": "guestbook_entry",
		"verification_params":   map[string]interface{}{"target_site_slug": "acme", "min_length": 50},
	}
}
