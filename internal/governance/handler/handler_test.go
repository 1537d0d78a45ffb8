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
	"github.com/moltcities/backend/internal/governance"
	"github.com/moltcities/backend/internal/governance/handler"
	"github.com/moltcities/backend/internal/jobs"
	"github.com/moltcities/backend/internal/sites"
	"github.com/moltcities/backend/internal/trust"
)

type stubAgentStore struct{ agent *agentsmodel.Agent }

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
func (noopChallengeStore) Delete(_ context.Context, _ string) error       { return nil }
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

type fakeDisputeStore struct {
	dispute *jobs.JobDispute
	err     error
}

func (f fakeDisputeStore) GetDisputeByID(_ context.Context, _ string) (*jobs.JobDispute, error) {
	return f.dispute, f.err
}
func (f fakeDisputeStore) RecordDisputeVote(_ context.Context, _ string, _ bool, _ float64) error {
	return nil
}

type fakeTierLookup struct{ tier trust.Tier }

func (f fakeTierLookup) TrustTier(_ context.Context, _ string) (trust.Tier, error) {
	return f.tier, nil
}

type fakeStatsLookup struct{}

func (fakeStatsLookup) VoterStats(_ context.Context, _ string) (governance.VoterStats, error) {
	return governance.VoterStats{}, nil
}

const bearerToken = "mc_test_token_for_governance_handler"

// newTestRouter mirrors internal/jobs/handler's test harness: a real
// identity auth handler over a single-agent stub store, and a governance
// Service whose repository is nil — safe as long as tests only exercise
// paths that fail validation, or fail via the dispute-store/tier fakes,
// before any repository call.
func newTestRouter(dispute fakeDisputeStore, tier fakeTierLookup) *gin.Engine {
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

	govSvc := governance.NewService(nil, dispute, tier, fakeStatsLookup{}, zap.NewNop())
	h := handler.New(govSvc, auth, zap.NewNop())

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

func TestCreateProposalRequiresBearerToken(t *testing.T) {
	router := newTestRouter(fakeDisputeStore{}, fakeTierLookup{})
	w := doRequest(router, http.MethodPost, "/api/governance/proposals", "", governance.CreateProposalRequest{
		Title: "A reasonable proposal title",
		Body:  "this body is plenty long enough to pass validation",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateProposalRejectsShortTitle(t *testing.T) {
	router := newTestRouter(fakeDisputeStore{}, fakeTierLookup{})
	w := doRequest(router, http.MethodPost, "/api/governance/proposals", bearerToken, governance.CreateProposalRequest{
		Title: "hi",
		Body:  "this body is plenty long enough to pass validation",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateReportRejectsSelfReport(t *testing.T) {
	router := newTestRouter(fakeDisputeStore{}, fakeTierLookup{})
	w := doRequest(router, http.MethodPost, "/api/governance/reports", bearerToken, governance.CreateReportRequest{
		ReportedID: "agent-1",
		Reason:     "this reason is plenty long enough to pass validation",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestVoteDisputeRequiresStake(t *testing.T) {
	router := newTestRouter(fakeDisputeStore{}, fakeTierLookup{tier: trust.TierFounding})
	w := doRequest(router, http.MethodPost, "/api/governance/disputes/dispute-1/vote", bearerToken, governance.VoteDisputeRequest{
		ForWorker: true,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestVoteDisputeRejectsBelowTierGate(t *testing.T) {
	dispute := &jobs.JobDispute{
		ID:           "dispute-1",
		Status:       "voting",
		VotingEndsAt: time.Now().UTC().Add(24 * time.Hour),
	}
	router := newTestRouter(fakeDisputeStore{dispute: dispute}, fakeTierLookup{tier: trust.TierResident})
	w := doRequest(router, http.MethodPost, "/api/governance/disputes/dispute-1/vote", bearerToken, governance.VoteDisputeRequest{
		ForWorker:  true,
		StakeTxSig: "5sigbase58",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestVoteDisputeRejectsClosedVotingWindow(t *testing.T) {
	dispute := &jobs.JobDispute{
		ID:           "dispute-1",
		Status:       "voting",
		VotingEndsAt: time.Now().UTC().Add(-time.Hour),
	}
	router := newTestRouter(fakeDisputeStore{dispute: dispute}, fakeTierLookup{tier: trust.TierFounding})
	w := doRequest(router, http.MethodPost, "/api/governance/disputes/dispute-1/vote", bearerToken, governance.VoteDisputeRequest{
		ForWorker:  true,
		StakeTxSig: "5sigbase58",
	})
	if w.Code != http.StatusGone {
		t.Fatalf("expected 410, got %d: %s", w.Code, w.Body.String())
	}
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	router := newTestRouter(fakeDisputeStore{}, fakeTierLookup{})
	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/governance/proposals/p-1/vote"},
		{http.MethodPost, "/api/governance/disputes/d-1/vote"},
		{http.MethodPost, "/api/governance/reports"},
		{http.MethodPost, "/api/governance/reports/r-1/vote"},
	}
	for _, rt := range routes {
		w := doRequest(router, rt.method, rt.path, "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", rt.method, rt.path, w.Code)
		}
	}
}
