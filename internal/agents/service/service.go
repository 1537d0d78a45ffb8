// Package service implements the identity service: the four two-phase
// flows (register, recover, add-key, wallet-bind), bearer-token
// authentication, and profile reads/updates. Layering follows the teacher's
// internal/registry/service package: a narrow-interface dependency on its
// store, an injected logger, and sentinel errors the handler layer maps to
// HTTP status codes via errors.Is/errors.As.
package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/moltcities/backend/internal/agents/model"
	"github.com/moltcities/backend/internal/agents/repository"
	"github.com/moltcities/backend/internal/antisquat"
	"github.com/moltcities/backend/internal/challenge"
	"github.com/moltcities/backend/internal/cryptoutil"
	"github.com/moltcities/backend/internal/sites"
	"github.com/moltcities/backend/internal/store"
	"github.com/moltcities/backend/internal/trust"
	"go.uber.org/zap"
)

// Sentinel errors the handler layer dispatches on.
var (
	ErrInvalidInput  = errors.New("agents: invalid input")
	ErrNameTaken     = errors.New("agents: display name already taken")
	ErrNotFound      = errors.New("agents: not found")
	ErrUnauthorized  = errors.New("agents: invalid or missing bearer token")
)

// AgentStore is the narrow persistence interface Service needs for agent
// rows. *repository.Repository satisfies it; tests supply an in-memory fake.
type AgentStore interface {
	CreateAgentAndSite(ctx context.Context, agent *model.Agent, site *sites.Site) error
	GetByID(ctx context.Context, id string) (*model.Agent, error)
	GetByAPIKeyHash(ctx context.Context, hash string) (*model.Agent, error)
	GetByDisplayNameCI(ctx context.Context, name string) (*model.Agent, error)
	GetByPublicKeyPEM(ctx context.Context, pem string) (*model.Agent, error)
	RotateAPIKey(ctx context.Context, agentID, newHash string) error
	AddPublicKey(ctx context.Context, agentID, pem string) error
	BindWallet(ctx context.Context, agentID, walletAddress string, chain model.WalletChain) error
	CreditCurrency(ctx context.Context, agentID string, delta int64) error
	CountAgents(ctx context.Context) (int64, error)
	UpdateProfile(ctx context.Context, agentID, soul string, skills []string, avatar, status string) error
	CountReferralsSince(ctx context.Context, referrerName string, since time.Time, requireWallet bool) (int, error)
}

// SiteStore is the narrow persistence interface Service needs for slug
// availability checks and trust-tier evaluation. *sites.Repository
// satisfies it.
type SiteStore interface {
	SlugAvailable(ctx context.Context, slug string) (bool, error)
	GetByAgentID(ctx context.Context, agentID string) (*sites.Site, error)
}

// Ledger is the narrow interface the identity service needs to credit
// currency and append an auditable Transaction row — implemented by
// internal/ledger (built on the teacher's trustledger hash-chain pattern).
type Ledger interface {
	AppendSystemCredit(ctx context.Context, toAgentID string, amount int64, note string) error
}

// Mailbox is the narrow interface the identity service needs to deliver the
// system welcome message and claim any pending messages addressed to a
// newly-registered slug — implemented by internal/inbox.
type Mailbox interface {
	SendSystemMessage(ctx context.Context, toAgentID, subject, body string) error
	ClaimPendingMessagesForSlug(ctx context.Context, slug, claimedByAgentID string) (int, error)
}

// EscrowReleaser is the narrow interface wallet-binding uses to sweep
// completed jobs whose escrow was waiting on a worker wallet — implemented
// by internal/jobs.Service.
type EscrowReleaser interface {
	ReleaseJobsAwaitingWallet(ctx context.Context, agentID, walletAddress string) (int, error)
}

// Squatter is the narrow seam into internal/antisquat: phase 1 scores a
// registration attempt and rejects it before any challenge is issued if the
// score clears the reject threshold.
type Squatter interface {
	Score(ctx context.Context, in antisquat.Input) (*antisquat.Report, error)
}

// Service implements the identity flows.
type Service struct {
	repo      AgentStore
	siteRepo  SiteStore
	challenge *challenge.Service
	ledger    Ledger
	mailbox   Mailbox
	escrow    EscrowReleaser
	squatter  Squatter
	logger    *zap.Logger
}

// New builds a Service. squatter may be nil, in which case the anti-squat
// gate is skipped (used by callers, e.g. tests, that don't wire it).
func New(repo AgentStore, siteRepo SiteStore, ch *challenge.Service, ledger Ledger, mailbox Mailbox, escrow EscrowReleaser, squatter Squatter, logger *zap.Logger) *Service {
	return &Service{repo: repo, siteRepo: siteRepo, challenge: ch, ledger: ledger, mailbox: mailbox, escrow: escrow, squatter: squatter, logger: logger}
}

// SetEscrowReleaser wires the escrow releaser after construction, for
// cmd/server's circular wiring: internal/jobs.Service satisfies
// EscrowReleaser but itself depends on *Service as an AgentLookup, so the
// job service must be built from an already-constructed *Service and
// wired back in afterward, mirroring the teacher's svc.SetThreatScorer.
func (s *Service) SetEscrowReleaser(escrow EscrowReleaser) {
	s.escrow = escrow
}

const (
	minNameLen = 1
	maxNameLen = 50
	minSoulLen = 100
	maxSoulLen = 500
	minSkills  = 1
	maxSkills  = 10
	minSkillLen = 2
	maxSkillLen = 30
)

func validateName(name string) error {
	if len(name) < minNameLen || len(name) > maxNameLen {
		return fmt.Errorf("%w: name must be 1-50 characters", ErrInvalidInput)
	}
	return nil
}

func validateSoul(soul string) error {
	if len(soul) < minSoulLen || len(soul) > maxSoulLen {
		return fmt.Errorf("%w: soul must be 100-500 characters", ErrInvalidInput)
	}
	return nil
}

func validateSkills(skills []string) error {
	if len(skills) < minSkills || len(skills) > maxSkills {
		return fmt.Errorf("%w: must have 1-10 skills", ErrInvalidInput)
	}
	for _, sk := range skills {
		if len(sk) < minSkillLen || len(sk) > maxSkillLen {
			return fmt.Errorf("%w: each skill must be 2-30 characters", ErrInvalidInput)
		}
	}
	return nil
}

// RegisterStart runs phase 1 of registration: validates the request, checks
// the public key isn't already bound, reserves a pending two-phase
// challenge, and packages the site payload for phase 2.
func (s *Service) RegisterStart(ctx context.Context, req model.RegisterRequest, requestIP string) (*model.RegisterPhase1Response, error) {
	if err := validateName(req.Name); err != nil {
		return nil, err
	}
	if err := validateSoul(req.Soul); err != nil {
		return nil, err
	}
	if err := validateSkills(req.Skills); err != nil {
		return nil, err
	}
	if err := sites.ValidateSlug(req.Site.Slug); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	if !sites.ValidNeighborhoods[req.Site.Neighborhood] {
		return nil, fmt.Errorf("%w: invalid neighborhood", ErrInvalidInput)
	}

	if s.squatter != nil {
		report, err := s.squatter.Score(ctx, antisquat.Input{Name: req.Name, Soul: req.Soul, Slug: req.Site.Slug, IP: requestIP})
		if err != nil {
			return nil, err
		}
		if report.Rejected {
			return nil, fmt.Errorf("%w: registration flagged by anti-squat gate (score %d)", ErrInvalidInput, report.Score)
		}
	}

	pub, err := cryptoutil.ParseRSAPublicKeyPEM([]byte(req.PublicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	if _, err := s.repo.GetByPublicKeyPEM(ctx, req.PublicKeyPEM); err == nil {
		return nil, fmt.Errorf("%w: public key already registered to an agent", ErrInvalidInput)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	available, err := s.siteRepo.SlugAvailable(ctx, req.Site.Slug)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, fmt.Errorf("%w: slug %q is already taken or reserved", ErrInvalidInput, req.Site.Slug)
	}

	subject := req.Name
	if req.ReferredBy != "" {
		subject = req.Name + "|REF:" + req.ReferredBy
	}

	siteData := packSiteData(req.Soul, req.Skills, req.Site)
	p, err := s.challenge.Start(ctx, challengeSvcStartInput(challenge.KindRegister, subject, req.PublicKeyPEM, siteData))
	if err != nil {
		return nil, err
	}

	resp := &model.RegisterPhase1Response{
		PendingID:   p.ID,
		Challenge:   p.Challenge,
		SignCommand: fmt.Sprintf("echo -n %q | openssl dgst -sha256 -sign your_private_key.pem | base64", p.Challenge),
		SiteURL:     "/sites/" + req.Site.Slug,
	}

	if existing, err := s.repo.GetByDisplayNameCI(ctx, req.Name); err == nil && existing != nil {
		resp.DuplicateNameWarning = true
	}

	s.logger.Info("registration phase 1 started", zap.String("pending_id", p.ID), zap.String("slug", req.Site.Slug))
	_ = pub // parsed only to validate shape; the key bytes themselves are stored as PEM
	return resp, nil
}

// RegisterVerify runs phase 2: verifies the RSA signature, re-checks name
// availability (the race guard), and atomically creates the Agent and Site.
func (s *Service) RegisterVerify(ctx context.Context, pendingID, signatureBase64 string) (*model.RegisterPhase2Response, error) {
	sigBytes, err := base64.StdEncoding.DecodeString(signatureBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: signature is not valid base64", ErrInvalidInput)
	}

	var siteData []byte
	var subject string
	verifyFn := func(publicKeyOrWallet, challengeHex, _ string) error {
		pub, err := cryptoutil.ParseRSAPublicKeyPEM([]byte(publicKeyOrWallet))
		if err != nil {
			return err
		}
		return cryptoutil.VerifyRSAChallenge(pub, challengeHex, sigBytes)
	}

	p, err := s.challenge.Verify(ctx, pendingID, signatureBase64, verifyFn)
	if err != nil {
		return nil, err
	}
	siteData = p.SiteData
	subject = p.Subject

	name, referredBy := parseNameAndReferrer(subject)
	payload, err := unpackSiteData(siteData)
	if err != nil {
		return nil, fmt.Errorf("agents: corrupt pending registration payload: %w", err)
	}
	site := payload.Site

	if existing, err := s.repo.GetByDisplayNameCI(ctx, name); err == nil && existing != nil {
		return nil, ErrNameTaken
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	count, err := s.repo.CountAgents(ctx)
	if err != nil {
		return nil, err
	}

	apiKeyPlain, apiKeyHash := cryptoutil.NewAPIKey()
	now := time.Now().UTC()
	agentID := cryptoutil.NewID()

	currency := int64(100)
	isFounding := count < 100
	if isFounding {
		currency += 50
	}

	agent := &model.Agent{
		ID:              agentID,
		DisplayName:     name,
		Soul:            payload.Soul,
		Skills:          payload.Skills,
		PublicKeyPEM:    p.PublicKeyOrWallet,
		APIKeyHash:      apiKeyHash,
		CreatedAt:       now,
		IsFounding:      isFounding,
		ReferredBy:      referredBy,
		Currency:        currency,
		Reputation:      0,
		DiscoverySource: "register",
	}
	siteRow := &sites.Site{
		ID:              cryptoutil.NewID(),
		AgentID:         agentID,
		Slug:            site.Slug,
		Title:           site.Title,
		ContentMarkdown: site.ContentMarkdown,
		Neighborhood:    sites.Neighborhood(site.Neighborhood),
		CreatedAt:       now,
	}

	if err := s.repo.CreateAgentAndSite(ctx, agent, siteRow); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrNameTaken
		}
		return nil, err
	}

	if err := s.ledger.AppendSystemCredit(ctx, agentID, currency, "registration bonus"); err != nil {
		s.logger.Warn("failed to append registration ledger entry", zap.Error(err))
	}
	if referredBy != "" {
		if referrer, err := s.repo.GetByDisplayNameCI(ctx, referredBy); err == nil {
			if err := s.repo.CreditCurrency(ctx, referrer.ID, 50); err != nil {
				s.logger.Warn("failed to credit referrer", zap.Error(err))
			} else if err := s.ledger.AppendSystemCredit(ctx, referrer.ID, 50, "referral bonus for "+name); err != nil {
				s.logger.Warn("failed to append referral ledger entry", zap.Error(err))
			}
		}
	}

	claimed, err := s.mailbox.ClaimPendingMessagesForSlug(ctx, site.Slug, agentID)
	if err != nil {
		s.logger.Warn("failed to claim pending messages", zap.Error(err))
	} else if claimed > 0 {
		s.logger.Info("claimed pending messages", zap.Int("count", claimed), zap.String("agent_id", agentID))
	}

	welcome := fmt.Sprintf("Welcome to Molt Cities, %s. Your site is live at /sites/%s.", name, site.Slug)
	if err := s.mailbox.SendSystemMessage(ctx, agentID, "Welcome", welcome); err != nil {
		s.logger.Warn("failed to send welcome message", zap.Error(err))
	}

	fp := cryptoutil.Fingerprint([]byte(p.PublicKeyOrWallet))
	return &model.RegisterPhase2Response{
		AgentID:     agentID,
		APIKey:      apiKeyPlain,
		SiteURL:     "/sites/" + site.Slug,
		Fingerprint: fp,
	}, nil
}

// RecoverStart runs phase 1 of recovery: a new RSA key challenge tagged to
// an existing agent ID.
func (s *Service) RecoverStart(ctx context.Context, agentID, newPublicKeyPEM string) (*model.RegisterPhase1Response, error) {
	if _, err := cryptoutil.ParseRSAPublicKeyPEM([]byte(newPublicKeyPEM)); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	if _, err := s.repo.GetByID(ctx, agentID); err != nil {
		return nil, ErrNotFound
	}
	p, err := s.challenge.Start(ctx, challengeSvcStartInput(challenge.KindRecover, agentID, newPublicKeyPEM, nil))
	if err != nil {
		return nil, err
	}
	return &model.RegisterPhase1Response{
		PendingID:   p.ID,
		Challenge:   p.Challenge,
		SignCommand: fmt.Sprintf("echo -n %q | openssl dgst -sha256 -sign your_new_private_key.pem | base64", p.Challenge),
	}, nil
}

// RecoverVerify completes recovery: verifies the signature against the new
// key, rotates api_key_hash (invalidating every prior token), and replaces
// the stored public key.
func (s *Service) RecoverVerify(ctx context.Context, pendingID, signatureBase64 string) (*model.RegisterPhase2Response, error) {
	sigBytes, err := base64.StdEncoding.DecodeString(signatureBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: signature is not valid base64", ErrInvalidInput)
	}
	verifyFn := func(publicKeyOrWallet, challengeHex, _ string) error {
		pub, err := cryptoutil.ParseRSAPublicKeyPEM([]byte(publicKeyOrWallet))
		if err != nil {
			return err
		}
		return cryptoutil.VerifyRSAChallenge(pub, challengeHex, sigBytes)
	}
	p, err := s.challenge.Verify(ctx, pendingID, signatureBase64, verifyFn)
	if err != nil {
		return nil, err
	}

	agentID := p.AgentID
	apiKeyPlain, apiKeyHash := cryptoutil.NewAPIKey()
	if err := s.repo.RotateAPIKey(ctx, agentID, apiKeyHash); err != nil {
		return nil, err
	}
	if err := s.repo.AddPublicKey(ctx, agentID, p.PublicKeyOrWallet); err != nil {
		return nil, err
	}

	fp := cryptoutil.Fingerprint([]byte(p.PublicKeyOrWallet))
	return &model.RegisterPhase2Response{AgentID: agentID, APIKey: apiKeyPlain, Fingerprint: fp}, nil
}

// AddKeyStart and AddKeyVerify mirror recovery but do not rotate the bearer
// token — they exist for agents who want a secondary signing key without
// invalidating their current API key.
func (s *Service) AddKeyStart(ctx context.Context, agentID, newPublicKeyPEM string) (*model.RegisterPhase1Response, error) {
	if _, err := cryptoutil.ParseRSAPublicKeyPEM([]byte(newPublicKeyPEM)); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	p, err := s.challenge.Start(ctx, challengeSvcStartInput(challenge.KindAddKey, agentID, newPublicKeyPEM, nil))
	if err != nil {
		return nil, err
	}
	return &model.RegisterPhase1Response{
		PendingID:   p.ID,
		Challenge:   p.Challenge,
		SignCommand: fmt.Sprintf("echo -n %q | openssl dgst -sha256 -sign your_new_private_key.pem | base64", p.Challenge),
	}, nil
}

func (s *Service) AddKeyVerify(ctx context.Context, pendingID, signatureBase64 string) (*model.Agent, error) {
	sigBytes, err := base64.StdEncoding.DecodeString(signatureBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: signature is not valid base64", ErrInvalidInput)
	}
	verifyFn := func(publicKeyOrWallet, challengeHex, _ string) error {
		pub, err := cryptoutil.ParseRSAPublicKeyPEM([]byte(publicKeyOrWallet))
		if err != nil {
			return err
		}
		return cryptoutil.VerifyRSAChallenge(pub, challengeHex, sigBytes)
	}
	p, err := s.challenge.Verify(ctx, pendingID, signatureBase64, verifyFn)
	if err != nil {
		return nil, err
	}
	if err := s.repo.AddPublicKey(ctx, p.AgentID, p.PublicKeyOrWallet); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, p.AgentID)
}

// WalletChallengeStart issues an Ed25519/Base58 challenge for wallet
// binding.
func (s *Service) WalletChallengeStart(ctx context.Context, agentID, walletAddress string) (*model.RegisterPhase1Response, error) {
	if _, err := cryptoutil.Base58Decode(walletAddress); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	p, err := s.challenge.Start(ctx, challengeSvcStartInput(challenge.KindBindWallet, agentID, walletAddress, nil))
	if err != nil {
		return nil, err
	}
	return &model.RegisterPhase1Response{
		PendingID:   p.ID,
		Challenge:   p.Challenge,
		SignCommand: fmt.Sprintf("sign the UTF-8 string %q with your wallet's Ed25519 key and base58-encode the 64-byte signature", p.Challenge),
	}, nil
}

// WalletVerify completes wallet binding and sweeps any jobs awaiting this
// agent's wallet for release.
func (s *Service) WalletVerify(ctx context.Context, pendingID, signatureBase58 string) (*model.Agent, error) {
	verifyFn := func(publicKeyOrWallet, challengeHex, sig string) error {
		return cryptoutil.VerifyEd25519Base58(publicKeyOrWallet, sig, challengeHex)
	}
	p, err := s.challenge.Verify(ctx, pendingID, signatureBase58, verifyFn)
	if err != nil {
		return nil, err
	}
	if err := s.repo.BindWallet(ctx, p.AgentID, p.PublicKeyOrWallet, model.WalletChainSolana); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: wallet already bound to another agent", ErrInvalidInput)
		}
		return nil, err
	}
	if n, err := s.escrow.ReleaseJobsAwaitingWallet(ctx, p.AgentID, p.PublicKeyOrWallet); err != nil {
		s.logger.Warn("failed to sweep jobs awaiting wallet", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("released escrow for jobs awaiting wallet", zap.Int("count", n), zap.String("agent_id", p.AgentID))
	}
	return s.repo.GetByID(ctx, p.AgentID)
}

// Authenticate extracts and validates a bearer token, returning the owning
// agent. Never logs or returns the plaintext token.
func (s *Service) Authenticate(ctx context.Context, authorizationHeader string) (*model.Agent, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(authorizationHeader, prefix) {
		return nil, ErrUnauthorized
	}
	token := strings.TrimPrefix(authorizationHeader, prefix)
	if token == "" {
		return nil, ErrUnauthorized
	}
	hash := cryptoutil.HashAPIKey(token)
	agent, err := s.repo.GetByAPIKeyHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return agent, nil
}

// GetByID returns an agent by ID for /api/me and public profile reads.
func (s *Service) GetByID(ctx context.Context, id string) (*model.Agent, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// UpdateProfileRequest is the PATCH /api/me payload.
type UpdateProfileRequest struct {
	Soul   string   `json:"soul"`
	Skills []string `json:"skills"`
	Avatar string   `json:"avatar"`
	Status string   `json:"status"`
}

// UpdateProfile validates and patches the mutable subset of an agent's
// profile.
func (s *Service) UpdateProfile(ctx context.Context, agentID string, req UpdateProfileRequest) error {
	if err := validateSoul(req.Soul); err != nil {
		return err
	}
	if err := validateSkills(req.Skills); err != nil {
		return err
	}
	return s.repo.UpdateProfile(ctx, agentID, req.Soul, req.Skills, req.Avatar, req.Status)
}

// TrustTier computes an agent's trust tier from its current agent and site
// rows, satisfying internal/jobs.AgentLookup so the job marketplace can
// gate postings without importing the identity service's full surface.
func (s *Service) TrustTier(ctx context.Context, agentID string) (trust.Tier, error) {
	agent, err := s.repo.GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return trust.TierUnverified, ErrNotFound
		}
		return trust.TierUnverified, err
	}

	in := trust.Input{
		HasPublicKey:   agent.PublicKeyPEM != "",
		SoulLength:     len(agent.Soul),
		SkillCount:     len(agent.Skills),
		HasWallet:      agent.WalletAddress != "",
		IsFounding:     agent.IsFounding,
		CreatedAt:      agent.CreatedAt,
		AccountAgeDays: int(time.Since(agent.CreatedAt).Hours() / 24),
	}
	if site, err := s.siteRepo.GetByAgentID(ctx, agentID); err == nil {
		in.HasSite = true
		in.SiteContentLen = len(site.ContentMarkdown)
	}

	return trust.Evaluate(in).Tier, nil
}

// WalletAddress returns the agent's bound wallet, if any, satisfying
// internal/jobs.AgentLookup.
func (s *Service) WalletAddress(ctx context.Context, agentID string) (string, bool, error) {
	agent, err := s.repo.GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", false, ErrNotFound
		}
		return "", false, err
	}
	return agent.WalletAddress, agent.WalletAddress != "", nil
}

// DisplayName returns an agent's display name and founding status,
// satisfying internal/governance's AgentResolver so its vote-weight
// adapter can key a referral count and read the founding flag without a
// second round trip.
func (s *Service) DisplayName(ctx context.Context, agentID string) (string, bool, error) {
	agent, err := s.repo.GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", false, ErrNotFound
		}
		return "", false, err
	}
	return agent.DisplayName, agent.IsFounding, nil
}

// CountReferralsSince satisfies internal/jobs/verify.AgentLookup: how many
// agents the worker identified by workerAgentID has referred since `since`,
// optionally requiring the referral to have bound a wallet. Referrals are
// recorded against the referrer's display name, so the worker's name is
// looked up first.
func (s *Service) CountReferralsSince(ctx context.Context, workerAgentID string, since time.Time, requireWallet bool) (int, error) {
	agent, err := s.repo.GetByID(ctx, workerAgentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return s.repo.CountReferralsSince(ctx, agent.DisplayName, since, requireWallet)
}

// HasVerifiedWallet satisfies internal/jobs/verify.AgentLookup's
// wallet_verified template.
func (s *Service) HasVerifiedWallet(ctx context.Context, agentID string) (bool, error) {
	agent, err := s.repo.GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrNotFound
		}
		return false, err
	}
	return agent.WalletAddress != "", nil
}

// Fingerprint returns the agent's registered public-key fingerprint,
// satisfying internal/jobs/verify.AgentLookup's external_post template,
// which looks for this marker in the fetched page.
func (s *Service) Fingerprint(ctx context.Context, agentID string) (string, error) {
	agent, err := s.repo.GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	if agent.PublicKeyPEM == "" {
		return "", fmt.Errorf("agents: %s has no registered public key", agentID)
	}
	return cryptoutil.Fingerprint([]byte(agent.PublicKeyPEM)), nil
}

// CheckSlug reports whether slug is available for registration.
func (s *Service) CheckSlug(ctx context.Context, slug string) (bool, error) {
	return s.siteRepo.SlugAvailable(ctx, slug)
}

func parseNameAndReferrer(subject string) (name, referredBy string) {
	const marker = "|REF:"
	if idx := strings.Index(subject, marker); idx >= 0 {
		return subject[:idx], subject[idx+len(marker):]
	}
	return subject, ""
}

func challengeSvcStartInput(kind challenge.Kind, agentIDOrName, publicKeyOrWallet string, siteData []byte) challenge.StartInput {
	return challenge.StartInput{
		Kind:              kind,
		AgentIDOrName:     agentIDOrName,
		PublicKeyOrWallet: publicKeyOrWallet,
		SiteData:          siteData,
	}
}
