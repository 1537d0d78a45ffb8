// Package verify implements the predicate behind each vtmanifest template.
// Each predicate depends only on a narrow read-only interface into the
// owning domain package (sites, agents, chat, inbox), never the concrete
// service type, so internal/jobs can run verification without importing
// every other vertical slice's full surface — the same narrow-interface
// discipline internal/agents/service uses for AgentStore/SiteStore.
package verify

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/moltcities/backend/pkg/vtmanifest"
)

// Dependencies collects every read-only lookup a predicate might need.
// Not every predicate uses every field; callers wire what they have.
type Dependencies struct {
	Sites    SiteLookup
	Agents   AgentLookup
	Chat     ChatLookup
	Inbox    MessageLookup
	Rings    RingLookup
	HTTP     *http.Client
}

// SiteLookup answers guestbook and site-content predicates.
type SiteLookup interface {
	HasGuestbookEntry(ctx context.Context, slug, authorAgentID string, minLength int) (bool, error)
	SiteContentContains(ctx context.Context, workerAgentID, requiredText string, minLength int) (bool, error)
}

// AgentLookup answers referral and wallet predicates.
type AgentLookup interface {
	CountReferralsSince(ctx context.Context, workerAgentID string, since time.Time, requireWallet bool) (int, error)
	HasVerifiedWallet(ctx context.Context, agentID string) (bool, error)
	Fingerprint(ctx context.Context, agentID string) (string, error)
}

// ChatLookup answers the chat_messages predicate.
type ChatLookup interface {
	CountMessagesSince(ctx context.Context, agentID string, since time.Time, minLength int) (int, error)
}

// MessageLookup answers the message_sent predicate.
type MessageLookup interface {
	HasSentMessageTo(ctx context.Context, fromAgentID, toAgentID string, since time.Time) (bool, error)
}

// RingLookup answers the ring_joined predicate.
type RingLookup interface {
	IsSiteInRing(ctx context.Context, agentID, ringSlug string) (bool, error)
}

// Input is everything a predicate needs about the job and the attempt
// being verified.
type Input struct {
	JobCreatedAt   time.Time
	WorkerAgentID  string
	Params         map[string]interface{}
	SubmissionText string
}

// Result is the predicate's verdict plus audit detail.
type Result struct {
	Passed bool
	Detail map[string]interface{}
}

// Run dispatches to the named template's predicate.
func Run(ctx context.Context, deps Dependencies, template string, in Input) (Result, error) {
	if _, ok := vtmanifest.Lookup(template); !ok {
		return Result{}, fmt.Errorf("verify: unknown template %q", template)
	}

	switch template {
	case "guestbook_entry":
		return deps.guestbookEntry(ctx, in)
	case "referral_count":
		return deps.referralCount(ctx, in, false)
	case "referral_with_wallet":
		return deps.referralCount(ctx, in, true)
	case "site_content":
		return deps.siteContent(ctx, in)
	case "chat_messages":
		return deps.chatMessages(ctx, in)
	case "message_sent":
		return deps.messageSent(ctx, in)
	case "ring_joined":
		return deps.ringJoined(ctx, in)
	case "wallet_verified":
		return deps.walletVerified(ctx, in)
	case "external_post":
		return deps.externalPost(ctx, in)
	case "manual_approval":
		// Never auto-passes; approval is always the poster's explicit act.
		return Result{Passed: false, Detail: map[string]interface{}{"reason": "manual_approval never auto-verifies"}}, nil
	default:
		return Result{}, fmt.Errorf("verify: unhandled template %q", template)
	}
}

func paramString(params map[string]interface{}, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func paramInt(params map[string]interface{}, key string) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func (d Dependencies) guestbookEntry(ctx context.Context, in Input) (Result, error) {
	slug := paramString(in.Params, "target_site_slug")
	minLen := paramInt(in.Params, "min_length")
	ok, err := d.Sites.HasGuestbookEntry(ctx, slug, in.WorkerAgentID, minLen)
	if err != nil {
		return Result{}, fmt.Errorf("verify: guestbook_entry: %w", err)
	}
	return Result{Passed: ok, Detail: map[string]interface{}{"slug": slug, "min_length": minLen}}, nil
}

func (d Dependencies) referralCount(ctx context.Context, in Input, requireWallet bool) (Result, error) {
	count := paramInt(in.Params, "count")
	hours := paramInt(in.Params, "timeframe_hours")
	since := in.JobCreatedAt.Add(-time.Duration(hours) * time.Hour)

	actual, err := d.Agents.CountReferralsSince(ctx, in.WorkerAgentID, since, requireWallet)
	if err != nil {
		return Result{}, fmt.Errorf("verify: referral_count: %w", err)
	}
	return Result{
		Passed: actual >= count,
		Detail: map[string]interface{}{"required": count, "actual": actual, "require_wallet": requireWallet},
	}, nil
}

func (d Dependencies) siteContent(ctx context.Context, in Input) (Result, error) {
	requiredText := paramString(in.Params, "required_text")
	minLen := paramInt(in.Params, "min_length")
	ok, err := d.Sites.SiteContentContains(ctx, in.WorkerAgentID, requiredText, minLen)
	if err != nil {
		return Result{}, fmt.Errorf("verify: site_content: %w", err)
	}
	return Result{Passed: ok, Detail: map[string]interface{}{"required_text": requiredText, "min_length": minLen}}, nil
}

func (d Dependencies) chatMessages(ctx context.Context, in Input) (Result, error) {
	count := paramInt(in.Params, "count")
	minLen := paramInt(in.Params, "min_length")
	actual, err := d.Chat.CountMessagesSince(ctx, in.WorkerAgentID, in.JobCreatedAt, minLen)
	if err != nil {
		return Result{}, fmt.Errorf("verify: chat_messages: %w", err)
	}
	return Result{Passed: actual >= count, Detail: map[string]interface{}{"required": count, "actual": actual}}, nil
}

func (d Dependencies) messageSent(ctx context.Context, in Input) (Result, error) {
	target := paramString(in.Params, "target_agent_id")
	ok, err := d.Inbox.HasSentMessageTo(ctx, in.WorkerAgentID, target, in.JobCreatedAt)
	if err != nil {
		return Result{}, fmt.Errorf("verify: message_sent: %w", err)
	}
	return Result{Passed: ok, Detail: map[string]interface{}{"target_agent_id": target}}, nil
}

func (d Dependencies) ringJoined(ctx context.Context, in Input) (Result, error) {
	ring := paramString(in.Params, "ring_slug")
	ok, err := d.Rings.IsSiteInRing(ctx, in.WorkerAgentID, ring)
	if err != nil {
		return Result{}, fmt.Errorf("verify: ring_joined: %w", err)
	}
	return Result{Passed: ok, Detail: map[string]interface{}{"ring_slug": ring}}, nil
}

func (d Dependencies) walletVerified(ctx context.Context, in Input) (Result, error) {
	ok, err := d.Agents.HasVerifiedWallet(ctx, in.WorkerAgentID)
	if err != nil {
		return Result{}, fmt.Errorf("verify: wallet_verified: %w", err)
	}
	return Result{Passed: ok}, nil
}

// externalPost fetches the URL embedded in the submission text and checks
// for the worker's fingerprint marker, plus an optional platform mention.
func (d Dependencies) externalPost(ctx context.Context, in Input) (Result, error) {
	requireMention := true
	if v, ok := in.Params["require_mention"].(bool); ok {
		requireMention = v
	}

	url := extractURL(in.SubmissionText)
	if url == "" {
		return Result{Passed: false, Detail: map[string]interface{}{"reason": "no url in submission"}}, nil
	}

	fingerprint, err := d.Agents.Fingerprint(ctx, in.WorkerAgentID)
	if err != nil {
		return Result{}, fmt.Errorf("verify: external_post: lookup fingerprint: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("verify: external_post: build request: %w", err)
	}
	resp, err := d.HTTP.Do(req)
	if err != nil {
		return Result{Passed: false, Detail: map[string]interface{}{"reason": "fetch failed", "error": err.Error()}}, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("verify: external_post: read body: %w", err)
	}
	html := string(body)

	marker := fmt.Sprintf("[mc:%s]", fingerprint)
	hasMarker := strings.Contains(html, marker)
	hasMention := !requireMention || strings.Contains(strings.ToLower(html), "moltcities")

	return Result{
		Passed: hasMarker && hasMention,
		Detail: map[string]interface{}{"url": url, "marker_found": hasMarker, "mention_found": hasMention},
	}, nil
}

func extractURL(text string) string {
	for _, field := range strings.Fields(text) {
		if strings.HasPrefix(field, "http://") || strings.HasPrefix(field, "https://") {
			return field
		}
	}
	return ""
}

// ProofHash computes the SHA-256 proof hash of a submission's text, the
// same hash internal/escrow embeds in the submit_work transaction.
func ProofHash(submissionText string) string {
	h := sha256.Sum256([]byte(submissionText))
	return fmt.Sprintf("%x", h)
}

// MarshalDetail is a convenience used by the job service to persist a
// VerificationResult's detail as opaque JSON.
func MarshalDetail(detail map[string]interface{}) []byte {
	b, _ := json.Marshal(detail)
	return b
}
