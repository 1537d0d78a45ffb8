package antisquat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/moltcities/backend/internal/sites"
)

// minSoulEntropy is the minimum fraction of unique characters a soul must
// have, per character, to not be flagged as low-entropy padding (e.g. a
// soul string repeating one phrase to clear the 100-character minimum).
const minSoulEntropy = 0.12

// slugEditDistanceThreshold flags slugs within this Levenshtein distance of
// a reserved word as likely impersonation (e.g. "adrnin" for "admin").
const slugEditDistanceThreshold = 2

// ipBurstWindow and ipBurstLimit bound how many registrations the same IP
// may attempt before being flagged — distinct from internal/ratelimit's
// per-agent hourly caps, since no agent exists yet at phase 1.
const (
	ipBurstWindow = 10 * time.Minute
	ipBurstLimit  = 3
)

// RuleBasedScorer is the default Scorer implementation, running a fixed set
// of rules against phase-1 registration inputs and accumulating a score.
type RuleBasedScorer struct {
	redis *redis.Client
}

// NewRuleBasedScorer builds a RuleBasedScorer. redis backs the IP-burst
// counter; it may be nil, in which case that rule never fires.
func NewRuleBasedScorer(redis *redis.Client) *RuleBasedScorer {
	return &RuleBasedScorer{redis: redis}
}

// Score implements Scorer.
func (s *RuleBasedScorer) Score(ctx context.Context, in Input) (*Report, error) {
	var findings []Finding

	if f := ruleSoulEntropy(in.Soul); f != nil {
		findings = append(findings, *f)
	}
	if f := ruleSlugReservedDistance(in.Slug); f != nil {
		findings = append(findings, *f)
	}
	f, err := s.ruleIPBurst(ctx, in.IP)
	if err != nil {
		return nil, err
	}
	if f != nil {
		findings = append(findings, *f)
	}

	total := 0
	for _, finding := range findings {
		total += int(finding.Confidence * 40)
	}
	if total > 100 {
		total = 100
	}
	if findings == nil {
		findings = []Finding{}
	}

	return &Report{
		Score:    total,
		Severity: severityLabel(total),
		Findings: findings,
		Rejected: total >= RejectThreshold,
	}, nil
}

// ruleSoulEntropy flags souls padded with low-variety text to clear the
// 100-character minimum without saying anything — the "soul-length gaming"
// the gate exists to catch.
func ruleSoulEntropy(soul string) *Finding {
	if len(soul) == 0 {
		return nil
	}
	seen := make(map[rune]bool)
	for _, r := range strings.ToLower(soul) {
		seen[r] = true
	}
	entropy := float64(len(seen)) / float64(len(soul))
	if entropy < minSoulEntropy {
		return &Finding{
			Rule:        "soul_entropy",
			Description: "Soul has unusually low character variety for its length",
			Confidence:  0.9,
		}
	}
	return nil
}

// ruleSlugReservedDistance flags slugs that narrowly miss an exact reserved
// word — close enough to visually pass as it, far enough to dodge the exact
// reserved-word check in internal/sites.ValidateSlug.
func ruleSlugReservedDistance(slug string) *Finding {
	if slug == "" {
		return nil
	}
	slug = strings.ToLower(slug)
	for _, word := range sites.ReservedWords() {
		d := levenshtein(slug, word)
		if d > 0 && d <= slugEditDistanceThreshold {
			return &Finding{
				Rule:        "slug_reserved_distance",
				Description: fmt.Sprintf("Slug %q is a near-miss of reserved word %q", slug, word),
				Confidence:  0.7,
			}
		}
	}
	return nil
}

// ruleIPBurst flags an IP that has attempted several registrations within
// ipBurstWindow, via a Redis INCR/EXPIRE counter analogous to
// internal/ratelimit's burst guard.
func (s *RuleBasedScorer) ruleIPBurst(ctx context.Context, ip string) (*Finding, error) {
	if s.redis == nil || ip == "" {
		return nil, nil
	}
	key := "moltcities:antisquat:ip:" + ip
	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("antisquat: ip burst check: %w", err)
	}
	if count == 1 {
		if err := s.redis.Expire(ctx, key, ipBurstWindow).Err(); err != nil {
			return nil, fmt.Errorf("antisquat: ip burst expire: %w", err)
		}
	}
	if count > ipBurstLimit {
		return &Finding{
			Rule:        "ip_burst",
			Description: "IP has attempted multiple registrations in a short window",
			Confidence:  0.6,
		}, nil
	}
	return nil, nil
}

// levenshtein returns the edit distance between a and b.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
