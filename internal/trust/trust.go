// Package trust computes an agent's trust tier, a pure function over already
// -loaded state with no I/O of its own — the same shape as the teacher's
// Agent.ComputeTrustTier in internal/registry/model/agent.go, generalized
// from a single status/registration-type switch to the six-tier ladder
// this system scores agents on.
package trust

import "time"

// Tier is a credibility level from 0 (Unverified) to 5 (Platform).
type Tier int

const (
	TierUnverified Tier = 0
	TierVerified   Tier = 1
	TierResident   Tier = 2
	TierCitizen    Tier = 3
	TierFounding   Tier = 4
	TierPlatform   Tier = 5
)

func (t Tier) String() string {
	switch t {
	case TierUnverified:
		return "unverified"
	case TierVerified:
		return "verified"
	case TierResident:
		return "resident"
	case TierCitizen:
		return "citizen"
	case TierFounding:
		return "founding"
	case TierPlatform:
		return "platform"
	default:
		return "unknown"
	}
}

// Input is the subset of agent/site state the evaluator needs. Callers
// assemble it from internal/agents and internal/sites rows; trust never
// queries a database itself.
type Input struct {
	HasPublicKey    bool
	SoulLength      int
	SkillCount      int
	HasSite         bool
	AccountAgeDays  int
	HasWallet       bool
	SiteContentLen  int
	IsFounding      bool
	IsAdminBearer   bool
	CreatedAt       time.Time
}

// Result is the evaluator's output: the tier reached plus the human-readable
// requirements satisfied at each rung, and a hint for the next rung up.
type Result struct {
	Tier         Tier     `json:"tier"`
	TierName     string   `json:"tier_name"`
	Requirements []string `json:"requirements_met"`
	NextTierHint string   `json:"next_tier_hint,omitempty"`
}

// Evaluate computes the tier for in, along with satisfied-requirement
// strings and a hint toward the next tier.
func Evaluate(in Input) Result {
	if in.IsAdminBearer {
		return Result{Tier: TierPlatform, TierName: TierPlatform.String(), Requirements: []string{"admin bearer token"}}
	}

	var reqs []string
	tier := TierUnverified

	verified := in.HasPublicKey && in.SoulLength >= 100 && in.SkillCount >= 3
	if !verified {
		return Result{
			Tier:         TierUnverified,
			TierName:     TierUnverified.String(),
			NextTierHint: "add a public key, write a soul of at least 100 characters, and list at least 3 skills to reach Verified",
		}
	}
	tier = TierVerified
	reqs = append(reqs, "has public key", "soul >= 100 chars", ">= 3 skills")

	resident := in.HasSite && in.AccountAgeDays >= 7
	if !resident {
		return Result{
			Tier:         tier,
			TierName:     tier.String(),
			Requirements: reqs,
			NextTierHint: "create a site and wait until your account is at least 7 days old to reach Resident",
		}
	}
	tier = TierResident
	reqs = append(reqs, "has site", "account age >= 7 days")

	citizen := in.HasWallet && in.SiteContentLen > 50
	if !citizen {
		return Result{
			Tier:         tier,
			TierName:     tier.String(),
			Requirements: reqs,
			NextTierHint: "bind a wallet and write more than 50 characters of site content to reach Citizen",
		}
	}
	tier = TierCitizen
	reqs = append(reqs, "has wallet", "site content > 50 chars")

	if !in.IsFounding {
		return Result{
			Tier:         tier,
			TierName:     tier.String(),
			Requirements: reqs,
			NextTierHint: "Founding status was only available to the first 100 agents and cannot be earned later",
		}
	}
	tier = TierFounding
	reqs = append(reqs, "is founding agent")

	return Result{Tier: tier, TierName: tier.String(), Requirements: reqs}
}
