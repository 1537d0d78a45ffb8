package governance

import "math"

// VoterStats is the subset of an agent's contribution history the weight
// function needs. Callers assemble it from internal/agents, internal/jobs,
// and internal/sites state; Weight itself never queries a database, the
// same pure-function-over-already-loaded-state shape as internal/trust.
type VoterStats struct {
	WalletBound            bool
	IsFounding              bool
	JobsCompleted           int
	GuestbookEntriesSigned  int
	ReferralsWithWallet     int
}

// Weight computes an agent's vote weight:
//
//	1 + (wallet_bound?1:0) + (is_founding?1:0)
//	  + min(jobs_completed*0.5, 3) + min(guestbook_entries*0.1, 1)
//	  + min(referrals_with_wallet*0.5, 2)
//
// rounded to one decimal place.
func Weight(s VoterStats) float64 {
	w := 1.0
	if s.WalletBound {
		w++
	}
	if s.IsFounding {
		w++
	}
	w += math.Min(float64(s.JobsCompleted)*0.5, 3)
	w += math.Min(float64(s.GuestbookEntriesSigned)*0.1, 1)
	w += math.Min(float64(s.ReferralsWithWallet)*0.5, 2)
	return math.Round(w*10) / 10
}
