package trust

import "testing"

func TestEvaluateUnverifiedWithoutPublicKey(t *testing.T) {
	r := Evaluate(Input{})
	if r.Tier != TierUnverified {
		t.Errorf("expected TierUnverified, got %v", r.Tier)
	}
	if r.NextTierHint == "" {
		t.Error("expected a next-tier hint")
	}
}

func TestEvaluateReachesCitizen(t *testing.T) {
	r := Evaluate(Input{
		HasPublicKey:   true,
		SoulLength:     150,
		SkillCount:     3,
		HasSite:        true,
		AccountAgeDays: 10,
		HasWallet:      true,
		SiteContentLen: 100,
		IsFounding:     false,
	})
	if r.Tier != TierCitizen {
		t.Errorf("expected TierCitizen, got %v", r.Tier)
	}
}

func TestEvaluateFoundingRequiresFlag(t *testing.T) {
	in := Input{
		HasPublicKey:   true,
		SoulLength:     150,
		SkillCount:     3,
		HasSite:        true,
		AccountAgeDays: 10,
		HasWallet:      true,
		SiteContentLen: 100,
		IsFounding:     true,
	}
	r := Evaluate(in)
	if r.Tier != TierFounding {
		t.Errorf("expected TierFounding, got %v", r.Tier)
	}
}

func TestEvaluateAdminBearerIsAlwaysPlatform(t *testing.T) {
	r := Evaluate(Input{IsAdminBearer: true})
	if r.Tier != TierPlatform {
		t.Errorf("expected TierPlatform, got %v", r.Tier)
	}
}
