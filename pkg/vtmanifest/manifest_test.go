package vtmanifest

import "testing"

func TestValidateParamsRejectsMissingKey(t *testing.T) {
	err := ValidateParams("guestbook_entry", map[string]interface{}{"target_site_slug": "acme"})
	if err == nil {
		t.Fatal("expected error for missing min_length")
	}
}

func TestValidateParamsAcceptsCompleteParams(t *testing.T) {
	err := ValidateParams("guestbook_entry", map[string]interface{}{
		"target_site_slug": "acme", "min_length": 20,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateParamsRejectsUnknownTemplate(t *testing.T) {
	err := ValidateParams("does_not_exist", map[string]interface{}{})
	if err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestManualApprovalIsNotAutoVerifiable(t *testing.T) {
	tmpl, ok := Lookup("manual_approval")
	if !ok {
		t.Fatal("expected manual_approval to be registered")
	}
	if tmpl.AutoVerifiable {
		t.Error("manual_approval must never auto-verify")
	}
}

func TestWalletVerifiedHasNoRequiredParams(t *testing.T) {
	if err := ValidateParams("wallet_verified", map[string]interface{}{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
