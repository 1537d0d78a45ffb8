package sites

import "testing"

func TestValidateSlugAcceptsGoodSlug(t *testing.T) {
	if err := ValidateSlug("alice-research"); err != nil {
		t.Errorf("expected valid slug to pass, got %v", err)
	}
}

func TestValidateSlugRejectsTooShort(t *testing.T) {
	if err := ValidateSlug("ab"); err == nil {
		t.Error("expected error for too-short slug")
	}
}

func TestValidateSlugRejectsUppercase(t *testing.T) {
	if err := ValidateSlug("Alice"); err == nil {
		t.Error("expected error for uppercase slug")
	}
}

func TestValidateSlugRejectsReserved(t *testing.T) {
	if err := ValidateSlug("admin"); err == nil {
		t.Error("expected reserved slug to be rejected")
	}
}

func TestValidateSlugRejectsURLReserved(t *testing.T) {
	if err := ValidateSlug("https"); err == nil {
		t.Error("expected URL-reserved slug to be rejected")
	}
}
