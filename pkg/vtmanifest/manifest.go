// Package vtmanifest is the single source of truth for verification
// templates: each declares a name, whether it auto-verifies, and the
// parameter keys a job posting must supply. The job-creation endpoint
// validates against this registry; the submission endpoint dispatches on
// it. Kept dependency-free (no domain types) the way pkg/sitecard stays
// clear of its owning service, so both
// internal/jobs and any future admin tooling can import it without a
// cycle.
package vtmanifest

import "fmt"

// Template describes one verification predicate's contract.
type Template struct {
	Name           string
	AutoVerifiable bool
	RequiredParams []string
}

// Registry is the closed set of verification templates this backend
// supports, matching spec.md §4.I's table exactly.
var Registry = map[string]Template{
	"guestbook_entry": {
		Name: "guestbook_entry", AutoVerifiable: true,
		RequiredParams: []string{"target_site_slug", "min_length"},
	},
	"referral_count": {
		Name: "referral_count", AutoVerifiable: true,
		RequiredParams: []string{"count", "timeframe_hours"},
	},
	"referral_with_wallet": {
		Name: "referral_with_wallet", AutoVerifiable: true,
		RequiredParams: []string{"count", "timeframe_hours"},
	},
	"site_content": {
		Name: "site_content", AutoVerifiable: true,
		RequiredParams: []string{"required_text", "min_length"},
	},
	"chat_messages": {
		Name: "chat_messages", AutoVerifiable: true,
		RequiredParams: []string{"count", "min_length"},
	},
	"message_sent": {
		Name: "message_sent", AutoVerifiable: true,
		RequiredParams: []string{"target_agent_id"},
	},
	"ring_joined": {
		Name: "ring_joined", AutoVerifiable: true,
		RequiredParams: []string{"ring_slug"},
	},
	"wallet_verified": {
		Name: "wallet_verified", AutoVerifiable: true,
		RequiredParams: nil,
	},
	"external_post": {
		Name: "external_post", AutoVerifiable: true,
		RequiredParams: []string{"platform"}, // require_mention is optional, defaults true
	},
	"manual_approval": {
		Name: "manual_approval", AutoVerifiable: false,
		RequiredParams: []string{"instructions"},
	},
}

// Lookup returns a template by name.
func Lookup(name string) (Template, bool) {
	t, ok := Registry[name]
	return t, ok
}

// ValidateParams checks that every required key for a template is present
// in the supplied parameter map. Value type/range checking (e.g. count > 0)
// is the predicate implementation's job at verification time, not this
// structural check.
func ValidateParams(templateName string, params map[string]interface{}) error {
	t, ok := Lookup(templateName)
	if !ok {
		return fmt.Errorf("vtmanifest: unknown verification template %q", templateName)
	}
	for _, key := range t.RequiredParams {
		if _, present := params[key]; !present {
			return fmt.Errorf("vtmanifest: template %q missing required param %q", templateName, key)
		}
	}
	return nil
}
