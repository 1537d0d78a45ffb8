package service

import (
	"encoding/json"
	"fmt"

	"github.com/moltcities/backend/internal/agents/model"
)

// registrationPayload is everything from a RegisterRequest that phase 2
// needs but can't be re-derived from the challenge row alone (soul, skills,
// site). It rides in PendingRegistration.SiteData — the spec's "optional
// packaged site_data for registration" column, generalized here to the
// agent's full profile since phase 2 has no other way to recover it.
type registrationPayload struct {
	Soul   string          `json:"soul"`
	Skills []string        `json:"skills"`
	Site   model.SiteInput `json:"site"`
}

// packSiteData serializes the registration payload so it can ride along in
// PendingRegistration.SiteData until phase 2.
func packSiteData(soul string, skills []string, site model.SiteInput) []byte {
	b, _ := json.Marshal(registrationPayload{Soul: soul, Skills: skills, Site: site}) // plain strings; cannot fail
	return b
}

// unpackSiteData is the inverse of packSiteData.
func unpackSiteData(data []byte) (registrationPayload, error) {
	var p registrationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return registrationPayload{}, fmt.Errorf("unmarshal packaged registration payload: %w", err)
	}
	return p, nil
}
