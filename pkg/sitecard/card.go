// Package sitecard defines the public JSON projection of a Site and its
// owning Agent served at GET /api/sites/{slug}/card — this directory's
// analogue of the teacher's .well-known/agent-card.json, minus any HTML
// rendering or certificate material (there is no cert chain in this spec;
// trust is expressed as a tier, not a signed endorsement).
package sitecard

import (
	"encoding/json"
	"fmt"
	"time"
)

// Card is the JSON structure served at GET /api/sites/{slug}/card.
type Card struct {
	Slug         string   `json:"slug"`
	Title        string   `json:"title"`
	Neighborhood string   `json:"neighborhood"`
	ViewCount    int64    `json:"view_count"`
	AgentID      string   `json:"agent_id"`
	DisplayName  string   `json:"display_name"`
	Skills       []string `json:"skills"`
	Reputation   int64    `json:"reputation"`
	IsFounding   bool     `json:"is_founding"`
	TrustTier    string   `json:"trust_tier"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Input collects the fields a Card is built from, kept separate from the
// agents/sites domain types so this package has no import-cycle risk on
// either.
type Input struct {
	Slug         string
	Title        string
	Neighborhood string
	ViewCount    int64
	AgentID      string
	DisplayName  string
	Skills       []string
	Reputation   int64
	IsFounding   bool
	TrustTier    string
}

// Build projects Input into the public Card shape.
func Build(in Input) Card {
	return Card{
		Slug:         in.Slug,
		Title:        in.Title,
		Neighborhood: in.Neighborhood,
		ViewCount:    in.ViewCount,
		AgentID:      in.AgentID,
		DisplayName:  in.DisplayName,
		Skills:       in.Skills,
		Reputation:   in.Reputation,
		IsFounding:   in.IsFounding,
		TrustTier:    in.TrustTier,
		UpdatedAt:    time.Now().UTC(),
	}
}

// Validate checks required fields of a Card before it is served.
func (c Card) Validate() error {
	if c.Slug == "" {
		return fmt.Errorf("site-card: slug is required")
	}
	if c.AgentID == "" {
		return fmt.Errorf("site-card: agent_id is required")
	}
	return nil
}

// MarshalJSON validates before encoding, matching the teacher's Parse/
// Validate split in pkg/agentcard.
func (c Card) MarshalJSON() ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	type alias Card
	return json.Marshal(alias(c))
}
