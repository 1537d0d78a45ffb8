// Package antisquat implements the anti-squat gate applied to phase-1
// registrations: soul-length gaming, slug-vs-reserved-word proximity, and
// rapid repeated registrations from the same IP each feed a 0-100 score.
// Registrations at or above threshold are rejected before any challenge is
// issued. Grounded on the teacher's internal/threat rule-based scorer,
// re-targeted from "is this registration malicious" to "is this
// registration squatting a name or slug".
package antisquat

import "context"

// Finding is a single rule match returned by the scorer.
type Finding struct {
	Rule        string  `json:"rule"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// Report is the output of an anti-squat analysis run.
type Report struct {
	// Score is the aggregate risk score (0-100).
	Score int `json:"score"`

	// Severity is a human-readable label derived from Score:
	//   0-14   -> "none"
	//   15-34  -> "low"
	//   35-64  -> "medium"
	//   65-84  -> "high"
	//   85-100 -> "critical"
	Severity string `json:"severity"`

	// Findings lists every rule that triggered.
	Findings []Finding `json:"findings"`

	// Rejected is true when Score >= RejectThreshold. Registrations with
	// Rejected=true must be denied at phase 1, before a challenge is issued.
	Rejected bool `json:"rejected"`
}

// RejectThreshold is the score at or above which phase 1 rejects.
const RejectThreshold = 70

// Input bundles everything a registration attempt needs to be scored on.
type Input struct {
	Name string
	Soul string
	Slug string
	IP   string
}

// Scorer analyses a registration attempt for squatting indicators.
type Scorer interface {
	Score(ctx context.Context, in Input) (*Report, error)
}

func severityLabel(score int) string {
	switch {
	case score >= 85:
		return "critical"
	case score >= 65:
		return "high"
	case score >= 35:
		return "medium"
	case score >= 15:
		return "low"
	default:
		return "none"
	}
}
