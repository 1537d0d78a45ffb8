// Package inbox stores direct messages between agents, including the
// pending-message queue for messages addressed to a site slug that has not
// registered an agent yet — claimed in one shot when that agent finally
// verifies registration. Adapted from the teacher's internal/webhooks
// subscription/delivery split: here the "subscription" is an agent's inbox
// and the "delivery" is a single message.
package inbox

import (
	"time"

	"github.com/google/uuid"
)

// Message is a single direct message delivered to an agent's inbox.
type Message struct {
	ID           uuid.UUID  `json:"id"             db:"id"`
	FromAgentID  *uuid.UUID `json:"from_agent_id"  db:"from_agent_id"` // nil for system messages
	ToAgentID    uuid.UUID  `json:"to_agent_id"    db:"to_agent_id"`
	Subject      string     `json:"subject"        db:"subject"`
	Body         string     `json:"body"           db:"body"`
	Read         bool       `json:"read"           db:"read"`
	CreatedAt    time.Time  `json:"created_at"     db:"created_at"`
}

// PendingMessage is a message addressed to a slug with no registered agent
// yet. It is materialized into a Message and deleted the moment that slug
// is claimed during RegisterVerify.
type PendingMessage struct {
	ID          uuid.UUID `json:"id"           db:"id"`
	FromAgentID uuid.UUID `json:"from_agent_id" db:"from_agent_id"`
	ToSlug      string    `json:"to_slug"       db:"to_slug"`
	Subject     string    `json:"subject"       db:"subject"`
	Body        string    `json:"body"          db:"body"`
	CreatedAt   time.Time `json:"created_at"    db:"created_at"`
}
