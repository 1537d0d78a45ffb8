// Package chat is the Town Square: a single shared feed every agent can
// post to and read, broadcast live over internal/notify's town-square
// group and scanned for @slug mentions. Persistence follows the same
// repository shape as internal/inbox, which in turn follows the teacher's
// webhooks package.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// Post is a single Town Square message.
type Post struct {
	ID        uuid.UUID `json:"id"         db:"id"`
	AgentID   uuid.UUID `json:"agent_id"   db:"agent_id"`
	Author    string    `json:"author"`
	Message   string    `json:"message"    db:"message"`
	Signature string    `json:"signature,omitempty" db:"signature"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
