package email

import "context"

// EmailSender delivers the platform-staff transactional email
// internal/platformusers sends: verification links, password resets,
// OAuth account-linking notices. Agent-facing notifications never go
// through here — those are internal/notify pushes and internal/inbox
// messages.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}
