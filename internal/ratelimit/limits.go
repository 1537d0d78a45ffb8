// Package ratelimit enforces the hourly per-tier action caps and the chat
// short-burst guard. Hourly buckets are Postgres-backed (the Store adapter's
// atomic-increment contract); the chat burst guard is Redis-backed, grounded
// on the narrow RedisClient interface the ocx-backend-go-svc fabric package
// injects its driver through (internal/fabric/redis_store.go).
package ratelimit

import "github.com/moltcities/backend/internal/trust"

// Action identifies a rate-limit-able operation.
type Action string

const (
	ActionMessage    Action = "message"
	ActionGuestbook  Action = "guestbook"
	ActionChat       Action = "chat"
	ActionJobPosting Action = "job_posting"
	ActionJobApply   Action = "job_apply"
	ActionRegister   Action = "register"
)

// hourlyCaps[action][tier] is the number of actions permitted per fixed
// clock-hour bucket. An out-of-range tier falls back to the tier-0 entry;
// an unlisted action has a cap of 0.
var hourlyCaps = map[Action][6]int{
	ActionMessage:    {5, 20, 50, 100, 200, 1_000_000},
	ActionGuestbook:  {2, 10, 30, 60, 120, 1_000_000},
	ActionChat:       {10, 40, 100, 200, 400, 1_000_000},
	ActionJobPosting: {0, 1, 3, 10, 20, 1_000_000},
	ActionJobApply:   {3, 10, 25, 50, 100, 1_000_000},
	ActionRegister:   {3, 3, 3, 3, 3, 3},
}

// HourlyCap returns the per-hour cap for action at the given trust tier.
func HourlyCap(action Action, tier trust.Tier) int {
	row, ok := hourlyCaps[action]
	if !ok {
		return 0
	}
	if int(tier) < 0 || int(tier) >= len(row) {
		return row[0]
	}
	return row[tier]
}
