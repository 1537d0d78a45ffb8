package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/moltcities/backend/internal/trust"
)

// ErrExceeded is returned by Check when the actor has hit the cap for an
// action in the current hour bucket.
var ErrExceeded = errors.New("ratelimit: cap exceeded")

// Decision is returned alongside ErrExceeded so handlers can build the 429
// body the spec requires: current tier, the cap, and a retry-after window.
type Decision struct {
	Allowed    bool
	Tier       trust.Tier
	Cap        int
	Count      int64
	RetryAfter time.Duration
}

// Limiter checks hourly per-tier action caps against a BucketStore.
type Limiter struct {
	store BucketStore
}

// NewLimiter builds a Limiter over the given BucketStore.
func NewLimiter(store BucketStore) *Limiter {
	return &Limiter{store: store}
}

// Check increments the bucket for (action, actorID, current hour) and
// reports whether the action is allowed at the given tier. The bucket is
// incremented unconditionally — rejections still count, matching an
// insert-or-increment counter that can't "undo" the attempt.
func (l *Limiter) Check(ctx context.Context, action Action, actorID string, tier trust.Tier) (Decision, error) {
	now := time.Now().UTC()
	count, err := l.store.Increment(ctx, BucketKey(action, actorID, now))
	if err != nil {
		return Decision{}, err
	}

	cap := HourlyCap(action, tier)
	if count > int64(cap) {
		nextHour := now.Truncate(time.Hour).Add(time.Hour)
		return Decision{
			Allowed:    false,
			Tier:       tier,
			Cap:        cap,
			Count:      count,
			RetryAfter: nextHour.Sub(now),
		}, ErrExceeded
	}
	return Decision{Allowed: true, Tier: tier, Cap: cap, Count: count}, nil
}
