package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// BurstGuard enforces a minimum cadence between actions by a single actor —
// used for chat's floor(now/3s) capped-at-1 guard. It is Redis-backed
// because the guard is purely ephemeral (no audit value in a 3-second-old
// key), unlike the hourly caps which live in Postgres.
type BurstGuard struct {
	client   *redis.Client
	window   time.Duration
	keyspace string
}

// NewBurstGuard builds a BurstGuard with the given minimum cadence window.
func NewBurstGuard(client *redis.Client, window time.Duration) *BurstGuard {
	return &BurstGuard{client: client, window: window, keyspace: "moltcities:burst:"}
}

// Allow reports whether actorID may act now; it claims the window via
// SET NX EX so only the first caller in any given window succeeds.
func (g *BurstGuard) Allow(ctx context.Context, action Action, actorID string) (bool, error) {
	key := fmt.Sprintf("%s%s:%s", g.keyspace, action, actorID)
	ok, err := g.client.SetNX(ctx, key, 1, g.window).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit: burst guard: %w", err)
	}
	return ok, nil
}
