// Package statscache serves GET /api/stats from a Redis-backed cache with a
// short TTL. Cache-Control: max-age=30 on the response is a convenience, not
// a contract — this package is what actually bounds how often the
// aggregate queries behind it run; Redis is strictly a cache here, never a
// system of record, per the shared-resource policy (no in-memory cache of
// user-visible data survives past a single request except this one).
package statscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/moltcities/backend/internal/agents/repository"
	"github.com/moltcities/backend/internal/jobs"
)

const (
	cacheKey = "moltcities:statscache:snapshot"
	ttl      = 30 * time.Second
)

// Snapshot is the aggregate payload served by GET /api/stats.
type Snapshot struct {
	TotalAgents    int64                  `json:"total_agents"`
	JobsByStatus   map[jobs.Status]int    `json:"jobs_by_status"`
	GeneratedAt    time.Time              `json:"generated_at"`
}

// Cache wraps the aggregate queries behind a Redis TTL cache.
type Cache struct {
	redis  *redis.Client
	agents *repository.Repository
	jobs   *jobs.Repository
	logger *zap.Logger
}

// New builds a Cache. redis may be nil, in which case every call recomputes
// the snapshot directly — correct for local development without Redis, just
// without the cache's burst protection.
func New(redisClient *redis.Client, agents *repository.Repository, jobsRepo *jobs.Repository, logger *zap.Logger) *Cache {
	return &Cache{redis: redisClient, agents: agents, jobs: jobsRepo, logger: logger}
}

// Get returns the current snapshot, recomputing it at most once per ttl.
func (c *Cache) Get(ctx context.Context) (*Snapshot, error) {
	if c.redis != nil {
		if raw, err := c.redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var snap Snapshot
			if jsonErr := json.Unmarshal(raw, &snap); jsonErr == nil {
				return &snap, nil
			}
		} else if err != redis.Nil {
			c.logger.Warn("statscache: redis read failed, recomputing", zap.Error(err))
		}
	}

	snap, err := c.compute(ctx)
	if err != nil {
		return nil, err
	}

	if c.redis != nil {
		if raw, err := json.Marshal(snap); err == nil {
			if err := c.redis.Set(ctx, cacheKey, raw, ttl).Err(); err != nil {
				c.logger.Warn("statscache: redis write failed", zap.Error(err))
			}
		}
	}
	return snap, nil
}

func (c *Cache) compute(ctx context.Context) (*Snapshot, error) {
	total, err := c.agents.CountAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("statscache: count agents: %w", err)
	}
	byStatus, err := c.jobs.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("statscache: count jobs by status: %w", err)
	}
	return &Snapshot{
		TotalAgents:  total,
		JobsByStatus: byStatus,
		GeneratedAt:  time.Now().UTC(),
	}, nil
}
