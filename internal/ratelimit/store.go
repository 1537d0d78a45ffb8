package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// BucketStore increments the hourly bucket identified by (action, actorKey,
// hourEpoch) atomically and returns the new count, satisfying the Store
// adapter's "insert-or-increment atomicity" contract.
type BucketStore interface {
	Increment(ctx context.Context, bucketKey string) (int64, error)
}

// PostgresBucketStore implements BucketStore against the rate_limit_buckets
// table using INSERT ... ON CONFLICT DO UPDATE, the same atomic-upsert idiom
// the Store adapter contract requires for uniqueness constraints elsewhere.
type PostgresBucketStore struct {
	db *pgxpool.Pool
}

// NewPostgresBucketStore builds a PostgresBucketStore over an existing pool.
func NewPostgresBucketStore(db *pgxpool.Pool) *PostgresBucketStore {
	return &PostgresBucketStore{db: db}
}

// Increment atomically inserts or bumps the bucket row for bucketKey and
// returns its new count.
func (s *PostgresBucketStore) Increment(ctx context.Context, bucketKey string) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx,
		`INSERT INTO rate_limit_buckets (bucket_key, count)
		 VALUES ($1, 1)
		 ON CONFLICT (bucket_key) DO UPDATE SET count = rate_limit_buckets.count + 1
		 RETURNING count`,
		bucketKey,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ratelimit: increment bucket: %w", err)
	}
	return count, nil
}

// BucketKey builds the (action, actor_or_ip, floor(now/hour)) key the spec
// describes.
func BucketKey(action Action, actorID string, now time.Time) string {
	hourEpoch := now.UTC().Unix() / 3600
	return fmt.Sprintf("%s:%s:%d", action, actorID, hourEpoch)
}
