// Package store holds the small set of helpers every Postgres-backed
// repository in this service shares: unique-constraint-violation detection
// (the Store adapter's uniqueness-upsert contract) and the ErrConflict and
// ErrNoRows sentinels.
package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrConflict is returned by repository Create/Upsert methods when a unique
// constraint was violated — agent-by-public-key, agent-by-wallet,
// site-by-slug, and the pending-registration name race-guard all surface
// through this one sentinel so callers can use errors.Is uniformly.
var ErrConflict = errors.New("store: conflicting row already exists")

// postgres unique_violation SQLSTATE, see
// https://www.postgresql.org/docs/current/errcodes-appendix.html
const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	return false
}

// ErrNoRows is a package-local sentinel for a missing row. No helper in
// this package returns it; the repositories in this service report a
// missing row through their own ErrNotFound sentinels.
var ErrNoRows = errors.New("store: no matching row")
