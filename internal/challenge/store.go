package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the narrow persistence interface Service depends on. The
// production implementation is *PostgresStore; tests supply an in-memory
// fake satisfying the same interface, the pattern the teacher's
// challengeStore interface in internal/registry/service/dns_challenge.go
// establishes.
type Store interface {
	Create(ctx context.Context, p *PendingRegistration) error
	GetByID(ctx context.Context, id string) (*PendingRegistration, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// PostgresStore persists PendingRegistration rows in the pending_registrations
// table.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a PostgresStore over an existing pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, p *PendingRegistration) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO pending_registrations
		   (id, subject, public_key_or_wallet, challenge, site_data, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.Subject, p.PublicKeyOrWallet, p.Challenge, p.SiteData, p.CreatedAt, p.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("challenge: insert pending registration: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*PendingRegistration, error) {
	p := &PendingRegistration{ID: id}
	err := s.db.QueryRow(ctx,
		`SELECT subject, public_key_or_wallet, challenge, site_data, created_at, expires_at
		   FROM pending_registrations WHERE id = $1`, id,
	).Scan(&p.Subject, &p.PublicKeyOrWallet, &p.Challenge, &p.SiteData, &p.CreatedAt, &p.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("challenge: get pending registration: %w", err)
	}
	p.Kind, p.AgentID = DecodeSubject(p.Subject)
	return p, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM pending_registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("challenge: delete pending registration: %w", err)
	}
	return nil
}

// DeleteExpired removes every pending registration whose expires_at has
// passed, regardless of kind. Called every sweep tick from cmd/sweeper.
func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM pending_registrations WHERE expires_at < $1`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("challenge: delete expired: %w", err)
	}
	return tag.RowsAffected(), nil
}
