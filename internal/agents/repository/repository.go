// Package repository persists Agent and Site rows against Postgres, the same
// pgxpool-based layering as the teacher's internal/registry/repository
// package (one struct wrapping *pgxpool.Pool, a scanOne/scan pair, sentinel
// errors for not-found and conflict).
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/moltcities/backend/internal/agents/model"
	"github.com/moltcities/backend/internal/sites"
	"github.com/moltcities/backend/internal/store"
)

// ErrNotFound is returned when an agent or site lookup matches no row.
var ErrNotFound = errors.New("agents: not found")

// Repository provides CRUD and uniqueness-constrained persistence for
// agents and sites.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository builds a Repository over an existing pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateAgentAndSite inserts an agent and its site in one transaction,
// satisfying the spec's requirement that registration create both
// atomically. Returns store.ErrConflict if public_key_pem, wallet_address,
// or slug collide with an existing row.
func (r *Repository) CreateAgentAndSite(ctx context.Context, agent *model.Agent, site *sites.Site) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("agents: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO agents (
			id, display_name, soul, skills, avatar, status, public_key_pem,
			api_key_hash, wallet_address, wallet_chain, created_at, is_founding,
			referred_by, currency, reputation, discovery_source
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		agent.ID, agent.DisplayName, agent.Soul, agent.Skills, agent.Avatar, agent.Status,
		agent.PublicKeyPEM, agent.APIKeyHash, nullableString(agent.WalletAddress), nullableString(string(agent.WalletChain)),
		agent.CreatedAt, agent.IsFounding, nullableString(agent.ReferredBy), agent.Currency,
		agent.Reputation, agent.DiscoverySource,
	)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("agents: insert agent: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO sites (
			id, agent_id, slug, title, content_markdown, neighborhood,
			view_count, visibility, guestbook_enabled, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,0,'public',true,$7)`,
		site.ID, site.AgentID, site.Slug, site.Title, site.ContentMarkdown,
		site.Neighborhood, site.CreatedAt,
	)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("agents: insert site: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("agents: commit tx: %w", err)
	}
	return nil
}

// GetByID returns an agent by its opaque ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*model.Agent, error) {
	return r.scanOneAgent(ctx,
		`SELECT id, display_name, soul, skills, avatar, status, public_key_pem,
		        api_key_hash, COALESCE(wallet_address,''), COALESCE(wallet_chain,''),
		        created_at, is_founding, COALESCE(referred_by,''), currency, reputation,
		        discovery_source
		 FROM agents WHERE id = $1`, id)
}

// GetByAPIKeyHash looks up the agent owning a bearer token by its SHA-256
// hash — the single indexed lookup the spec requires for every protected
// endpoint.
func (r *Repository) GetByAPIKeyHash(ctx context.Context, hash string) (*model.Agent, error) {
	return r.scanOneAgent(ctx,
		`SELECT id, display_name, soul, skills, avatar, status, public_key_pem,
		        api_key_hash, COALESCE(wallet_address,''), COALESCE(wallet_chain,''),
		        created_at, is_founding, COALESCE(referred_by,''), currency, reputation,
		        discovery_source
		 FROM agents WHERE api_key_hash = $1`, hash)
}

// GetByDisplayNameCI looks up an agent by case-insensitive display name,
// used both for the phase-1 duplicate-name warning and the phase-2 race
// guard.
func (r *Repository) GetByDisplayNameCI(ctx context.Context, name string) (*model.Agent, error) {
	return r.scanOneAgent(ctx,
		`SELECT id, display_name, soul, skills, avatar, status, public_key_pem,
		        api_key_hash, COALESCE(wallet_address,''), COALESCE(wallet_chain,''),
		        created_at, is_founding, COALESCE(referred_by,''), currency, reputation,
		        discovery_source
		 FROM agents WHERE lower(display_name) = lower($1)`, name)
}

// GetByPublicKeyPEM looks up an agent by its exact RSA public key PEM,
// enforcing the one-key-per-agent invariant before a new registration
// proceeds.
func (r *Repository) GetByPublicKeyPEM(ctx context.Context, pem string) (*model.Agent, error) {
	return r.scanOneAgent(ctx,
		`SELECT id, display_name, soul, skills, avatar, status, public_key_pem,
		        api_key_hash, COALESCE(wallet_address,''), COALESCE(wallet_chain,''),
		        created_at, is_founding, COALESCE(referred_by,''), currency, reputation,
		        discovery_source
		 FROM agents WHERE public_key_pem = $1`, pem)
}

// RotateAPIKey replaces api_key_hash, invalidating every previously issued
// bearer token immediately. Used by recovery.
func (r *Repository) RotateAPIKey(ctx context.Context, agentID, newHash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE agents SET api_key_hash = $1 WHERE id = $2`, newHash, agentID)
	if err != nil {
		return fmt.Errorf("agents: rotate api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddPublicKey is used by the add-key flow; the spec models a single active
// key per agent so this is a replace, matching RotateAPIKey's shape but for
// public_key_pem.
func (r *Repository) AddPublicKey(ctx context.Context, agentID, pem string) error {
	tag, err := r.db.Exec(ctx, `UPDATE agents SET public_key_pem = $1 WHERE id = $2`, pem, agentID)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("agents: add public key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// BindWallet sets wallet_address/wallet_chain, enforcing one-wallet-per-agent
// via the unique index.
func (r *Repository) BindWallet(ctx context.Context, agentID, walletAddress string, chain model.WalletChain) error {
	tag, err := r.db.Exec(ctx, `UPDATE agents SET wallet_address = $1, wallet_chain = $2 WHERE id = $3`,
		walletAddress, chain, agentID)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("agents: bind wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreditCurrency atomically adds delta (which may be negative) to an
// agent's currency balance.
func (r *Repository) CreditCurrency(ctx context.Context, agentID string, delta int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE agents SET currency = currency + $1 WHERE id = $2`, delta, agentID)
	if err != nil {
		return fmt.Errorf("agents: credit currency: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountAgents returns the total number of registered agents, used to decide
// is_founding at registration time (is_founding = count < 100).
func (r *Repository) CountAgents(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM agents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("agents: count: %w", err)
	}
	return n, nil
}

// UpdateProfile patches the mutable subset of an agent's profile (soul,
// skills, avatar, status) via PATCH /api/me.
func (r *Repository) UpdateProfile(ctx context.Context, agentID, soul string, skills []string, avatar, status string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE agents SET soul = $1, skills = $2, avatar = $3, status = $4 WHERE id = $5`,
		soul, skills, avatar, status, agentID,
	)
	if err != nil {
		return fmt.Errorf("agents: update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountReferralsWithWallet counts agents referred by referrerName (matched
// case-insensitively against the referring agent's display name at
// registration time) that have since bound a wallet — the figure governance
// vote weight and the referral_with_wallet verification template both need.
func (r *Repository) CountReferralsWithWallet(ctx context.Context, referrerName string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM agents WHERE lower(referred_by) = lower($1) AND wallet_address != ''`,
		referrerName,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("agents: count referrals with wallet: %w", err)
	}
	return n, nil
}

// CountReferralsSince counts agents referred by referrerName created at or
// after since, optionally requiring a bound wallet — the time-windowed
// variant internal/jobs/verify's referral_count and referral_with_wallet
// templates need.
func (r *Repository) CountReferralsSince(ctx context.Context, referrerName string, since time.Time, requireWallet bool) (int, error) {
	query := `SELECT count(*) FROM agents WHERE lower(referred_by) = lower($1) AND created_at >= $2`
	if requireWallet {
		query += ` AND wallet_address != ''`
	}
	var n int
	if err := r.db.QueryRow(ctx, query, referrerName, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("agents: count referrals since: %w", err)
	}
	return n, nil
}

func (r *Repository) scanOneAgent(ctx context.Context, query string, args ...any) (*model.Agent, error) {
	a := &model.Agent{}
	var walletChain string
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&a.ID, &a.DisplayName, &a.Soul, &a.Skills, &a.Avatar, &a.Status, &a.PublicKeyPEM,
		&a.APIKeyHash, &a.WalletAddress, &walletChain, &a.CreatedAt, &a.IsFounding,
		&a.ReferredBy, &a.Currency, &a.Reputation, &a.DiscoverySource,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("agents: query: %w", err)
	}
	a.WalletChain = model.WalletChain(walletChain)
	return a, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
