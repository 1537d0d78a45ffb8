package governance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moltcities/backend/internal/store"
)

// ErrNotFound is returned when a proposal, dispute, or report lookup
// matches no row.
var ErrNotFound = errors.New("governance: not found")

// Repository persists Proposal/ProposalVote, DisputeVote, and
// Report/ReportVote rows. Dispute records themselves live in
// internal/jobs; this package only reads/updates them through
// internal/jobs.Repository's GetDisputeByID/RecordDisputeVote, never
// owning that table directly.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository builds a Repository over an existing pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const proposalColumns = `id, author_id, title, body, status, votes_support, votes_oppose, voter_count, created_at, voting_ends_at, resolved_at`

func scanProposal(row pgx.Row) (*Proposal, error) {
	p := &Proposal{}
	if err := row.Scan(&p.ID, &p.AuthorID, &p.Title, &p.Body, &p.Status, &p.VotesSupport,
		&p.VotesOppose, &p.VoterCount, &p.CreatedAt, &p.VotingEndsAt, &p.ResolvedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// CreateProposal opens a proposal with a 7-day voting window.
func (r *Repository) CreateProposal(ctx context.Context, p *Proposal) error {
	p.ID = uuid.New().String()
	p.CreatedAt = time.Now().UTC()
	if p.Status == "" {
		p.Status = StatusOpen
	}
	if p.VotingEndsAt.IsZero() {
		p.VotingEndsAt = p.CreatedAt.Add(proposalHardDeadline)
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO governance_proposals (id, author_id, title, body, status, created_at, voting_ends_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.AuthorID, p.Title, p.Body, p.Status, p.CreatedAt, p.VotingEndsAt,
	)
	return err
}

// GetProposalByID loads one proposal.
func (r *Repository) GetProposalByID(ctx context.Context, id string) (*Proposal, error) {
	p, err := scanProposal(r.db.QueryRow(ctx, `SELECT `+proposalColumns+` FROM governance_proposals WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListOpenProposals returns proposals still open for voting, oldest first
// so the auto-resolver sweep processes them in creation order.
func (r *Repository) ListOpenProposals(ctx context.Context) ([]*Proposal, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+proposalColumns+` FROM governance_proposals WHERE status = $1 ORDER BY created_at ASC`,
		StatusOpen,
	)
	if err != nil {
		return nil, fmt.Errorf("governance: list open proposals: %w", err)
	}
	defer rows.Close()

	var out []*Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListProposals returns every proposal, newest first, for the public feed.
func (r *Repository) ListProposals(ctx context.Context, limit int) ([]*Proposal, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+proposalColumns+` FROM governance_proposals ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("governance: list proposals: %w", err)
	}
	defer rows.Close()

	var out []*Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CastProposalVote inserts a weighted ballot and folds it into the
// proposal's running tally in one transaction; the unique index on
// (proposal_id, voter_id) rejects a repeat vote as store.ErrConflict.
func (r *Repository) CastProposalVote(ctx context.Context, v *ProposalVote) error {
	v.CastAt = time.Now().UTC()
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO governance_proposal_votes (proposal_id, voter_id, support, weight, cast_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		v.ProposalID, v.VoterID, v.Support, v.Weight, v.CastAt,
	)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}

	column := "votes_oppose"
	if v.Support {
		column = "votes_support"
	}
	if _, err := tx.Exec(ctx,
		`UPDATE governance_proposals SET `+column+` = `+column+` + $1, voter_count = voter_count + 1 WHERE id = $2`,
		v.Weight, v.ProposalID,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ResolveProposal transitions an open proposal to passed/rejected/resolved.
func (r *Repository) ResolveProposal(ctx context.Context, id string, status Status) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx,
		`UPDATE governance_proposals SET status = $1, resolved_at = $2 WHERE id = $3 AND status = $4`,
		status, now, id, StatusOpen,
	)
	return err
}

// HasVotedOnDispute reports whether voterID already cast a ballot on
// disputeID.
func (r *Repository) HasVotedOnDispute(ctx context.Context, disputeID, voterID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM governance_dispute_votes WHERE dispute_id = $1 AND voter_id = $2)`,
		disputeID, voterID,
	).Scan(&exists)
	return exists, err
}

// CastDisputeVote records one agent's ballot. Callers must have already
// confirmed the voter hasn't voted via HasVotedOnDispute and must fold the
// tally into jobs.JobDispute separately via internal/jobs.Repository's
// RecordDisputeVote — the two tables are owned by different packages, so
// this can't be one transaction without governance importing jobs'
// concrete repository.
func (r *Repository) CastDisputeVote(ctx context.Context, v *DisputeVote) error {
	v.CastAt = time.Now().UTC()
	_, err := r.db.Exec(ctx,
		`INSERT INTO governance_dispute_votes (dispute_id, voter_id, for_worker, weight, stake_tx_sig, cast_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		v.DisputeID, v.VoterID, v.ForWorker, v.Weight, v.StakeTxSig, v.CastAt,
	)
	if store.IsUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

const reportColumns = `id, reported_id, filed_by, reason, status, votes_support, votes_oppose, voter_count, created_at, resolved_at`

func scanReport(row pgx.Row) (*Report, error) {
	rep := &Report{}
	if err := row.Scan(&rep.ID, &rep.ReportedID, &rep.FiledBy, &rep.Reason, &rep.Status, &rep.VotesSupport,
		&rep.VotesOppose, &rep.VoterCount, &rep.CreatedAt, &rep.ResolvedAt); err != nil {
		return nil, err
	}
	return rep, nil
}

// CreateReport files a report against an agent.
func (r *Repository) CreateReport(ctx context.Context, rep *Report) error {
	rep.ID = uuid.New().String()
	rep.CreatedAt = time.Now().UTC()
	if rep.Status == "" {
		rep.Status = StatusOpen
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO governance_reports (id, reported_id, filed_by, reason, status, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		rep.ID, rep.ReportedID, rep.FiledBy, rep.Reason, rep.Status, rep.CreatedAt,
	)
	return err
}

// GetReportByID loads one report.
func (r *Repository) GetReportByID(ctx context.Context, id string) (*Report, error) {
	rep, err := scanReport(r.db.QueryRow(ctx, `SELECT `+reportColumns+` FROM governance_reports WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rep, nil
}

// CastReportVote inserts a weighted ballot and folds it into the report's
// running tally, the same transactional shape as CastProposalVote.
func (r *Repository) CastReportVote(ctx context.Context, v *ReportVote) error {
	v.CastAt = time.Now().UTC()
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO governance_report_votes (report_id, voter_id, support, weight, cast_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		v.ReportID, v.VoterID, v.Support, v.Weight, v.CastAt,
	)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}

	column := "votes_oppose"
	if v.Support {
		column = "votes_support"
	}
	if _, err := tx.Exec(ctx,
		`UPDATE governance_reports SET `+column+` = `+column+` + $1, voter_count = voter_count + 1 WHERE id = $2`,
		v.Weight, v.ReportID,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
