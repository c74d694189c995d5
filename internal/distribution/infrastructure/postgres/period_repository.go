package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	distribution "rewardpool/internal/distribution/domain"
)

// PeriodRepository persists period states.
type PeriodRepository struct {
	db *sql.DB
}

// NewPeriodRepository constructs a repository.
func NewPeriodRepository(db *sql.DB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

const periodColumns = `period_key, gross_pool, reference_price, price_source, total_capacity, network_capacity,
	entities_processed, total_distributed, root, claim_token, claimed_at, completed_at, created_at, updated_at`

// Claim upserts the period row and takes the claim in one statement. The
// update only applies while completion is unset and any earlier claim is
// older than the lease.
func (r *PeriodRepository) Claim(ctx context.Context, key distribution.PeriodKey, token string, now time.Time, lease time.Duration) (*distribution.PeriodState, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("period repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
INSERT INTO period_states (period_key, claim_token, claimed_at, created_at, updated_at)
VALUES ($1, $2, $3, $3, $3)
ON CONFLICT (period_key) DO UPDATE
SET claim_token = EXCLUDED.claim_token,
	claimed_at = EXCLUDED.claimed_at,
	updated_at = EXCLUDED.updated_at
WHERE period_states.completed_at IS NULL
	AND (period_states.claimed_at IS NULL OR period_states.claim_token IS NULL OR period_states.claimed_at < $4)
RETURNING `+periodColumns, key.String(), token, now.UTC(), now.UTC().Add(-lease))
	state, err := scanPeriod(row)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, distribution.ErrPeriodNotFound) {
		return nil, err
	}

	current, err := r.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if current.Committed() {
		return nil, distribution.ErrAlreadyDistributed
	}
	return nil, distribution.ErrPeriodInProgress
}

// Release clears the claim held by token.
func (r *PeriodRepository) Release(ctx context.Context, key distribution.PeriodKey, token string) error {
	if r == nil || r.db == nil {
		return errors.New("period repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE period_states
SET claim_token = NULL, claimed_at = NULL, updated_at = now()
WHERE period_key = $1 AND claim_token = $2 AND completed_at IS NULL`, key.String(), token)
	if err != nil {
		return err
	}
	return requireAffected(res, distribution.ErrClaimLost)
}

// Commit writes the period summary, every proof and the completion marker in
// one transaction.
func (r *PeriodRepository) Commit(ctx context.Context, commit distribution.Commit) error {
	if r == nil || r.db == nil {
		return errors.New("period repo: nil db")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := commitTx(ctx, tx, commit); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func commitTx(ctx context.Context, tx *sql.Tx, commit distribution.Commit) error {
	res, err := tx.ExecContext(ctx, `
UPDATE period_states
SET gross_pool = $3, reference_price = $4, price_source = $5, total_capacity = $6, network_capacity = $7,
	entities_processed = $8, total_distributed = $9, root = $10, completed_at = $11, updated_at = $11
WHERE period_key = $1 AND claim_token = $2 AND completed_at IS NULL`,
		commit.Period.String(), commit.ClaimToken, commit.GrossPool, commit.ReferencePrice, string(commit.PriceSource),
		commit.TotalCapacity, commit.NetworkCapacity, commit.EntitiesProcessed, commit.TotalDistributed,
		nullableString(commit.Root), commit.CompletedAt.UTC())
	if err != nil {
		return err
	}
	if err := requireAffected(res, distribution.ErrClaimLost); err != nil {
		return err
	}

	for _, p := range commit.Proofs {
		proof, err := json.Marshal(p.Proof)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
UPDATE distributions
SET leaf_index = $1, proof = $2
WHERE id = $3 AND period_key = $4`, p.Index, string(proof), p.DistributionID, commit.Period.String())
		if err != nil {
			return err
		}
		if err := requireAffected(res, distribution.ErrDistributionNotFound); err != nil {
			return err
		}
	}
	return nil
}

// Get loads a period state.
func (r *PeriodRepository) Get(ctx context.Context, key distribution.PeriodKey) (*distribution.PeriodState, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("period repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+periodColumns+` FROM period_states WHERE period_key = $1`, key.String())
	return scanPeriod(row)
}

// ListRecent returns the latest periods, newest first.
func (r *PeriodRepository) ListRecent(ctx context.Context, limit int) ([]distribution.PeriodState, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("period repo: nil db")
	}
	if limit <= 0 {
		limit = 30
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+periodColumns+` FROM period_states ORDER BY period_key DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []distribution.PeriodState
	for rows.Next() {
		state, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *state)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPeriod(row rowScanner) (*distribution.PeriodState, error) {
	var (
		state       distribution.PeriodState
		key         string
		source      string
		total       decimal.Decimal
		root        sql.NullString
		token       sql.NullString
		claimedAt   sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(&key, &state.GrossPool, &state.ReferencePrice, &source, &state.TotalCapacity, &state.NetworkCapacity,
		&state.EntitiesProcessed, &total, &root, &token, &claimedAt, &completedAt, &state.CreatedAt, &state.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, distribution.ErrPeriodNotFound
	}
	if err != nil {
		return nil, err
	}
	state.Key = distribution.PeriodKey(key)
	state.PriceSource = distribution.PriceSource(source)
	state.TotalDistributed = total
	state.Root = root.String
	state.ClaimToken = token.String
	if claimedAt.Valid {
		t := claimedAt.Time.UTC()
		state.ClaimedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		state.CompletedAt = &t
	}
	state.CreatedAt = state.CreatedAt.UTC()
	state.UpdatedAt = state.UpdatedAt.UTC()
	return &state, nil
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullableString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
