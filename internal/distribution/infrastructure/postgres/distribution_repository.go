package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	distribution "rewardpool/internal/distribution/domain"
	ledger "rewardpool/internal/ledger/domain"
	ledgerpostgres "rewardpool/internal/ledger/infrastructure/postgres"
)

// DistributionRepository persists distributions and records their ledger
// legs in the same transaction.
type DistributionRepository struct {
	db     *sql.DB
	ledger *ledgerpostgres.Ledger
}

// NewDistributionRepository constructs a repository.
func NewDistributionRepository(db *sql.DB, l *ledgerpostgres.Ledger) *DistributionRepository {
	return &DistributionRepository{db: db, ledger: l}
}

const distributionColumns = `id, miner_id, owner_id, period_key, gross, energy_cost, service_fee, discount_bps, cost,
	net, owner_value, reinvest_value, charity_value, fee_value, leaf_hash, leaf_index, proof, created_at`

// Record inserts d and posts its legs atomically. A conflicting row for
// (miner, period) is returned with created=false and nothing is posted.
func (r *DistributionRepository) Record(ctx context.Context, d *distribution.Distribution, postings []ledger.Posting) (*distribution.Distribution, bool, error) {
	if r == nil || r.db == nil {
		return nil, false, errors.New("distribution repo: nil db")
	}
	if r.ledger == nil {
		return nil, false, errors.New("distribution repo: nil ledger")
	}
	if d == nil {
		return nil, false, distribution.ErrNilDistribution
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	res, err := tx.ExecContext(ctx, `
INSERT INTO distributions (
	id, miner_id, owner_id, period_key, gross, energy_cost, service_fee, discount_bps, cost,
	net, owner_value, reinvest_value, charity_value, fee_value, leaf_hash, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
)
ON CONFLICT (miner_id, period_key) DO NOTHING`,
		d.ID, d.MinerID, d.OwnerID, d.Period.String(), d.Gross, d.EnergyCost, d.ServiceFee, d.DiscountBps, d.Cost,
		d.Net, d.OwnerValue, d.ReinvestValue, d.CharityValue, d.FeeValue, d.LeafHash, d.CreatedAt.UTC())
	if err != nil {
		_ = tx.Rollback()
		return nil, false, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return nil, false, err
	}
	if inserted == 0 {
		_ = tx.Rollback()
		existing, err := r.Find(ctx, d.Period, d.MinerID)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, distribution.ErrDistributionNotFound
		}
		return existing, false, nil
	}

	if len(postings) > 0 {
		if _, err := r.ledger.PostAllTx(ctx, tx, postings); err != nil {
			_ = tx.Rollback()
			return nil, false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	stored := *d
	return &stored, true, nil
}

// Find returns the distribution for (period, miner), or nil when absent.
func (r *DistributionRepository) Find(ctx context.Context, period distribution.PeriodKey, minerID string) (*distribution.Distribution, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("distribution repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+distributionColumns+`
FROM distributions
WHERE period_key = $1 AND miner_id = $2`, period.String(), minerID)
	d, err := scanDistribution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

// ListByPeriod returns the period's distributions in leaf order.
func (r *DistributionRepository) ListByPeriod(ctx context.Context, period distribution.PeriodKey) ([]distribution.Distribution, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("distribution repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+distributionColumns+`
FROM distributions
WHERE period_key = $1
ORDER BY leaf_index ASC NULLS LAST, miner_id ASC`, period.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]distribution.Distribution, 0)
	for rows.Next() {
		d, err := scanDistribution(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanDistribution(row rowScanner) (*distribution.Distribution, error) {
	var (
		d         distribution.Distribution
		period    string
		leafIndex sql.NullInt64
		proof     []byte
	)
	err := row.Scan(&d.ID, &d.MinerID, &d.OwnerID, &period, &d.Gross, &d.EnergyCost, &d.ServiceFee, &d.DiscountBps, &d.Cost,
		&d.Net, &d.OwnerValue, &d.ReinvestValue, &d.CharityValue, &d.FeeValue, &d.LeafHash, &leafIndex, &proof, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	d.Period = distribution.PeriodKey(period)
	if leafIndex.Valid {
		i := int(leafIndex.Int64)
		d.LeafIndex = &i
	}
	if len(proof) > 0 {
		if err := json.Unmarshal(proof, &d.Proof); err != nil {
			return nil, err
		}
	}
	d.CreatedAt = d.CreatedAt.UTC()
	return &d, nil
}
