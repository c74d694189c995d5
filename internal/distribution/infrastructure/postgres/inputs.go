package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	distribution "rewardpool/internal/distribution/domain"
	pricing "rewardpool/internal/pricing/domain"
)

// MinerRegistry reads miners.
type MinerRegistry struct {
	db *sql.DB
}

// NewMinerRegistry constructs a registry.
func NewMinerRegistry(db *sql.DB) *MinerRegistry {
	return &MinerRegistry{db: db}
}

// ListActive returns active miners ordered by id.
func (r *MinerRegistry) ListActive(ctx context.Context) ([]distribution.Miner, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("miner registry: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, owner_id, capacity, efficiency, status, reinvest_pct, charity_pct
FROM miners
WHERE status = $1
ORDER BY id ASC`, string(distribution.StatusActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []distribution.Miner
	for rows.Next() {
		var m distribution.Miner
		var status string
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.Capacity, &m.Efficiency, &status, &m.ReinvestPct, &m.CharityPct); err != nil {
			return nil, err
		}
		m.Status = distribution.MinerStatus(status)
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Upsert inserts or updates a miner.
func (r *MinerRegistry) Upsert(ctx context.Context, m distribution.Miner) error {
	if r == nil || r.db == nil {
		return errors.New("miner registry: nil db")
	}
	if err := m.Validate(); err != nil {
		return err
	}
	status := m.Status
	if status == "" {
		status = distribution.StatusActive
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO miners (id, owner_id, capacity, efficiency, status, reinvest_pct, charity_pct, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,now(),now())
ON CONFLICT (id) DO UPDATE
SET owner_id = EXCLUDED.owner_id,
	capacity = EXCLUDED.capacity,
	efficiency = EXCLUDED.efficiency,
	status = EXCLUDED.status,
	reinvest_pct = EXCLUDED.reinvest_pct,
	charity_pct = EXCLUDED.charity_pct,
	updated_at = now()`,
		m.ID, m.OwnerID, m.Capacity, m.Efficiency, string(status), m.ReinvestPct, m.CharityPct)
	return err
}

// OwnerLookups answers spend, lock and engagement lookups.
type OwnerLookups struct {
	db     *sql.DB
	window time.Duration
}

// NewOwnerLookups constructs lookups. An owner counts as recently engaged
// when its last engagement is no older than window before the queried time.
func NewOwnerLookups(db *sql.DB, window time.Duration) *OwnerLookups {
	return &OwnerLookups{db: db, window: window}
}

// CumulativeSpend returns an owner's spend, zero when no row exists.
func (l *OwnerLookups) CumulativeSpend(ctx context.Context, ownerID string) (float64, error) {
	if l == nil || l.db == nil {
		return 0, errors.New("owner lookups: nil db")
	}
	var spend float64
	err := l.db.QueryRowContext(ctx, `SELECT cumulative_spend FROM owner_spend WHERE owner_id = $1`, ownerID).Scan(&spend)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return spend, err
}

// Position returns an owner's lock position, zero when no row exists.
func (l *OwnerLookups) Position(ctx context.Context, ownerID string) (pricing.LockPosition, error) {
	pos := pricing.LockPosition{OwnerID: ownerID}
	if l == nil || l.db == nil {
		return pos, errors.New("owner lookups: nil db")
	}
	err := l.db.QueryRowContext(ctx, `SELECT amount, duration_days FROM lock_positions WHERE owner_id = $1`, ownerID).Scan(&pos.Amount, &pos.DurationDays)
	if errors.Is(err, sql.ErrNoRows) {
		return pos, nil
	}
	return pos, err
}

// RecentlyEngaged reports whether the owner engaged within the window before at.
func (l *OwnerLookups) RecentlyEngaged(ctx context.Context, ownerID string, at time.Time) (bool, error) {
	if l == nil || l.db == nil {
		return false, errors.New("owner lookups: nil db")
	}
	var engaged bool
	err := l.db.QueryRowContext(ctx, `
SELECT EXISTS (
	SELECT 1 FROM owner_engagement
	WHERE owner_id = $1 AND last_engaged_at >= $2
)`, ownerID, at.UTC().Add(-l.window)).Scan(&engaged)
	return engaged, err
}
