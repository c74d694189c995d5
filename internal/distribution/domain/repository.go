package distribution

import (
	"context"
	"time"

	ledger "rewardpool/internal/ledger/domain"
)

// PeriodRepository owns the PeriodState lifecycle.
type PeriodRepository interface {
	// Claim atomically takes the period for token. It returns
	// ErrAlreadyDistributed when the period is committed and
	// ErrPeriodInProgress when another live claim exists.
	Claim(ctx context.Context, key PeriodKey, token string, now time.Time, lease time.Duration) (*PeriodState, error)
	// Release drops the claim held by token, leaving completion unset.
	Release(ctx context.Context, key PeriodKey, token string) error
	// Commit writes root, proofs and the completion marker in one unit.
	Commit(ctx context.Context, commit Commit) error
	Get(ctx context.Context, key PeriodKey) (*PeriodState, error)
}

// DistributionRepository reads distribution rows.
type DistributionRepository interface {
	Find(ctx context.Context, period PeriodKey, minerID string) (*Distribution, error)
	ListByPeriod(ctx context.Context, period PeriodKey) ([]Distribution, error)
}

// Recorder stores a distribution together with its ledger legs as one unit.
// If a row for (miner, period) already exists it is returned with
// created=false and nothing is posted.
type Recorder interface {
	Record(ctx context.Context, d *Distribution, postings []ledger.Posting) (stored *Distribution, created bool, err error)
}
