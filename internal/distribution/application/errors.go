package application

import (
	"errors"
	"fmt"

	distribution "rewardpool/internal/distribution/domain"
)

// ErrNotProcessed marks a miner whose worker produced no outcome.
var ErrNotProcessed = errors.New("distribution: miner not processed")

// ComputationError is a per-miner failure while computing a distribution.
// The miner is skipped and the run continues.
type ComputationError struct {
	MinerID string
	Err     error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("compute distribution for miner %s: %v", e.MinerID, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }

// LedgerPostError is a per-miner failure while recording ledger legs.
// Nothing is posted for the miner and it is excluded from the commitment.
type LedgerPostError struct {
	MinerID string
	Err     error
}

func (e *LedgerPostError) Error() string {
	return fmt.Sprintf("post ledger legs for miner %s: %v", e.MinerID, e.Err)
}

func (e *LedgerPostError) Unwrap() error { return e.Err }

// CommitmentBuildError aborts a run before the completion marker is set.
// The period stays retryable.
type CommitmentBuildError struct {
	Period distribution.PeriodKey
	Err    error
}

func (e *CommitmentBuildError) Error() string {
	return fmt.Sprintf("build commitment for period %s: %v", e.Period, e.Err)
}

func (e *CommitmentBuildError) Unwrap() error { return e.Err }
