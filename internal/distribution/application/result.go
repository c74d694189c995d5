package application

import (
	"github.com/shopspring/decimal"

	distribution "rewardpool/internal/distribution/domain"
)

// Outcome is the terminal state of a run.
type Outcome string

const (
	OutcomeCommitted          Outcome = "committed"
	OutcomeAlreadyDistributed Outcome = "already_distributed"
	OutcomeNoActiveEntities   Outcome = "no_active_entities"
	OutcomeNoCapacity         Outcome = "no_capacity"
	OutcomeFailed             Outcome = "failed"
)

// SkippedEntity records a miner left out of a run.
type SkippedEntity struct {
	MinerID string
	Err     error
}

// Result summarizes one run.
type Result struct {
	Outcome           Outcome
	Period            distribution.PeriodKey
	EntitiesProcessed int
	Reused            int
	Skipped           []SkippedEntity
	TotalDistributed  decimal.Decimal
	GrossPool         float64
	ReferencePrice    float64
	PriceSource       distribution.PriceSource
	Root              string
	Message           string
}

// Benign reports whether the run was a no-op rather than a commit.
func (r Result) Benign() bool {
	switch r.Outcome {
	case OutcomeAlreadyDistributed, OutcomeNoActiveEntities, OutcomeNoCapacity:
		return true
	}
	return false
}
