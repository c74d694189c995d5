package application

import (
	"context"
	"time"

	distribution "rewardpool/internal/distribution/domain"
	pricing "rewardpool/internal/pricing/domain"
)

// MinerRegistry lists miners eligible for a run.
type MinerRegistry interface {
	ListActive(ctx context.Context) ([]distribution.Miner, error)
}

// NetworkStateProvider returns the current reference price and network capacity.
type NetworkStateProvider interface {
	Current(ctx context.Context) (distribution.NetworkState, error)
}

// SpendLookup returns an owner's cumulative spend.
type SpendLookup interface {
	CumulativeSpend(ctx context.Context, ownerID string) (float64, error)
}

// LockLookup returns an owner's lock position. Owners without a lock return
// a zero position and no error.
type LockLookup interface {
	Position(ctx context.Context, ownerID string) (pricing.LockPosition, error)
}

// EngagementLookup reports whether an owner engaged recently as of at.
type EngagementLookup interface {
	RecentlyEngaged(ctx context.Context, ownerID string, at time.Time) (bool, error)
}

// Inputs groups the read-only collaborators of a run.
type Inputs struct {
	Miners     MinerRegistry
	Network    NetworkStateProvider
	Spend      SpendLookup
	Locks      LockLookup
	Engagement EngagementLookup
}

func (in Inputs) validate() error {
	switch {
	case in.Miners == nil:
		return errNilDep("miner registry")
	case in.Network == nil:
		return errNilDep("network state provider")
	case in.Spend == nil:
		return errNilDep("spend lookup")
	case in.Locks == nil:
		return errNilDep("lock lookup")
	case in.Engagement == nil:
		return errNilDep("engagement lookup")
	}
	return nil
}

// Pricing groups the rate tables used to compute costs.
type Pricing struct {
	Calculator   *pricing.Calculator
	Tiers        pricing.TierTable
	Locks        pricing.LockMultipliers
	LockDiscount pricing.LockDiscount
}

// PeriodCommitted is emitted after a period's completion marker is set.
type PeriodCommitted struct {
	Period            distribution.PeriodKey
	Root              string
	EntitiesProcessed int
	TotalDistributed  string
	ReferencePrice    float64
	PriceSource       distribution.PriceSource
	OccurredAt        time.Time
}

// CommitPublisher emits PeriodCommitted events.
type CommitPublisher interface {
	PublishPeriodCommitted(ctx context.Context, event PeriodCommitted) error
}
