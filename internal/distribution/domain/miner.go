package distribution

import (
	"math"
	"sort"
)

// MinerStatus is the lifecycle status of a miner.
type MinerStatus string

const (
	StatusActive     MinerStatus = "active"
	StatusInactive   MinerStatus = "inactive"
	StatusDelinquent MinerStatus = "delinquent"
)

// Miner is a capacity-bearing earning entity. Read-only to distribution.
type Miner struct {
	ID          string
	OwnerID     string
	Capacity    float64
	Efficiency  float64
	Status      MinerStatus
	ReinvestPct float64
	CharityPct  float64
}

// Validate checks the fields distribution depends on.
func (m Miner) Validate() error {
	if m.ID == "" {
		return ErrEmptyMinerID
	}
	if m.OwnerID == "" {
		return ErrEmptyOwnerID
	}
	for _, v := range []float64{m.Capacity, m.Efficiency, m.ReinvestPct, m.CharityPct} {
		if !finite(v) {
			return ErrNonFinite
		}
	}
	if m.Capacity < 0 {
		return ErrNegativeCapacity
	}
	if m.ReinvestPct < 0 || m.CharityPct < 0 || m.ReinvestPct+m.CharityPct > 1 {
		return ErrInvalidSplit
	}
	return nil
}

// SortMiners orders miners by id, which is the leaf order of a run.
func SortMiners(miners []Miner) {
	sort.Slice(miners, func(i, j int) bool { return miners[i].ID < miners[j].ID })
}

// TotalCapacity sums the positive capacities.
func TotalCapacity(miners []Miner) float64 {
	var total float64
	for _, m := range miners {
		if m.Capacity > 0 {
			total += m.Capacity
		}
	}
	return total
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
