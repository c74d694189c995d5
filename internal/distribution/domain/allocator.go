package distribution

import (
	"math"

	"github.com/shopspring/decimal"
)

// AllocationTolerance bounds |Σgross − pool| for a successful allocation.
const AllocationTolerance = 1e-8

// AmountPrecision is the number of decimals carried into ledger postings.
const AmountPrecision = 8

// Allocate returns pool × capacity_i / total for each capacity.
// A non-positive total is an explicit early exit with ErrNoCapacity.
func Allocate(pool float64, capacities []float64, total float64) ([]float64, error) {
	if !finite(pool) || !finite(total) {
		return nil, ErrNonFinite
	}
	if total <= 0 {
		return nil, ErrNoCapacity
	}
	out := make([]float64, len(capacities))
	for i, c := range capacities {
		if !finite(c) {
			return nil, ErrNonFinite
		}
		if c < 0 {
			return nil, ErrNegativeCapacity
		}
		out[i] = pool * (c / total)
	}
	return out, nil
}

// GrossPool returns the pool for a period. A positive fixed pool wins;
// otherwise the fleet earns its capacity share of the network reward.
func GrossPool(fixedPool, networkReward, totalCapacity, networkCapacity float64) float64 {
	if fixedPool > 0 {
		return fixedPool
	}
	if networkReward <= 0 || totalCapacity <= 0 || networkCapacity <= 0 {
		return 0
	}
	return networkReward * math.Min(1, totalCapacity/networkCapacity)
}

// Shares is the split of one entity's net value.
type Shares struct {
	Net      float64
	Owner    float64
	Reinvest float64
	Charity  float64
}

// Split computes net = max(0, gross − cost) and the reinvest / charity /
// owner split of it.
func Split(gross, cost, reinvestPct, charityPct float64) Shares {
	net := math.Max(0, gross-cost)
	reinvest := net * reinvestPct
	charity := net * charityPct
	return Shares{
		Net:      net,
		Owner:    net - reinvest - charity,
		Reinvest: reinvest,
		Charity:  charity,
	}
}

// Amounts are the ledger-precision values of one distribution.
type Amounts struct {
	Net      decimal.Decimal
	Owner    decimal.Decimal
	Reinvest decimal.Decimal
	Charity  decimal.Decimal
	Fee      decimal.Decimal
}

// Round converts shares to fixed precision. Owner absorbs the rounding so
// Owner + Reinvest + Charity == Net exactly. Fee is the collected part of the
// cost, min(gross, cost).
func (s Shares) Round(gross, cost float64) Amounts {
	net := round(s.Net)
	reinvest := round(s.Reinvest)
	charity := round(s.Charity)
	owner := net.Sub(reinvest).Sub(charity)
	if owner.IsNegative() {
		owner = decimal.Zero
		charity = net.Sub(reinvest)
	}
	return Amounts{
		Net:      net,
		Owner:    owner,
		Reinvest: reinvest,
		Charity:  charity,
		Fee:      round(math.Max(0, math.Min(gross, cost))),
	}
}

func round(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(AmountPrecision)
}
