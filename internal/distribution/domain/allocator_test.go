package distribution

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocate_TwoMinerExample(t *testing.T) {
	gross, err := Allocate(0.5, []float64{100, 300}, 400)
	require.NoError(t, err)
	assert.InDelta(t, 0.125, gross[0], 1e-12)
	assert.InDelta(t, 0.375, gross[1], 1e-12)

	shares := Split(gross[0], 0, 0, 0)
	assert.InDelta(t, 0.125, shares.Net, 1e-12)
	assert.InDelta(t, 0.125, shares.Owner, 1e-12)
}

func TestAllocate_SumWithinTolerance(t *testing.T) {
	capacities := make([]float64, 0, 997)
	var total float64
	for i := 1; i <= 997; i++ {
		c := float64(i%37)*13.7 + 0.3
		capacities = append(capacities, c)
		total += c
	}
	for _, pool := range []float64{0.5, 3.125, 6.25, 1234.56789} {
		gross, err := Allocate(pool, capacities, total)
		require.NoError(t, err)
		var sum float64
		for i, g := range gross {
			assert.InDelta(t, pool*capacities[i]/total, g, 1e-12)
			sum += g
		}
		assert.LessOrEqual(t, math.Abs(sum-pool), AllocationTolerance)
	}
}

func TestAllocate_Deterministic(t *testing.T) {
	a, err := Allocate(6.25, []float64{1, 2, 3}, 6)
	require.NoError(t, err)
	b, err := Allocate(6.25, []float64{1, 2, 3}, 6)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestAllocate_NoCapacity(t *testing.T) {
	_, err := Allocate(1, []float64{0, 0}, 0)
	assert.ErrorIs(t, err, ErrNoCapacity)
	_, err = Allocate(1, nil, -1)
	assert.ErrorIs(t, err, ErrNoCapacity)
	_, err = Allocate(1, []float64{-1, 2}, 1)
	assert.ErrorIs(t, err, ErrNegativeCapacity)
}

func TestAllocate_RejectsNonFinite(t *testing.T) {
	_, err := Allocate(math.NaN(), []float64{1}, 1)
	assert.ErrorIs(t, err, ErrNonFinite)
	_, err = Allocate(1, []float64{1, math.NaN()}, 1)
	assert.ErrorIs(t, err, ErrNonFinite)
	_, err = Allocate(1, []float64{1, math.Inf(1)}, math.Inf(1))
	assert.ErrorIs(t, err, ErrNonFinite)
}

func TestSplit(t *testing.T) {
	s := Split(1.0, 0.2, 0.25, 0.1)
	assert.InDelta(t, 0.8, s.Net, 1e-12)
	assert.InDelta(t, 0.2, s.Reinvest, 1e-12)
	assert.InDelta(t, 0.08, s.Charity, 1e-12)
	assert.InDelta(t, 0.52, s.Owner, 1e-12)

	s = Split(0.1, 0.3, 0.5, 0.5)
	assert.Zero(t, s.Net)
	assert.Zero(t, s.Owner)
}

func TestShares_RoundKeepsNetExact(t *testing.T) {
	s := Split(1.0/3.0, 0, 1.0/3.0, 1.0/3.0)
	a := s.Round(1.0/3.0, 0)
	assert.True(t, a.Owner.Add(a.Reinvest).Add(a.Charity).Equal(a.Net))
	assert.Equal(t, "0.33333333", a.Net.StringFixed(8))
	assert.True(t, a.Fee.IsZero())

	a = Split(0.1, 0.3, 0, 0).Round(0.1, 0.3)
	assert.True(t, a.Net.IsZero())
	assert.True(t, a.Fee.Equal(decimal.RequireFromString("0.1")))
}

func TestGrossPool(t *testing.T) {
	assert.Equal(t, 0.5, GrossPool(0.5, 900, 10, 100))
	assert.InDelta(t, 90.0, GrossPool(0, 900, 10, 100), 1e-12)
	assert.InDelta(t, 900.0, GrossPool(0, 900, 1000, 100), 1e-12)
	assert.Zero(t, GrossPool(0, 900, 10, 0))
}
