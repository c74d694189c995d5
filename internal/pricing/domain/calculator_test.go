package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaintenance_EnergyServiceAndDiscount(t *testing.T) {
	calc, err := NewCalculator()
	require.NoError(t, err)

	got, err := calc.Maintenance(CostInput{
		Capacity:          100,
		Efficiency:        30,
		UnitRate:          0.1,
		Days:              1,
		NominalDailyValue: 100,
		Discount:          DiscountContext{TierBps: 500, LockBps: 1000, RecentlyEngaged: true},
	})
	require.NoError(t, err)

	assert.InDelta(t, 72, got.EnergyKWh, 1e-9)
	assert.InDelta(t, 7.2, got.EnergyCost, 1e-9)
	assert.InDelta(t, 5, got.ServiceFee, 1e-9)
	assert.Equal(t, 1700, got.DiscountBps)
	assert.InDelta(t, 12.2*0.83, got.FinalCost, 1e-9)
}

func TestMaintenance_MultipleDays(t *testing.T) {
	calc, err := NewCalculator(WithServiceFeeBps(1000))
	require.NoError(t, err)

	got, err := calc.Maintenance(CostInput{Capacity: 10, Efficiency: 25, UnitRate: 0.2, Days: 3, NominalDailyValue: 50})
	require.NoError(t, err)

	assert.InDelta(t, 10*25*24*3/1000.0*0.2, got.EnergyCost, 1e-9)
	assert.InDelta(t, 15, got.ServiceFee, 1e-9)
	assert.Zero(t, got.DiscountBps)
	assert.InDelta(t, got.EnergyCost+got.ServiceFee, got.FinalCost, 1e-9)
}

func TestMaintenance_ZeroCapacityCostsNothing(t *testing.T) {
	calc, err := NewCalculator()
	require.NoError(t, err)

	for _, capacity := range []float64{0, -5} {
		got, err := calc.Maintenance(CostInput{Capacity: capacity, Efficiency: 30, UnitRate: 0.1, Days: 1, NominalDailyValue: 100})
		require.NoError(t, err)
		assert.Equal(t, CostBreakdown{}, got)
	}
}

func TestMaintenance_RejectsBadInput(t *testing.T) {
	calc, err := NewCalculator()
	require.NoError(t, err)

	_, err = calc.Maintenance(CostInput{Capacity: 1, Days: 0})
	assert.ErrorIs(t, err, ErrInvalidDays)

	_, err = calc.Maintenance(CostInput{Capacity: 1, Days: 1, UnitRate: -1})
	assert.ErrorIs(t, err, ErrNegativeRate)
}

func TestCombinedDiscount_NeverNegativeNeverAboveCap(t *testing.T) {
	calc, err := NewCalculator()
	require.NoError(t, err)

	for tier := -1000; tier <= 4000; tier += 250 {
		for lock := -1000; lock <= 4000; lock += 250 {
			for _, engaged := range []bool{false, true} {
				got := calc.CombinedDiscountBps(DiscountContext{TierBps: tier, LockBps: lock, RecentlyEngaged: engaged})
				require.GreaterOrEqual(t, got, 0, "tier=%d lock=%d engaged=%v", tier, lock, engaged)
				require.LessOrEqual(t, got, MaxDiscountBps, "tier=%d lock=%d engaged=%v", tier, lock, engaged)
			}
		}
	}
}

func TestCombinedDiscount_CapApplied(t *testing.T) {
	calc, err := NewCalculator()
	require.NoError(t, err)

	assert.Equal(t, MaxDiscountBps, calc.CombinedDiscountBps(DiscountContext{TierBps: 1500, LockBps: 1000, RecentlyEngaged: true}))
	assert.Equal(t, 1200, calc.CombinedDiscountBps(DiscountContext{TierBps: 1000, RecentlyEngaged: true}))
}

func TestNewCalculator_ValidatesOptions(t *testing.T) {
	_, err := NewCalculator(WithServiceFeeBps(-1))
	assert.ErrorIs(t, err, ErrNegativeRate)

	_, err = NewCalculator(WithMaxDiscountBps(BasisPoints + 1))
	assert.ErrorIs(t, err, ErrInvalidDiscountCap)

	calc, err := NewCalculator(WithMaxDiscountBps(3800))
	require.NoError(t, err)
	assert.Equal(t, 3800, calc.MaxDiscount())
}
