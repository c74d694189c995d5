package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierLookup_HighestQualifyingTier(t *testing.T) {
	table, err := NewTierTable(DefaultTiers())
	require.NoError(t, err)

	tier, ok := table.Lookup(5000)
	require.True(t, ok)
	assert.Equal(t, 5000.0, tier.MinSpend)
	assert.Equal(t, 500, tier.DiscountBps)

	assert.Equal(t, 500, table.DiscountBps(9999.99))
	assert.Equal(t, 1000, table.DiscountBps(1e9))
	assert.Equal(t, 0, table.DiscountBps(10))
}

func TestTierLookup_UnorderedTableStillPicksClosestFromBelow(t *testing.T) {
	table, err := NewTierTable([]DiscountTier{
		{MinSpend: 1000, DiscountBps: 250},
		{MinSpend: 10000, DiscountBps: 750},
		{MinSpend: 0, DiscountBps: 0},
		{MinSpend: 5000, DiscountBps: 500},
	})
	require.NoError(t, err)

	tier, ok := table.Lookup(5000)
	require.True(t, ok)
	assert.Equal(t, 500, tier.DiscountBps)
}

func TestTierLookup_NoQualifyingTier(t *testing.T) {
	table, err := NewTierTable([]DiscountTier{{MinSpend: 100, DiscountBps: 50}})
	require.NoError(t, err)

	_, ok := table.Lookup(99)
	assert.False(t, ok)
	assert.Zero(t, table.DiscountBps(99))
}

func TestNewTierTable_RejectsInvalid(t *testing.T) {
	_, err := NewTierTable([]DiscountTier{{MinSpend: -1, DiscountBps: 10}})
	assert.ErrorIs(t, err, ErrInvalidTier)

	_, err = NewTierTable([]DiscountTier{{MinSpend: 0, DiscountBps: BasisPoints + 1}})
	assert.ErrorIs(t, err, ErrInvalidTier)
}
