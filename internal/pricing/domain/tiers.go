package pricing

import "sort"

// DiscountTier is a spend threshold and its discount.
type DiscountTier struct {
	MinSpend    float64 `yaml:"min_spend" json:"min_spend"`
	DiscountBps int     `yaml:"discount_bps" json:"discount_bps"`
}

// TierTable is a read-only spend tier table.
type TierTable struct {
	tiers []DiscountTier
}

// DefaultTiers is the built-in spend tier table.
func DefaultTiers() []DiscountTier {
	return []DiscountTier{
		{MinSpend: 0, DiscountBps: 0},
		{MinSpend: 1000, DiscountBps: 250},
		{MinSpend: 5000, DiscountBps: 500},
		{MinSpend: 10000, DiscountBps: 750},
		{MinSpend: 25000, DiscountBps: 1000},
	}
}

// NewTierTable validates and copies tiers.
func NewTierTable(tiers []DiscountTier) (TierTable, error) {
	copied := make([]DiscountTier, 0, len(tiers))
	for _, tier := range tiers {
		if tier.MinSpend < 0 || tier.DiscountBps < 0 || tier.DiscountBps > BasisPoints {
			return TierTable{}, ErrInvalidTier
		}
		copied = append(copied, tier)
	}
	sort.SliceStable(copied, func(i, j int) bool { return copied[i].MinSpend < copied[j].MinSpend })
	return TierTable{tiers: copied}, nil
}

// Lookup returns the qualifying tier with the highest minimum spend.
// The whole table is scanned; the first match is not taken.
func (t TierTable) Lookup(spend float64) (DiscountTier, bool) {
	var best DiscountTier
	found := false
	for _, tier := range t.tiers {
		if tier.MinSpend > spend {
			continue
		}
		if !found || tier.MinSpend > best.MinSpend {
			best = tier
			found = true
		}
	}
	return best, found
}

// DiscountBps returns the tier discount for a cumulative spend, 0 if none qualifies.
func (t TierTable) DiscountBps(spend float64) int {
	tier, ok := t.Lookup(spend)
	if !ok {
		return 0
	}
	return tier.DiscountBps
}

// Tiers returns a copy of the table.
func (t TierTable) Tiers() []DiscountTier {
	out := make([]DiscountTier, len(t.tiers))
	copy(out, t.tiers)
	return out
}
