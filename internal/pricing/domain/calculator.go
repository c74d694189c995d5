package pricing

import "math"

const (
	// BasisPoints is the denominator for all bps rates.
	BasisPoints = 10000

	// MaxDiscountBps caps the combined spend, lock and engagement discount.
	// Two historical fee formulas used 2000 and 3800; 2000 is authoritative here.
	MaxDiscountBps = 2000

	// DefaultServiceFeeBps is charged on the nominal daily value per day.
	DefaultServiceFeeBps = 500

	// DefaultEngagementBonusBps is granted to owners with recent engagement.
	DefaultEngagementBonusBps = 200

	hoursPerDay = 24
	wattsPerKW  = 1000
)

// DiscountContext carries the three discount sources for one owner.
type DiscountContext struct {
	TierBps         int
	LockBps         int
	RecentlyEngaged bool
}

// CostInput is the per-miner input of a maintenance calculation.
type CostInput struct {
	// Capacity in TH/s.
	Capacity float64
	// Efficiency in W per TH/s.
	Efficiency float64
	// UnitRate is the regional price per kWh.
	UnitRate float64
	Days     int
	// NominalDailyValue is the miner's gross reward for one day in fee currency.
	NominalDailyValue float64
	Discount          DiscountContext
}

// CostBreakdown is the result of a maintenance calculation.
type CostBreakdown struct {
	EnergyKWh   float64
	EnergyCost  float64
	ServiceFee  float64
	DiscountBps int
	FinalCost   float64
}

// Calculator computes maintenance cost and discounts.
type Calculator struct {
	serviceFeeBps      int
	engagementBonusBps int
	maxDiscountBps     int
}

// CalculatorOption configures the calculator.
type CalculatorOption func(*Calculator)

// WithServiceFeeBps overrides the service fee rate.
func WithServiceFeeBps(bps int) CalculatorOption {
	return func(c *Calculator) {
		c.serviceFeeBps = bps
	}
}

// WithEngagementBonusBps overrides the engagement bonus.
func WithEngagementBonusBps(bps int) CalculatorOption {
	return func(c *Calculator) {
		c.engagementBonusBps = bps
	}
}

// WithMaxDiscountBps overrides the combined discount cap.
func WithMaxDiscountBps(bps int) CalculatorOption {
	return func(c *Calculator) {
		c.maxDiscountBps = bps
	}
}

// NewCalculator constructs a calculator with defaults.
func NewCalculator(opts ...CalculatorOption) (*Calculator, error) {
	c := &Calculator{
		serviceFeeBps:      DefaultServiceFeeBps,
		engagementBonusBps: DefaultEngagementBonusBps,
		maxDiscountBps:     MaxDiscountBps,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.serviceFeeBps < 0 || c.engagementBonusBps < 0 {
		return nil, ErrNegativeRate
	}
	if c.maxDiscountBps < 0 || c.maxDiscountBps > BasisPoints {
		return nil, ErrInvalidDiscountCap
	}
	return c, nil
}

// MaxDiscount returns the configured discount cap in bps.
func (c *Calculator) MaxDiscount() int { return c.maxDiscountBps }

// CombinedDiscountBps sums the discount sources and clamps to [0, cap].
func (c *Calculator) CombinedDiscountBps(d DiscountContext) int {
	total := nonNegative(d.TierBps) + nonNegative(d.LockBps)
	if d.RecentlyEngaged {
		total += c.engagementBonusBps
	}
	if total > c.maxDiscountBps {
		return c.maxDiscountBps
	}
	return total
}

// Maintenance computes energy cost, service fee and the discounted final cost.
func (c *Calculator) Maintenance(in CostInput) (CostBreakdown, error) {
	if in.Days <= 0 {
		return CostBreakdown{}, ErrInvalidDays
	}
	if in.UnitRate < 0 {
		return CostBreakdown{}, ErrNegativeRate
	}
	if in.Capacity <= 0 {
		return CostBreakdown{}, nil
	}

	days := float64(in.Days)
	energyKWh := in.Capacity * math.Max(in.Efficiency, 0) * hoursPerDay * days / wattsPerKW
	energyCost := energyKWh * in.UnitRate
	serviceFee := math.Max(in.NominalDailyValue, 0) * float64(c.serviceFeeBps) / BasisPoints * days

	discount := c.CombinedDiscountBps(in.Discount)
	final := (energyCost + serviceFee) * (1 - float64(discount)/BasisPoints)

	return CostBreakdown{
		EnergyKWh:   energyKWh,
		EnergyCost:  energyCost,
		ServiceFee:  serviceFee,
		DiscountBps: discount,
		FinalCost:   final,
	}, nil
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
