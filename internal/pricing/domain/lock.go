package pricing

import "math"

// LockPosition is an owner's locked amount and lock duration.
type LockPosition struct {
	OwnerID      string
	Amount       float64
	DurationDays int
}

// LockStep maps a minimum lock duration to a weight multiplier.
type LockStep struct {
	MinDays    int     `yaml:"min_days" json:"min_days"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
}

// LockMultipliers is a step table of lock multipliers.
type LockMultipliers struct {
	steps []LockStep
}

// DefaultLockSteps is the built-in lock multiplier table.
func DefaultLockSteps() []LockStep {
	return []LockStep{
		{MinDays: 0, Multiplier: 1.0},
		{MinDays: 30, Multiplier: 1.1},
		{MinDays: 90, Multiplier: 1.25},
		{MinDays: 180, Multiplier: 1.5},
		{MinDays: 365, Multiplier: 2.0},
	}
}

// NewLockMultipliers validates the step table.
func NewLockMultipliers(steps []LockStep) (LockMultipliers, error) {
	copied := make([]LockStep, 0, len(steps))
	for _, step := range steps {
		if step.MinDays < 0 || step.Multiplier < 0 {
			return LockMultipliers{}, ErrInvalidLockStep
		}
		copied = append(copied, step)
	}
	return LockMultipliers{steps: copied}, nil
}

// Multiplier returns the multiplier of the longest qualifying step, 0 if none.
func (m LockMultipliers) Multiplier(days int) float64 {
	bestDays := -1
	multiplier := 0.0
	for _, step := range m.steps {
		if step.MinDays <= days && step.MinDays > bestDays {
			bestDays = step.MinDays
			multiplier = step.Multiplier
		}
	}
	return multiplier
}

// Weight returns amount times the duration multiplier.
func (m LockMultipliers) Weight(amount float64, days int) float64 {
	if amount <= 0 || days < 0 {
		return 0
	}
	return amount * m.Multiplier(days)
}

// PositionWeight returns the weight of a lock position.
func (m LockMultipliers) PositionWeight(pos LockPosition) float64 {
	return m.Weight(pos.Amount, pos.DurationDays)
}

// LockDiscount converts lock weight to discount bps proportionally.
type LockDiscount struct {
	WeightUnit float64 `yaml:"weight_unit"`
	BpsPerUnit int     `yaml:"bps_per_unit"`
	MaxBps     int     `yaml:"max_bps"`
}

// DefaultLockDiscount grants 100 bps per 1000 weight up to 1000 bps.
func DefaultLockDiscount() LockDiscount {
	return LockDiscount{WeightUnit: 1000, BpsPerUnit: 100, MaxBps: 1000}
}

// Bps returns the discount for a lock weight.
func (d LockDiscount) Bps(weight float64) int {
	if weight <= 0 || d.WeightUnit <= 0 || d.BpsPerUnit <= 0 {
		return 0
	}
	bps := int(math.Floor(weight / d.WeightUnit * float64(d.BpsPerUnit)))
	if d.MaxBps > 0 && bps > d.MaxBps {
		return d.MaxBps
	}
	return bps
}
