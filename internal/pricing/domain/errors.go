package pricing

import "errors"

var (
	// ErrInvalidDays is returned when the billed day count is not positive.
	ErrInvalidDays = errors.New("pricing: invalid day count")
	// ErrNegativeRate is returned when a unit rate or fee rate is negative.
	ErrNegativeRate = errors.New("pricing: negative rate")
	// ErrInvalidTier is returned when a discount tier is malformed.
	ErrInvalidTier = errors.New("pricing: invalid discount tier")
	// ErrInvalidLockStep is returned when a lock multiplier step is malformed.
	ErrInvalidLockStep = errors.New("pricing: invalid lock step")
	// ErrInvalidDiscountCap is returned when the discount cap is out of range.
	ErrInvalidDiscountCap = errors.New("pricing: invalid discount cap")
)
