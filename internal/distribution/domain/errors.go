package distribution

import "errors"

var (
	// ErrInvalidPeriodKey is returned for keys that are not YYYY-MM-DD.
	ErrInvalidPeriodKey = errors.New("distribution: invalid period key")
	// ErrEmptyMinerID is returned when a miner id is empty.
	ErrEmptyMinerID = errors.New("distribution: empty miner id")
	// ErrEmptyOwnerID is returned when a miner has no owner.
	ErrEmptyOwnerID = errors.New("distribution: empty owner id")
	// ErrInvalidSplit is returned when reinvest/charity fractions are out of range.
	ErrInvalidSplit = errors.New("distribution: invalid split percentages")
	// ErrNegativeCapacity is returned when a capacity is negative.
	ErrNegativeCapacity = errors.New("distribution: negative capacity")
	// ErrNonFinite is returned when a numeric input is NaN or infinite.
	ErrNonFinite = errors.New("distribution: non-finite value")
	// ErrNoCapacity is returned when the period's total capacity is not positive.
	ErrNoCapacity = errors.New("distribution: no capacity")
	// ErrInvalidPrice is returned when the reference price is not positive.
	ErrInvalidPrice = errors.New("distribution: invalid reference price")
	// ErrNilDistribution is returned when recording a nil distribution.
	ErrNilDistribution = errors.New("distribution: nil distribution")
	// ErrPeriodNotFound is returned when a period state is missing.
	ErrPeriodNotFound = errors.New("distribution: period not found")
	// ErrDistributionNotFound is returned when a distribution is missing.
	ErrDistributionNotFound = errors.New("distribution: not found")
	// ErrAlreadyDistributed is returned when the period is already committed.
	ErrAlreadyDistributed = errors.New("distribution: period already distributed")
	// ErrPeriodInProgress is returned when another run holds a live claim.
	ErrPeriodInProgress = errors.New("distribution: period claimed by another run")
	// ErrClaimLost is returned when a commit or release no longer owns the claim.
	ErrClaimLost = errors.New("distribution: claim lost")
	// ErrEmptyCommitment is returned when a run produced no leaves to commit.
	ErrEmptyCommitment = errors.New("distribution: no leaves to commit")
)
