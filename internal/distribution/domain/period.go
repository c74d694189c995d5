package distribution

import (
	"time"

	"github.com/shopspring/decimal"
)

const periodKeyLayout = "2006-01-02"

// PeriodKey identifies one daily distribution period (UTC calendar day).
type PeriodKey string

// NewPeriodKey builds the key for the UTC day containing t.
func NewPeriodKey(t time.Time) (PeriodKey, error) {
	if t.IsZero() {
		return "", ErrInvalidPeriodKey
	}
	return PeriodKey(t.UTC().Format(periodKeyLayout)), nil
}

// ParsePeriodKey validates a raw key.
func ParsePeriodKey(raw string) (PeriodKey, error) {
	t, err := time.Parse(periodKeyLayout, raw)
	if err != nil || t.Format(periodKeyLayout) != raw {
		return "", ErrInvalidPeriodKey
	}
	return PeriodKey(raw), nil
}

// Start returns the period's start instant in UTC.
func (k PeriodKey) Start() time.Time {
	t, err := time.Parse(periodKeyLayout, string(k))
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// String returns the raw string for storage.
func (k PeriodKey) String() string { return string(k) }

// PriceSource records where the reference price came from.
type PriceSource string

const (
	PriceSourceFeed     PriceSource = "feed"
	PriceSourceFallback PriceSource = "fallback"
)

// PeriodState is the per-period summary. It moves once from open to
// committed and is immutable afterwards.
type PeriodState struct {
	Key               PeriodKey
	GrossPool         float64
	ReferencePrice    float64
	PriceSource       PriceSource
	TotalCapacity     float64
	NetworkCapacity   float64
	EntitiesProcessed int
	TotalDistributed  decimal.Decimal
	Root              string
	ClaimToken        string
	ClaimedAt         *time.Time
	CompletedAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Committed reports whether the completion marker is set.
func (p PeriodState) Committed() bool {
	return p.CompletedAt != nil
}

// HasRoot reports whether a commitment root exists. An empty root means no
// proof is available.
func (p PeriodState) HasRoot() bool {
	return p.Root != ""
}

// ClaimLive reports whether the claim is held and younger than lease at now.
func (p PeriodState) ClaimLive(now time.Time, lease time.Duration) bool {
	if p.ClaimedAt == nil || p.ClaimToken == "" {
		return false
	}
	return p.ClaimedAt.Add(lease).After(now)
}

// NetworkState is the external price and capacity snapshot for a run.
type NetworkState struct {
	ReferencePrice  float64
	NetworkCapacity float64
	Source          PriceSource
}

// Valid reports whether the snapshot can be used for cost conversion.
func (n NetworkState) Valid() bool {
	return n.ReferencePrice > 0 && finite(n.ReferencePrice) && finite(n.NetworkCapacity)
}
