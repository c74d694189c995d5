package memory

import (
	"context"
	"sync"
	"time"

	distribution "rewardpool/internal/distribution/domain"
	pricing "rewardpool/internal/pricing/domain"
)

// Directory is an in-memory source for miners and owner lookups.
type Directory struct {
	mu         sync.RWMutex
	miners     map[string]distribution.Miner
	spend      map[string]float64
	locks      map[string]pricing.LockPosition
	engagedAt  map[string]time.Time
	engagement time.Duration
}

// NewDirectory constructs an empty directory. An owner counts as recently
// engaged when its last engagement is within window before the period start.
func NewDirectory(window time.Duration) *Directory {
	return &Directory{
		miners:     make(map[string]distribution.Miner),
		spend:      make(map[string]float64),
		locks:      make(map[string]pricing.LockPosition),
		engagedAt:  make(map[string]time.Time),
		engagement: window,
	}
}

// PutMiner inserts or replaces a miner.
func (d *Directory) PutMiner(m distribution.Miner) {
	d.mu.Lock()
	d.miners[m.ID] = m
	d.mu.Unlock()
}

// SetSpend sets an owner's cumulative spend.
func (d *Directory) SetSpend(ownerID string, spend float64) {
	d.mu.Lock()
	d.spend[ownerID] = spend
	d.mu.Unlock()
}

// SetLock sets an owner's lock position.
func (d *Directory) SetLock(pos pricing.LockPosition) {
	d.mu.Lock()
	d.locks[pos.OwnerID] = pos
	d.mu.Unlock()
}

// SetEngaged records an owner's last engagement time.
func (d *Directory) SetEngaged(ownerID string, at time.Time) {
	d.mu.Lock()
	d.engagedAt[ownerID] = at
	d.mu.Unlock()
}

// ListActive returns active miners.
func (d *Directory) ListActive(ctx context.Context) ([]distribution.Miner, error) {
	_ = ctx
	d.mu.RLock()
	defer d.mu.RUnlock()
	result := make([]distribution.Miner, 0, len(d.miners))
	for _, m := range d.miners {
		if m.Status == distribution.StatusActive {
			result = append(result, m)
		}
	}
	distribution.SortMiners(result)
	return result, nil
}

// CumulativeSpend returns the owner's spend, zero when unknown.
func (d *Directory) CumulativeSpend(ctx context.Context, ownerID string) (float64, error) {
	_ = ctx
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.spend[ownerID], nil
}

// Position returns the owner's lock position, zero when unknown.
func (d *Directory) Position(ctx context.Context, ownerID string) (pricing.LockPosition, error) {
	_ = ctx
	d.mu.RLock()
	defer d.mu.RUnlock()
	pos, ok := d.locks[ownerID]
	if !ok {
		return pricing.LockPosition{OwnerID: ownerID}, nil
	}
	return pos, nil
}

// RecentlyEngaged reports whether the owner's last engagement is no older
// than the window before at.
func (d *Directory) RecentlyEngaged(ctx context.Context, ownerID string, at time.Time) (bool, error) {
	_ = ctx
	d.mu.RLock()
	defer d.mu.RUnlock()
	last, ok := d.engagedAt[ownerID]
	if !ok {
		return false, nil
	}
	return !last.Before(at.Add(-d.engagement)), nil
}
