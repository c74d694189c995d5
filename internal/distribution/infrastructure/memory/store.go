package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	distribution "rewardpool/internal/distribution/domain"
	ledger "rewardpool/internal/ledger/domain"
)

// Store keeps period states and distributions in memory. All period
// transitions happen under one mutex, which makes Claim a single atomic step.
type Store struct {
	mu            sync.Mutex
	periods       map[distribution.PeriodKey]*distribution.PeriodState
	distributions map[string]*distribution.Distribution
	ledger        ledger.Ledger
}

// NewStore constructs a store that posts ledger legs to l.
func NewStore(l ledger.Ledger) (*Store, error) {
	if l == nil {
		return nil, errors.New("distribution store: nil ledger")
	}
	return &Store{
		periods:       make(map[distribution.PeriodKey]*distribution.PeriodState),
		distributions: make(map[string]*distribution.Distribution),
		ledger:        l,
	}, nil
}

func distributionKey(period distribution.PeriodKey, minerID string) string {
	return period.String() + "/" + minerID
}

// Claim takes the period for token when it is not completed and has no live claim.
func (s *Store) Claim(ctx context.Context, key distribution.PeriodKey, token string, now time.Time, lease time.Duration) (*distribution.PeriodState, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.periods[key]
	if !ok {
		state = &distribution.PeriodState{Key: key, CreatedAt: now}
		s.periods[key] = state
	}
	if state.Committed() {
		return nil, distribution.ErrAlreadyDistributed
	}
	if state.ClaimLive(now, lease) {
		return nil, distribution.ErrPeriodInProgress
	}
	claimedAt := now
	state.ClaimToken = token
	state.ClaimedAt = &claimedAt
	state.UpdatedAt = now
	copy := clonePeriod(state)
	return &copy, nil
}

// Release drops the claim held by token.
func (s *Store) Release(ctx context.Context, key distribution.PeriodKey, token string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.periods[key]
	if !ok || state.Committed() || state.ClaimToken != token {
		return distribution.ErrClaimLost
	}
	state.ClaimToken = ""
	state.ClaimedAt = nil
	return nil
}

// Commit attaches root and proofs and sets the completion marker.
func (s *Store) Commit(ctx context.Context, commit distribution.Commit) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.periods[commit.Period]
	if !ok || state.Committed() || state.ClaimToken != commit.ClaimToken {
		return distribution.ErrClaimLost
	}
	for _, p := range commit.Proofs {
		if _, ok := s.distributions[distributionKey(commit.Period, p.MinerID)]; !ok {
			return distribution.ErrDistributionNotFound
		}
	}
	for _, p := range commit.Proofs {
		d := s.distributions[distributionKey(commit.Period, p.MinerID)]
		index := p.Index
		d.LeafIndex = &index
		d.Proof = append([]string(nil), p.Proof...)
	}
	completedAt := commit.CompletedAt
	state.GrossPool = commit.GrossPool
	state.ReferencePrice = commit.ReferencePrice
	state.PriceSource = commit.PriceSource
	state.TotalCapacity = commit.TotalCapacity
	state.NetworkCapacity = commit.NetworkCapacity
	state.EntitiesProcessed = commit.EntitiesProcessed
	state.TotalDistributed = commit.TotalDistributed
	state.Root = commit.Root
	state.CompletedAt = &completedAt
	state.UpdatedAt = completedAt
	return nil
}

// Get returns a period state.
func (s *Store) Get(ctx context.Context, key distribution.PeriodKey) (*distribution.PeriodState, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.periods[key]
	if !ok {
		return nil, distribution.ErrPeriodNotFound
	}
	copy := clonePeriod(state)
	return &copy, nil
}

// ListRecent returns up to limit periods, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]distribution.PeriodState, error) {
	_ = ctx
	if limit <= 0 {
		limit = 30
	}
	s.mu.Lock()
	result := make([]distribution.PeriodState, 0, len(s.periods))
	for _, state := range s.periods {
		result = append(result, clonePeriod(state))
	}
	s.mu.Unlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Key > result[j].Key })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Find returns the distribution for (period, miner), or nil when absent.
func (s *Store) Find(ctx context.Context, period distribution.PeriodKey, minerID string) (*distribution.Distribution, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.distributions[distributionKey(period, minerID)]
	if !ok {
		return nil, nil
	}
	copy := cloneDistribution(d)
	return &copy, nil
}

// ListByPeriod returns the period's distributions ordered by leaf index, then miner id.
func (s *Store) ListByPeriod(ctx context.Context, period distribution.PeriodKey) ([]distribution.Distribution, error) {
	_ = ctx
	s.mu.Lock()
	result := make([]distribution.Distribution, 0)
	for _, d := range s.distributions {
		if d.Period == period {
			result = append(result, cloneDistribution(d))
		}
	}
	s.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.HasProof() && b.HasProof() && *a.LeafIndex != *b.LeafIndex {
			return *a.LeafIndex < *b.LeafIndex
		}
		if a.HasProof() != b.HasProof() {
			return a.HasProof()
		}
		return a.MinerID < b.MinerID
	})
	return result, nil
}

// Record stores d and posts its legs. The row is only stored when the post
// succeeds; an existing row is returned unchanged.
func (s *Store) Record(ctx context.Context, d *distribution.Distribution, postings []ledger.Posting) (*distribution.Distribution, bool, error) {
	if d == nil {
		return nil, false, distribution.ErrNilDistribution
	}
	key := distributionKey(d.Period, d.MinerID)

	// Holding the store lock across the post keeps row and legs one unit.
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.distributions[key]; ok {
		copy := cloneDistribution(existing)
		return &copy, false, nil
	}
	if len(postings) > 0 {
		if _, err := s.ledger.PostAll(ctx, postings); err != nil {
			return nil, false, err
		}
	}
	stored := cloneDistribution(d)
	s.distributions[key] = &stored
	copy := cloneDistribution(&stored)
	return &copy, true, nil
}

func clonePeriod(p *distribution.PeriodState) distribution.PeriodState {
	copy := *p
	if p.ClaimedAt != nil {
		t := *p.ClaimedAt
		copy.ClaimedAt = &t
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		copy.CompletedAt = &t
	}
	return copy
}

func cloneDistribution(d *distribution.Distribution) distribution.Distribution {
	copy := *d
	if d.LeafIndex != nil {
		i := *d.LeafIndex
		copy.LeafIndex = &i
	}
	if d.Proof != nil {
		copy.Proof = append([]string(nil), d.Proof...)
	}
	return copy
}
