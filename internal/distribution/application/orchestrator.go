package application

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rewardpool/internal/commitment"
	distribution "rewardpool/internal/distribution/domain"
	ledger "rewardpool/internal/ledger/domain"
	"rewardpool/internal/observability/metrics"
	pricing "rewardpool/internal/pricing/domain"
)

const (
	defaultWorkers      = 8
	defaultClaimLease   = 15 * time.Minute
	defaultReleaseGrace = 10 * time.Second
	maintenanceDays     = 1
)

func errNilDep(name string) error {
	return errors.New("distribution orchestrator: nil " + name)
}

// Config carries the economic parameters of a run.
type Config struct {
	// DailyPool is the fixed pool in coin units. When zero the pool is the
	// fleet's capacity share of NetworkDailyReward.
	DailyPool          float64
	NetworkDailyReward float64
	Currency           string
	UnitRate           float64
	// Fallback values are used when the network state lookup fails.
	FallbackPrice           float64
	FallbackNetworkCapacity float64
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithWorkers bounds per-miner concurrency.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithClaimLease sets how long a claim blocks other runs before it is
// considered stale.
func WithClaimLease(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.lease = d
		}
	}
}

// WithClock overrides the clock.
func WithClock(clock clockwork.Clock) Option {
	return func(o *Orchestrator) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPublisher sets the commit publisher.
func WithPublisher(publisher CommitPublisher) Option {
	return func(o *Orchestrator) {
		o.publisher = publisher
	}
}

// Orchestrator runs one distribution per period.
type Orchestrator struct {
	periods       distribution.PeriodRepository
	distributions distribution.DistributionRepository
	recorder      distribution.Recorder
	accounts      ledger.Ledger
	inputs        Inputs
	pricing       Pricing
	cfg           Config

	publisher CommitPublisher
	clock     clockwork.Clock
	logger    *zap.Logger
	workers   int
	lease     time.Duration
}

// NewOrchestrator constructs the orchestrator.
func NewOrchestrator(
	periods distribution.PeriodRepository,
	distributions distribution.DistributionRepository,
	recorder distribution.Recorder,
	accounts ledger.Ledger,
	inputs Inputs,
	rates Pricing,
	cfg Config,
	opts ...Option,
) (*Orchestrator, error) {
	if periods == nil {
		return nil, errNilDep("period repository")
	}
	if distributions == nil {
		return nil, errNilDep("distribution repository")
	}
	if recorder == nil {
		return nil, errNilDep("recorder")
	}
	if accounts == nil {
		return nil, errNilDep("ledger")
	}
	if err := inputs.validate(); err != nil {
		return nil, err
	}
	if rates.Calculator == nil {
		return nil, errNilDep("calculator")
	}
	if cfg.Currency == "" {
		return nil, errors.New("distribution orchestrator: empty currency")
	}
	if cfg.FallbackPrice <= 0 {
		return nil, fmt.Errorf("distribution orchestrator: fallback price: %w", distribution.ErrInvalidPrice)
	}

	o := &Orchestrator{
		periods:       periods,
		distributions: distributions,
		recorder:      recorder,
		accounts:      accounts,
		inputs:        inputs,
		pricing:       rates,
		cfg:           cfg,
		clock:         clockwork.NewRealClock(),
		logger:        zap.NewNop(),
		workers:       defaultWorkers,
		lease:         defaultClaimLease,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// RunToday runs the period for the current UTC day.
func (o *Orchestrator) RunToday(ctx context.Context) (Result, error) {
	key, err := distribution.NewPeriodKey(o.clock.Now())
	if err != nil {
		return Result{}, err
	}
	return o.Run(ctx, key)
}

// Run executes the distribution for period. Benign no-ops return a nil
// error with a benign Outcome.
func (o *Orchestrator) Run(ctx context.Context, period distribution.PeriodKey) (Result, error) {
	start := o.clock.Now()
	result, err := o.run(ctx, period)
	if err != nil {
		result.Outcome = OutcomeFailed
	}
	metrics.ObserveRun(string(result.Outcome), o.clock.Since(start))
	metrics.AddEntities(result.EntitiesProcessed, len(result.Skipped))
	return result, err
}

func (o *Orchestrator) run(ctx context.Context, period distribution.PeriodKey) (Result, error) {
	result := Result{Period: period, TotalDistributed: decimal.Zero}
	if _, err := distribution.ParsePeriodKey(period.String()); err != nil {
		return result, err
	}
	logger := o.logger.With(zap.String("period", period.String()))

	token := uuid.NewString()
	if _, err := o.periods.Claim(ctx, period, token, o.clock.Now().UTC(), o.lease); err != nil {
		if errors.Is(err, distribution.ErrAlreadyDistributed) || errors.Is(err, distribution.ErrPeriodInProgress) {
			result.Outcome = OutcomeAlreadyDistributed
			result.Message = "period already distributed or in progress"
			logger.Info("distribution skipped", zap.Error(err))
			return result, nil
		}
		return result, fmt.Errorf("claim period %s: %w", period, err)
	}
	committed := false
	defer func() {
		if !committed {
			o.release(ctx, logger, period, token)
		}
	}()

	miners, err := o.activeMiners(ctx, logger, &result)
	if err != nil {
		return result, err
	}
	if len(miners) == 0 {
		result.Outcome = OutcomeNoActiveEntities
		result.Message = "no active entities"
		logger.Info("distribution skipped: no active entities")
		return result, nil
	}

	network := o.networkState(ctx, logger)
	result.ReferencePrice = network.ReferencePrice
	result.PriceSource = network.Source

	total := distribution.TotalCapacity(miners)
	pool := distribution.GrossPool(o.cfg.DailyPool, o.cfg.NetworkDailyReward, total, network.NetworkCapacity)
	result.GrossPool = pool
	capacities := make([]float64, len(miners))
	for i, m := range miners {
		capacities[i] = m.Capacity
	}
	gross, err := distribution.Allocate(pool, capacities, total)
	if errors.Is(err, distribution.ErrNoCapacity) {
		result.Outcome = OutcomeNoCapacity
		result.Message = "total capacity is zero"
		logger.Info("distribution skipped: no capacity")
		return result, nil
	}
	if err != nil {
		return result, err
	}

	for _, account := range distribution.SystemAccounts(o.cfg.Currency) {
		if _, err := o.accounts.EnsureAccount(ctx, account); err != nil {
			return result, fmt.Errorf("ensure account %s: %w", account.ID, err)
		}
	}

	outcomes := o.process(ctx, logger, period, miners, gross, network)
	if err := ctx.Err(); err != nil {
		return result, err
	}

	included := make([]*distribution.Distribution, 0, len(outcomes))
	for i, out := range outcomes {
		if out.err == nil && out.dist == nil {
			out.err = &ComputationError{MinerID: miners[i].ID, Err: ErrNotProcessed}
		}
		if out.err != nil {
			result.Skipped = append(result.Skipped, SkippedEntity{MinerID: miners[i].ID, Err: out.err})
			logger.Warn("miner skipped", zap.String("miner_id", miners[i].ID), zap.Error(out.err))
			continue
		}
		if out.reused {
			result.Reused++
		}
		included = append(included, out.dist)
		result.TotalDistributed = result.TotalDistributed.Add(out.dist.Net)
	}

	included, err = o.adoptRecorded(ctx, logger, period, included, &result)
	if err != nil {
		return result, err
	}
	hashes := make([]string, len(included))
	for i, d := range included {
		hashes[i] = d.LeafHash
	}

	if len(hashes) == 0 {
		return result, &CommitmentBuildError{Period: period, Err: distribution.ErrEmptyCommitment}
	}
	tree, err := commitment.Build(hashes)
	if err != nil {
		return result, &CommitmentBuildError{Period: period, Err: err}
	}
	proofs := make([]distribution.LeafProof, len(included))
	for i, d := range included {
		proof, err := tree.Proof(i)
		if err != nil {
			return result, &CommitmentBuildError{Period: period, Err: err}
		}
		proofs[i] = distribution.LeafProof{DistributionID: d.ID, MinerID: d.MinerID, Index: i, Proof: proof}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	completedAt := o.clock.Now().UTC()
	err = o.periods.Commit(ctx, distribution.Commit{
		Period:            period,
		ClaimToken:        token,
		GrossPool:         pool,
		ReferencePrice:    network.ReferencePrice,
		PriceSource:       network.Source,
		TotalCapacity:     total,
		NetworkCapacity:   network.NetworkCapacity,
		EntitiesProcessed: len(included),
		TotalDistributed:  result.TotalDistributed,
		Root:              tree.Root(),
		Proofs:            proofs,
		CompletedAt:       completedAt,
	})
	if err != nil {
		return result, fmt.Errorf("commit period %s: %w", period, err)
	}
	committed = true

	result.Outcome = OutcomeCommitted
	result.EntitiesProcessed = len(included)
	result.Root = tree.Root()
	logger.Info("distribution committed",
		zap.Int("entities", result.EntitiesProcessed),
		zap.Int("reused", result.Reused),
		zap.Int("skipped", len(result.Skipped)),
		zap.String("total_distributed", result.TotalDistributed.String()),
		zap.String("root", result.Root),
	)
	o.publish(ctx, logger, result, completedAt)
	return result, nil
}

// adoptRecorded adds rows recorded by an earlier attempt whose miner is no
// longer part of this run. Their ledger legs are already posted, so they
// join the commitment. The result is in leaf order.
func (o *Orchestrator) adoptRecorded(
	ctx context.Context,
	logger *zap.Logger,
	period distribution.PeriodKey,
	included []*distribution.Distribution,
	result *Result,
) ([]*distribution.Distribution, error) {
	recorded, err := o.distributions.ListByPeriod(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("list recorded distributions: %w", err)
	}
	seen := make(map[string]struct{}, len(included))
	for _, d := range included {
		seen[d.MinerID] = struct{}{}
	}
	for i := range recorded {
		d := recorded[i]
		if _, ok := seen[d.MinerID]; ok {
			continue
		}
		seen[d.MinerID] = struct{}{}
		included = append(included, &d)
		result.Reused++
		result.TotalDistributed = result.TotalDistributed.Add(d.Net)
		result.Skipped = dropSkipped(result.Skipped, d.MinerID)
		logger.Warn("recorded distribution adopted for miner outside this run",
			zap.String("miner_id", d.MinerID), zap.String("distribution_id", d.ID))
	}
	sort.Slice(included, func(i, j int) bool { return included[i].MinerID < included[j].MinerID })
	return included, nil
}

func dropSkipped(skipped []SkippedEntity, minerID string) []SkippedEntity {
	out := skipped[:0]
	for _, s := range skipped {
		if s.MinerID != minerID {
			out = append(out, s)
		}
	}
	return out
}

func (o *Orchestrator) activeMiners(ctx context.Context, logger *zap.Logger, result *Result) ([]distribution.Miner, error) {
	listed, err := o.inputs.Miners.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active miners: %w", err)
	}
	miners := make([]distribution.Miner, 0, len(listed))
	for _, m := range listed {
		if m.Status != "" && m.Status != distribution.StatusActive {
			continue
		}
		if err := m.Validate(); err != nil {
			result.Skipped = append(result.Skipped, SkippedEntity{MinerID: m.ID, Err: &ComputationError{MinerID: m.ID, Err: err}})
			logger.Warn("invalid miner skipped", zap.String("miner_id", m.ID), zap.Error(err))
			continue
		}
		miners = append(miners, m)
	}
	distribution.SortMiners(miners)
	return miners, nil
}

func (o *Orchestrator) networkState(ctx context.Context, logger *zap.Logger) distribution.NetworkState {
	state, err := o.inputs.Network.Current(ctx)
	if err == nil && state.Valid() {
		if state.Source == "" {
			state.Source = distribution.PriceSourceFeed
		}
		if state.NetworkCapacity <= 0 {
			state.NetworkCapacity = o.cfg.FallbackNetworkCapacity
		}
		return state
	}
	if err == nil {
		err = distribution.ErrInvalidPrice
	}
	metrics.IncPriceFallback()
	logger.Warn("network state unavailable, using fallback",
		zap.Float64("reference_price", o.cfg.FallbackPrice),
		zap.Float64("network_capacity", o.cfg.FallbackNetworkCapacity),
		zap.Error(err),
	)
	return distribution.NetworkState{
		ReferencePrice:  o.cfg.FallbackPrice,
		NetworkCapacity: o.cfg.FallbackNetworkCapacity,
		Source:          distribution.PriceSourceFallback,
	}
}

type entityOutcome struct {
	dist   *distribution.Distribution
	reused bool
	err    error
}

type ownerDiscount struct {
	ctx pricing.DiscountContext
	err error
}

func (o *Orchestrator) process(
	ctx context.Context,
	logger *zap.Logger,
	period distribution.PeriodKey,
	miners []distribution.Miner,
	gross []float64,
	network distribution.NetworkState,
) []entityOutcome {
	outcomes := make([]entityOutcome, len(miners))
	owners := xsync.NewMap[string, ownerDiscount]()

	pool := pond.NewPool(o.workers)
	defer pool.StopAndWait()
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for i := range miners {
		group.Submit(func() {
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = entityOutcome{err: &ComputationError{MinerID: miners[i].ID, Err: fmt.Errorf("panic: %v", r)}}
				}
			}()
			if err := groupCtx.Err(); err != nil {
				outcomes[i] = entityOutcome{err: err}
				return
			}
			outcomes[i] = o.processMiner(groupCtx, period, miners[i], gross[i], network, owners)
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		logger.Warn("distribution worker group encountered error", zap.Error(err))
	}
	return outcomes
}

func (o *Orchestrator) processMiner(
	ctx context.Context,
	period distribution.PeriodKey,
	miner distribution.Miner,
	gross float64,
	network distribution.NetworkState,
	owners *xsync.Map[string, ownerDiscount],
) entityOutcome {
	existing, err := o.distributions.Find(ctx, period, miner.ID)
	if err != nil && !errors.Is(err, distribution.ErrDistributionNotFound) {
		return entityOutcome{err: &ComputationError{MinerID: miner.ID, Err: err}}
	}
	if existing != nil {
		return entityOutcome{dist: existing, reused: true}
	}

	discount, ok := owners.Load(miner.OwnerID)
	if !ok {
		discount = o.ownerDiscount(ctx, miner.OwnerID, period)
		owners.Store(miner.OwnerID, discount)
	}
	if discount.err != nil {
		return entityOutcome{err: &ComputationError{MinerID: miner.ID, Err: discount.err}}
	}

	d, err := o.compute(period, miner, gross, network, discount.ctx)
	if err != nil {
		return entityOutcome{err: &ComputationError{MinerID: miner.ID, Err: err}}
	}

	if _, err := o.accounts.EnsureAccount(ctx, ledger.NewOwnerAccount(miner.OwnerID, o.cfg.Currency)); err != nil {
		return entityOutcome{err: &LedgerPostError{MinerID: miner.ID, Err: err}}
	}
	stored, created, err := o.recorder.Record(ctx, d, d.Postings(o.cfg.Currency))
	if err != nil {
		return entityOutcome{err: &LedgerPostError{MinerID: miner.ID, Err: err}}
	}
	return entityOutcome{dist: stored, reused: !created}
}

func (o *Orchestrator) ownerDiscount(ctx context.Context, ownerID string, period distribution.PeriodKey) ownerDiscount {
	spend, err := o.inputs.Spend.CumulativeSpend(ctx, ownerID)
	if err != nil {
		return ownerDiscount{err: fmt.Errorf("spend lookup: %w", err)}
	}
	position, err := o.inputs.Locks.Position(ctx, ownerID)
	if err != nil {
		return ownerDiscount{err: fmt.Errorf("lock lookup: %w", err)}
	}
	engaged, err := o.inputs.Engagement.RecentlyEngaged(ctx, ownerID, period.Start())
	if err != nil {
		return ownerDiscount{err: fmt.Errorf("engagement lookup: %w", err)}
	}
	return ownerDiscount{ctx: pricing.DiscountContext{
		TierBps:         o.pricing.Tiers.DiscountBps(spend),
		LockBps:         o.pricing.LockDiscount.Bps(o.pricing.Locks.PositionWeight(position)),
		RecentlyEngaged: engaged,
	}}
}

func (o *Orchestrator) compute(
	period distribution.PeriodKey,
	miner distribution.Miner,
	gross float64,
	network distribution.NetworkState,
	discount pricing.DiscountContext,
) (*distribution.Distribution, error) {
	breakdown, err := o.pricing.Calculator.Maintenance(pricing.CostInput{
		Capacity:          miner.Capacity,
		Efficiency:        miner.Efficiency,
		UnitRate:          o.cfg.UnitRate,
		Days:              maintenanceDays,
		NominalDailyValue: gross * network.ReferencePrice,
		Discount:          discount,
	})
	if err != nil {
		return nil, err
	}
	// Cost is computed in fiat and converted to pool units at the reference price.
	cost := breakdown.FinalCost / network.ReferencePrice
	if math.IsNaN(gross) || math.IsInf(gross, 0) || math.IsNaN(cost) || math.IsInf(cost, 0) {
		return nil, distribution.ErrNonFinite
	}
	amounts := distribution.Split(gross, cost, miner.ReinvestPct, miner.CharityPct).Round(gross, cost)

	d := &distribution.Distribution{
		ID:            uuid.NewString(),
		MinerID:       miner.ID,
		OwnerID:       miner.OwnerID,
		Period:        period,
		Gross:         gross,
		EnergyCost:    breakdown.EnergyCost,
		ServiceFee:    breakdown.ServiceFee,
		DiscountBps:   breakdown.DiscountBps,
		Cost:          cost,
		Net:           amounts.Net,
		OwnerValue:    amounts.Owner,
		ReinvestValue: amounts.Reinvest,
		CharityValue:  amounts.Charity,
		FeeValue:      amounts.Fee,
		CreatedAt:     o.clock.Now().UTC(),
	}
	hash, err := commitment.LeafHash(d.Leaf())
	if err != nil {
		return nil, err
	}
	d.LeafHash = hash
	return d, nil
}

func (o *Orchestrator) release(ctx context.Context, logger *zap.Logger, period distribution.PeriodKey, token string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultReleaseGrace)
	defer cancel()
	if err := o.periods.Release(releaseCtx, period, token); err != nil {
		logger.Error("release claim failed", zap.Error(err))
		return
	}
	logger.Info("claim released")
}

func (o *Orchestrator) publish(ctx context.Context, logger *zap.Logger, result Result, at time.Time) {
	if o.publisher == nil {
		return
	}
	err := o.publisher.PublishPeriodCommitted(ctx, PeriodCommitted{
		Period:            result.Period,
		Root:              result.Root,
		EntitiesProcessed: result.EntitiesProcessed,
		TotalDistributed:  result.TotalDistributed.StringFixed(distribution.AmountPrecision),
		ReferencePrice:    result.ReferencePrice,
		PriceSource:       result.PriceSource,
		OccurredAt:        at,
	})
	if err != nil {
		logger.Warn("publish period committed failed", zap.Error(err))
	}
}
