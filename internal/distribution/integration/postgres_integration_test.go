package integration_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"rewardpool/internal/commitment"
	"rewardpool/internal/distribution/adapters/network"
	"rewardpool/internal/distribution/application"
	distribution "rewardpool/internal/distribution/domain"
	distributionpostgres "rewardpool/internal/distribution/infrastructure/postgres"
	ledger "rewardpool/internal/ledger/domain"
	ledgerpostgres "rewardpool/internal/ledger/infrastructure/postgres"
	"rewardpool/internal/platform/postgres"
	pricing "rewardpool/internal/pricing/domain"
)

const testCurrency = "ITEST"

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	ctx := context.Background()
	db, err := postgres.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, postgres.Migrate(ctx, db, zaptest.NewLogger(t)))

	// The registry lists every active miner, so the run owns the input tables.
	statements := []string{
		`DELETE FROM distributions WHERE period_key IN ('2026-01-20', '2026-01-21')`,
		`DELETE FROM period_states WHERE period_key IN ('2026-01-20', '2026-01-21')`,
		`DELETE FROM ledger_entries WHERE account_id LIKE '%:` + testCurrency + `'`,
		`DELETE FROM ledger_accounts WHERE currency = '` + testCurrency + `'`,
		`TRUNCATE miners, owner_spend, lock_positions, owner_engagement`,
	}
	for _, stmt := range statements {
		_, err = db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	return db
}

func newOrchestrator(t *testing.T, db *sql.DB, clock clockwork.Clock) *application.Orchestrator {
	t.Helper()
	l := ledgerpostgres.NewLedger(db, ledgerpostgres.WithClock(clock))
	distributions := distributionpostgres.NewDistributionRepository(db, l)
	lookups := distributionpostgres.NewOwnerLookups(db, 30*24*time.Hour)

	calc, err := pricing.NewCalculator()
	require.NoError(t, err)
	tiers, err := pricing.NewTierTable(pricing.DefaultTiers())
	require.NoError(t, err)
	locks, err := pricing.NewLockMultipliers(pricing.DefaultLockSteps())
	require.NoError(t, err)

	o, err := application.NewOrchestrator(
		distributionpostgres.NewPeriodRepository(db), distributions, distributions, l,
		application.Inputs{
			Miners:     distributionpostgres.NewMinerRegistry(db),
			Network:    network.Fixed{ReferencePrice: 40000, NetworkCapacity: 1_000_000},
			Spend:      lookups,
			Locks:      lookups,
			Engagement: lookups,
		},
		application.Pricing{Calculator: calc, Tiers: tiers, Locks: locks, LockDiscount: pricing.DefaultLockDiscount()},
		application.Config{DailyPool: 6.25, Currency: testCurrency, UnitRate: 0.1, FallbackPrice: 40000},
		application.WithClock(clock),
		application.WithLogger(zaptest.NewLogger(t)),
		application.WithWorkers(4),
	)
	require.NoError(t, err)
	return o
}

func seedMiners(t *testing.T, db *sql.DB, n int) {
	t.Helper()
	registry := distributionpostgres.NewMinerRegistry(db)
	for i := 1; i <= n; i++ {
		require.NoError(t, registry.Upsert(context.Background(), distribution.Miner{
			ID:          fmt.Sprintf("miner-%02d", i),
			OwnerID:     fmt.Sprintf("owner-%d", i%3),
			Capacity:    float64(100 * i),
			Efficiency:  30,
			Status:      distribution.StatusActive,
			ReinvestPct: 0.1,
			CharityPct:  0.05,
		}))
	}
	_, err := db.ExecContext(context.Background(), `
INSERT INTO owner_spend (owner_id, cumulative_spend) VALUES ('owner-1', 5000)`)
	require.NoError(t, err)
}

func TestPostgresRun_CommitsOnceWithVerifiableProofs(t *testing.T) {
	db := openTestDB(t)
	seedMiners(t, db, 6)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 20, 0, 5, 0, 0, time.UTC))
	period := distribution.PeriodKey("2026-01-20")
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []application.Result
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := newOrchestrator(t, db, clock).Run(ctx, period)
			assert.NoError(t, err)
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}()
	}
	wg.Wait()

	committed := 0
	for _, r := range results {
		if r.Outcome == application.OutcomeCommitted {
			committed++
		}
	}
	require.Equal(t, 1, committed)

	state, err := distributionpostgres.NewPeriodRepository(db).Get(ctx, period)
	require.NoError(t, err)
	require.True(t, state.Committed())
	require.True(t, state.HasRoot())

	rows, err := distributionpostgres.NewDistributionRepository(db, ledgerpostgres.NewLedger(db)).ListByPeriod(ctx, period)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	total := decimal.Zero
	for i, d := range rows {
		require.NotNil(t, d.LeafIndex)
		assert.Equal(t, i, *d.LeafIndex)
		assert.True(t, commitment.Verify(d.LeafHash, d.Proof, *d.LeafIndex, state.Root), d.MinerID)
		total = total.Add(d.OwnerValue).Add(d.ReinvestValue).Add(d.CharityValue).Add(d.FeeValue)
	}
	assert.True(t, total.Equal(state.TotalDistributed), "total %s vs %s", total, state.TotalDistributed)

	again, err := newOrchestrator(t, db, clock).Run(ctx, period)
	require.NoError(t, err)
	assert.Equal(t, application.OutcomeAlreadyDistributed, again.Outcome)
}

func TestPostgresRun_LedgerBalancesMatchEntries(t *testing.T) {
	db := openTestDB(t)
	seedMiners(t, db, 5)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 21, 0, 5, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := newOrchestrator(t, db, clock).RunToday(ctx)
	require.NoError(t, err)

	l := ledgerpostgres.NewLedger(db)
	ids := []string{
		ledger.OwnerAccountID("owner-0", testCurrency),
		ledger.OwnerAccountID("owner-1", testCurrency),
		ledger.OwnerAccountID("owner-2", testCurrency),
	}
	for _, a := range distribution.SystemAccounts(testCurrency) {
		ids = append(ids, a.ID)
	}
	for _, id := range ids {
		balance, err := l.Balance(ctx, id)
		require.NoError(t, err)
		entries, err := l.Entries(ctx, id)
		require.NoError(t, err)
		assert.NoError(t, ledger.Reconcile(balance, entries), id)
	}
}
