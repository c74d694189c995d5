package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pricing "rewardpool/internal/pricing/domain"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("REWARDS_CONFIG", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PG_DSN", "postgres://localhost/rewards")
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/rewards", cfg.DatabaseURL)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 15*time.Minute, cfg.ClaimLease)
	assert.Equal(t, "0 5 0 * * *", cfg.DistributionCron)
	assert.Equal(t, pricing.MaxDiscountBps, cfg.Rewards.MaxDiscountBps)
	assert.Equal(t, pricing.DefaultTiers(), cfg.Rewards.Tiers)
	assert.Error(t, cfg.Validate(), "jwt secret is required")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("REWARDS_CONFIG", "")
	t.Setenv("WORKER_POOL_SIZE", "16")
	t.Setenv("CLAIM_LEASE", "5m")
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("DAILY_POOL", "6.25")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.WorkerPoolSize)
	assert.Equal(t, 5*time.Minute, cfg.ClaimLease)
	assert.False(t, cfg.SchedulerEnabled)
	assert.Equal(t, 6.25, cfg.Rewards.DailyPool)
}

func TestLoad_YAMLRateTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rewards.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
daily_pool: 3.125
currency: ETH
max_discount_bps: 1500
tiers:
  - min_spend: 0
    discount_bps: 0
  - min_spend: 100
    discount_bps: 300
lock_steps:
  - min_days: 0
    multiplier: 1
lock_discount:
  weight_unit: 500
  bps_per_unit: 50
  max_bps: 400
`), 0o600))
	t.Setenv("REWARDS_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3.125, cfg.Rewards.DailyPool)
	assert.Equal(t, "ETH", cfg.Rewards.Currency)
	require.Len(t, cfg.Rewards.Tiers, 2)
	assert.Equal(t, 300, cfg.Rewards.Tiers[1].DiscountBps)
	assert.Equal(t, pricing.LockDiscount{WeightUnit: 500, BpsPerUnit: 50, MaxBps: 400}, cfg.Rewards.LockDiscount)

	calc, err := cfg.Rewards.Calculator()
	require.NoError(t, err)
	assert.Equal(t, 1500, calc.MaxDiscount())
	tiers, err := cfg.Rewards.TierTable()
	require.NoError(t, err)
	assert.Equal(t, 300, tiers.DiscountBps(150))
	_, err = cfg.Rewards.LockMultipliers()
	require.NoError(t, err)
}

func TestLoad_RejectsBadFiles(t *testing.T) {
	t.Setenv("REWARDS_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("currency: [unterminated"), 0o600))
	t.Setenv("REWARDS_CONFIG", path)
	_, err = Load()
	assert.Error(t, err)
}

func TestRewardsValidate(t *testing.T) {
	base := Rewards{DailyPool: 1, Currency: "BTC", FallbackPrice: 1}
	require.NoError(t, base.Validate())

	cases := map[string]func(r *Rewards){
		"no currency":       func(r *Rewards) { r.Currency = "" },
		"negative pool":     func(r *Rewards) { r.DailyPool = -1 },
		"no pool source":    func(r *Rewards) { r.DailyPool = 0 },
		"negative rate":     func(r *Rewards) { r.UnitRate = -0.1 },
		"zero fallback":     func(r *Rewards) { r.FallbackPrice = 0 },
		"negative capacity": func(r *Rewards) { r.FallbackNetworkCapacity = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := base
			mutate(&r)
			assert.Error(t, r.Validate())
		})
	}
}
