package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	pricing "rewardpool/internal/pricing/domain"
)

// Config is the process configuration.
type Config struct {
	DatabaseURL string
	HTTPAddr    string
	JWTSecret   string

	WorkerPoolSize   int
	ClaimLease       time.Duration
	RunTimeout       time.Duration
	SchedulerEnabled bool
	DistributionCron string
	EngagementWindow time.Duration

	NetworkFeedURL     string
	NetworkFeedToken   string
	NetworkFeedTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	Rewards Rewards
}

// Rewards holds the economic parameters and rate tables. They may be
// overridden by the YAML file named in REWARDS_CONFIG.
type Rewards struct {
	DailyPool               float64                `yaml:"daily_pool"`
	NetworkDailyReward      float64                `yaml:"network_daily_reward"`
	Currency                string                 `yaml:"currency"`
	UnitRate                float64                `yaml:"unit_rate"`
	ServiceFeeBps           int                    `yaml:"service_fee_bps"`
	MaxDiscountBps          int                    `yaml:"max_discount_bps"`
	EngagementBonusBps      int                    `yaml:"engagement_bonus_bps"`
	Tiers                   []pricing.DiscountTier `yaml:"tiers"`
	LockSteps               []pricing.LockStep     `yaml:"lock_steps"`
	LockDiscount            pricing.LockDiscount   `yaml:"lock_discount"`
	FallbackPrice           float64                `yaml:"fallback_price"`
	FallbackNetworkCapacity float64                `yaml:"fallback_network_capacity"`
}

// Load reads an optional .env file, the environment and the optional
// REWARDS_CONFIG file, in that order.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DatabaseURL:        getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:           getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:          getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		WorkerPoolSize:     getenvIntDefault("WORKER_POOL_SIZE", 8),
		ClaimLease:         getenvDuration("CLAIM_LEASE", 15*time.Minute),
		RunTimeout:         getenvDuration("RUN_TIMEOUT", 30*time.Minute),
		SchedulerEnabled:   getenvBoolDefault("SCHEDULER_ENABLED", true),
		DistributionCron:   getenvDefault("DISTRIBUTION_CRON", "0 5 0 * * *"),
		EngagementWindow:   getenvDuration("ENGAGEMENT_WINDOW", 30*24*time.Hour),
		NetworkFeedURL:     getenvDefault("NETWORK_FEED_URL", ""),
		NetworkFeedToken:   getenvDefault("NETWORK_FEED_TOKEN", ""),
		NetworkFeedTimeout: getenvDuration("NETWORK_FEED_TIMEOUT", 5*time.Second),
		RedisAddr:          getenvDefault("REDIS_ADDR", ""),
		RedisPassword:      getenvDefault("REDIS_PASSWORD", ""),
		RedisDB:            getenvIntDefault("REDIS_DB", 0),
		RedisChannel:       getenvDefault("REDIS_CHANNEL", "rewardpool:period.committed"),
		Rewards: Rewards{
			DailyPool:               getenvFloatDefault("DAILY_POOL", 0),
			NetworkDailyReward:      getenvFloatDefault("NETWORK_DAILY_REWARD", 450),
			Currency:                getenvDefault("CURRENCY", "BTC"),
			UnitRate:                getenvFloatDefault("UNIT_RATE", 0.1),
			ServiceFeeBps:           getenvIntDefault("SERVICE_FEE_BPS", pricing.DefaultServiceFeeBps),
			MaxDiscountBps:          getenvIntDefault("MAX_DISCOUNT_BPS", pricing.MaxDiscountBps),
			EngagementBonusBps:      getenvIntDefault("ENGAGEMENT_BONUS_BPS", pricing.DefaultEngagementBonusBps),
			Tiers:                   pricing.DefaultTiers(),
			LockSteps:               pricing.DefaultLockSteps(),
			LockDiscount:            pricing.DefaultLockDiscount(),
			FallbackPrice:           getenvFloatDefault("DEFAULT_REFERENCE_PRICE", 60000),
			FallbackNetworkCapacity: getenvFloatDefault("DEFAULT_NETWORK_CAPACITY", 600_000_000),
		},
	}

	if path := os.Getenv("REWARDS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg.Rewards); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, cfg.Rewards.Validate()
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL or PG_DSN is required")
	}
	if c.JWTSecret == "" {
		return errors.New("config: AUTH_JWT_SECRET is required")
	}
	return nil
}

// Validate checks the economic parameters.
func (r Rewards) Validate() error {
	switch {
	case r.Currency == "":
		return errors.New("config: currency is required")
	case r.DailyPool < 0 || r.NetworkDailyReward < 0:
		return errors.New("config: reward pool must not be negative")
	case r.DailyPool == 0 && r.NetworkDailyReward == 0:
		return errors.New("config: one of daily_pool or network_daily_reward is required")
	case r.UnitRate < 0:
		return errors.New("config: unit rate must not be negative")
	case r.FallbackPrice <= 0:
		return errors.New("config: fallback price must be positive")
	case r.FallbackNetworkCapacity < 0:
		return errors.New("config: fallback network capacity must not be negative")
	}
	return nil
}

// Calculator builds the maintenance calculator.
func (r Rewards) Calculator() (*pricing.Calculator, error) {
	return pricing.NewCalculator(
		pricing.WithServiceFeeBps(r.ServiceFeeBps),
		pricing.WithEngagementBonusBps(r.EngagementBonusBps),
		pricing.WithMaxDiscountBps(r.MaxDiscountBps),
	)
}

// TierTable builds the spend tier table.
func (r Rewards) TierTable() (pricing.TierTable, error) {
	return pricing.NewTierTable(r.Tiers)
}

// LockMultipliers builds the lock multiplier table.
func (r Rewards) LockMultipliers() (pricing.LockMultipliers, error) {
	return pricing.NewLockMultipliers(r.LockSteps)
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
