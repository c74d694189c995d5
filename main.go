package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"rewardpool/internal/audit"
	"rewardpool/internal/auth"
	"rewardpool/internal/config"
	"rewardpool/internal/distribution/adapters/network"
	"rewardpool/internal/distribution/application"
	distribution "rewardpool/internal/distribution/domain"
	distributionpostgres "rewardpool/internal/distribution/infrastructure/postgres"
	"rewardpool/internal/distribution/interfaces"
	ledgerpostgres "rewardpool/internal/ledger/infrastructure/postgres"
	"rewardpool/internal/observability/metrics"
	"rewardpool/internal/platform/logging"
	"rewardpool/internal/platform/postgres"
	"rewardpool/internal/scheduler"
)

func main() {
	var (
		migrateOnly = pflag.Bool("migrate", false, "apply database migrations and exit")
		runOnce     = pflag.Bool("run-once", false, "run one distribution and exit")
		period      = pflag.String("period", "", "period key YYYY-MM-DD for --run-once (default: current UTC day)")
		issueToken  = pflag.String("issue-token", "", "print a signed token for the given role and exit")
		tokenTTL    = pflag.Duration("token-ttl", 24*time.Hour, "lifetime of --issue-token")
	)
	pflag.Parse()

	logger, err := logging.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config error", zap.Error(err))
	}

	if *issueToken != "" {
		token, err := auth.IssueJWT([]byte(cfg.JWTSecret), "rewardpool-cli", auth.Role(*issueToken), *tokenTTL)
		if err != nil {
			logger.Fatal("issue token error", zap.Error(err))
		}
		fmt.Println(token)
		return
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("config error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db open error", zap.Error(err))
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db, logger); err != nil {
		logger.Fatal("db migrate error", zap.Error(err))
	}
	if *migrateOnly {
		logger.Info("migrations applied")
		return
	}

	metrics.Init(db, logger)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		defer func() { _ = redisClient.Close() }()
	}

	orchestrator, err := buildOrchestrator(cfg, db, redisClient, logger)
	if err != nil {
		logger.Fatal("orchestrator init error", zap.Error(err))
	}

	if *runOnce {
		if code := runSingle(ctx, orchestrator, *period, cfg.RunTimeout, logger); code != 0 {
			_ = logger.Sync()
			db.Close()
			os.Exit(code)
		}
		return
	}

	ledgerStore := ledgerpostgres.NewLedger(db)
	periodRepo := distributionpostgres.NewPeriodRepository(db)
	distributionRepo := distributionpostgres.NewDistributionRepository(db, ledgerStore)

	runHandler, err := interfaces.NewRunHandler(orchestrator, audit.NewRepository(db), logger)
	if err != nil {
		logger.Fatal("run handler init error", zap.Error(err))
	}
	queryHandler, err := interfaces.NewQueryHandler(periodRepo, distributionRepo, ledgerStore, logger)
	if err != nil {
		logger.Fatal("query handler init error", zap.Error(err))
	}

	router := interfaces.NewRouter(runHandler, queryHandler)
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.SchedulerEnabled {
		sched, err := scheduler.New(orchestrator, cfg.DistributionCron, logger, scheduler.WithTimeout(cfg.RunTimeout))
		if err != nil {
			logger.Fatal("scheduler init error", zap.Error(err))
		}
		sched.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			sched.Stop(stopCtx)
		}()
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           interfaces.LoggingMiddleware(authMiddleware.Wrap(router), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server error", zap.Error(err))
		stop()
	}
}

func buildOrchestrator(cfg config.Config, db *sql.DB, redisClient *redis.Client, logger *zap.Logger) (*application.Orchestrator, error) {
	rewards := cfg.Rewards
	calc, err := rewards.Calculator()
	if err != nil {
		return nil, err
	}
	tiers, err := rewards.TierTable()
	if err != nil {
		return nil, err
	}
	locks, err := rewards.LockMultipliers()
	if err != nil {
		return nil, err
	}

	var networkState application.NetworkStateProvider = network.Fixed{
		ReferencePrice:  rewards.FallbackPrice,
		NetworkCapacity: rewards.FallbackNetworkCapacity,
	}
	if cfg.NetworkFeedURL != "" {
		client, err := network.NewClient(cfg.NetworkFeedURL,
			network.WithToken(cfg.NetworkFeedToken),
			network.WithHTTPClient(&http.Client{Timeout: cfg.NetworkFeedTimeout}))
		if err != nil {
			return nil, err
		}
		networkState = client
	} else {
		logger.Warn("NETWORK_FEED_URL not set, using fallback price and network capacity")
	}

	publishers := interfaces.FanoutPublisher{interfaces.NewLoggingPublisher(logger)}
	if redisClient != nil {
		redisPublisher, err := interfaces.NewRedisPublisher(redisClient, cfg.RedisChannel)
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, redisPublisher)
	}

	ledgerStore := ledgerpostgres.NewLedger(db)
	lookups := distributionpostgres.NewOwnerLookups(db, cfg.EngagementWindow)
	distributions := distributionpostgres.NewDistributionRepository(db, ledgerStore)

	return application.NewOrchestrator(
		distributionpostgres.NewPeriodRepository(db),
		distributions,
		distributions,
		ledgerStore,
		application.Inputs{
			Miners:     distributionpostgres.NewMinerRegistry(db),
			Network:    networkState,
			Spend:      lookups,
			Locks:      lookups,
			Engagement: lookups,
		},
		application.Pricing{Calculator: calc, Tiers: tiers, Locks: locks, LockDiscount: rewards.LockDiscount},
		application.Config{
			DailyPool:               rewards.DailyPool,
			NetworkDailyReward:      rewards.NetworkDailyReward,
			Currency:                rewards.Currency,
			UnitRate:                rewards.UnitRate,
			FallbackPrice:           rewards.FallbackPrice,
			FallbackNetworkCapacity: rewards.FallbackNetworkCapacity,
		},
		application.WithWorkers(cfg.WorkerPoolSize),
		application.WithClaimLease(cfg.ClaimLease),
		application.WithLogger(logger),
		application.WithPublisher(publishers),
	)
}

func runSingle(ctx context.Context, orchestrator *application.Orchestrator, rawPeriod string, timeout time.Duration, logger *zap.Logger) int {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		result application.Result
		err    error
	)
	if rawPeriod == "" {
		result, err = orchestrator.RunToday(runCtx)
	} else {
		key, parseErr := distribution.ParsePeriodKey(rawPeriod)
		if parseErr != nil {
			logger.Error("invalid period", zap.String("period", rawPeriod), zap.Error(parseErr))
			return 2
		}
		result, err = orchestrator.Run(runCtx, key)
	}
	if err != nil {
		logger.Error("distribution run failed", zap.String("period", result.Period.String()), zap.Error(err))
		return 1
	}
	logger.Info("distribution run finished",
		zap.String("period", result.Period.String()),
		zap.String("outcome", string(result.Outcome)),
		zap.Int("entities", result.EntitiesProcessed),
		zap.Int("skipped", len(result.Skipped)),
		zap.String("total_distributed", result.TotalDistributed.StringFixed(distribution.AmountPrecision)),
		zap.String("root", result.Root))
	return 0
}
