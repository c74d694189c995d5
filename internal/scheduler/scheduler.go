package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"rewardpool/internal/distribution/application"
)

const (
	// DefaultSpec runs at 00:05:00 UTC every day.
	DefaultSpec    = "0 5 0 * * *"
	defaultTimeout = 30 * time.Minute
)

// Runner executes the distribution for the current period.
type Runner interface {
	RunToday(ctx context.Context) (application.Result, error)
}

// Option configures the scheduler.
type Option func(*Scheduler)

// WithTimeout bounds each scheduled run.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// Scheduler triggers distribution runs on a cron schedule in UTC.
type Scheduler struct {
	runner  Runner
	spec    string
	timeout time.Duration
	logger  *zap.Logger
	cron    *cron.Cron
}

// New constructs a Scheduler. The spec has a leading seconds field.
func New(runner Runner, spec string, logger *zap.Logger, opts ...Option) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("scheduler: nil runner")
	}
	if spec == "" {
		spec = DefaultSpec
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{runner: runner, spec: spec, timeout: defaultTimeout, logger: logger}
	for _, opt := range opts {
		opt(s)
	}

	cronLogger := cronLogger{logger: logger.Sugar()}
	s.cron = cron.New(
		cron.WithSeconds(),
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("scheduler: invalid spec %q: %w", spec, err)
	}
	return s, nil
}

// Start begins dispatching scheduled runs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("spec", s.spec))
}

// Stop waits for a running job to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Next returns the next scheduled activation.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunOnce triggers one run and logs its outcome.
func (s *Scheduler) RunOnce(ctx context.Context) {
	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	result, err := s.runner.RunToday(rctx)
	if err != nil {
		s.logger.Error("scheduled distribution failed",
			zap.String("period", result.Period.String()),
			zap.Error(err))
		return
	}
	s.logger.Info("scheduled distribution finished",
		zap.String("period", result.Period.String()),
		zap.String("outcome", string(result.Outcome)),
		zap.Int("entities", result.EntitiesProcessed),
		zap.Int("skipped", len(result.Skipped)))
}

type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
