package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"rewardpool/internal/distribution/application"
)

// DefaultCommitChannel is the pub/sub channel for PeriodCommitted events.
const DefaultCommitChannel = "rewardpool:period.committed"

// LoggingPublisher logs period committed events.
type LoggingPublisher struct {
	logger *zap.Logger
}

// NewLoggingPublisher constructs a logging publisher.
func NewLoggingPublisher(logger *zap.Logger) *LoggingPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingPublisher{logger: logger}
}

// PublishPeriodCommitted logs the event.
func (p *LoggingPublisher) PublishPeriodCommitted(ctx context.Context, event application.PeriodCommitted) error {
	_ = ctx
	if p == nil {
		return errors.New("distribution publisher: nil publisher")
	}
	p.logger.Info("period committed",
		zap.String("period", event.Period.String()),
		zap.String("root", event.Root),
		zap.Int("entities", event.EntitiesProcessed),
		zap.String("total_distributed", event.TotalDistributed),
		zap.Float64("reference_price", event.ReferencePrice),
		zap.String("price_source", string(event.PriceSource)))
	return nil
}

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisPublisher fans PeriodCommitted events out over redis pub/sub.
type RedisPublisher struct {
	client  redisPublisher
	channel string
}

// NewRedisPublisher constructs a redis publisher. An empty channel uses
// DefaultCommitChannel.
func NewRedisPublisher(client redisPublisher, channel string) (*RedisPublisher, error) {
	if client == nil {
		return nil, errors.New("distribution publisher: nil redis client")
	}
	if channel == "" {
		channel = DefaultCommitChannel
	}
	return &RedisPublisher{client: client, channel: channel}, nil
}

type periodCommittedMessage struct {
	Period            string  `json:"period"`
	Root              string  `json:"root"`
	EntitiesProcessed int     `json:"entities_processed"`
	TotalDistributed  string  `json:"total_distributed"`
	ReferencePrice    float64 `json:"reference_price"`
	PriceSource       string  `json:"price_source"`
	OccurredAt        string  `json:"occurred_at"`
}

// PublishPeriodCommitted publishes the event as JSON.
func (p *RedisPublisher) PublishPeriodCommitted(ctx context.Context, event application.PeriodCommitted) error {
	if p == nil || p.client == nil {
		return errors.New("distribution publisher: nil publisher")
	}
	payload, err := json.Marshal(periodCommittedMessage{
		Period:            event.Period.String(),
		Root:              event.Root,
		EntitiesProcessed: event.EntitiesProcessed,
		TotalDistributed:  event.TotalDistributed,
		ReferencePrice:    event.ReferencePrice,
		PriceSource:       string(event.PriceSource),
		OccurredAt:        event.OccurredAt.UTC().Format(timeLayout),
	})
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("distribution publisher: publish %s: %w", p.channel, err)
	}
	return nil
}

// FanoutPublisher forwards events to every publisher and joins their errors.
type FanoutPublisher []application.CommitPublisher

// PublishPeriodCommitted publishes to each publisher in order.
func (f FanoutPublisher) PublishPeriodCommitted(ctx context.Context, event application.PeriodCommitted) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.PublishPeriodCommitted(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
