// Package redispub publishes decoded frames to Redis: a PUBLISH per frame
// for live subscribers, plus a latest-frame key dashboards can poll.
package redispub

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/llhlol/IWR1443-data-collection/config"
	"github.com/llhlol/IWR1443-data-collection/errors"
)

// latestKeyTTL bounds staleness of the polled key when the collector dies.
const latestKeyTTL = 30 * time.Second

// Output publishes each JSON record to a channel and refreshes the
// "<prefix>:latest" key. Redis failures are counted and logged; the
// telemetry pipeline never blocks on Redis.
type Output struct {
	channel   string
	keyPrefix string
	logger    *slog.Logger

	client *redis.Client

	published atomic.Int64
	pubErrors atomic.Int64
}

// NewOutput creates a Redis sink from configuration.
func NewOutput(cfg config.RedisOutputConfig, logger *slog.Logger) *Output {
	if logger == nil {
		logger = slog.Default().With("component", "redis-output")
	}
	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "iwr1443"
	}

	return &Output{
		channel:   cfg.Channel,
		keyPrefix: keyPrefix,
		logger:    logger,
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

// Start verifies the connection with a ping.
func (o *Output) Start(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := o.client.Ping(pingCtx).Err(); err != nil {
		return errors.WrapTransient(err, "Output", "Start", "ping redis")
	}

	o.logger.Info("redis output started",
		"channel", o.channel, "key_prefix", o.keyPrefix)
	return nil
}

// Write publishes one record and refreshes the latest-frame key.
func (o *Output) Write(record []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pipe := o.client.Pipeline()
	pipe.Publish(ctx, o.channel, record)
	pipe.Set(ctx, o.keyPrefix+":latest", record, latestKeyTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		o.pubErrors.Add(1)
		o.logger.Error("redis publish failed", "channel", o.channel, "error", err)
		return
	}
	o.published.Add(1)
}

// Stop closes the client.
func (o *Output) Stop() error {
	err := o.client.Close()
	o.logger.Info("redis output stopped",
		"published", o.published.Load(), "errors", o.pubErrors.Load())
	if err != nil {
		return errors.WrapTransient(err, "Output", "Stop", "close client")
	}
	return nil
}
