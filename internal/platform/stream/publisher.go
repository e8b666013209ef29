// Package stream mirrors completed reports onto a Redis stream for downstream consumers.
package stream

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"aeye-server-go/internal/domain/eventbus"
	"aeye-server-go/internal/platform/config"
	"aeye-server-go/internal/platform/errors"
	"aeye-server-go/internal/utils"
)

const (
	DefaultStream  = "screening:reports"
	maxStreamLen   = 10000
	publishTimeout = 5 * time.Second
)

// NewClient connects and pings Redis.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(errors.KindStorage, "redis.ping", "redis unreachable", err)
	}
	return client, nil
}

// ReportPublisher XADDs completed reports. Failures are logged, never returned to the pipeline.
type ReportPublisher struct {
	client *redis.Client
	stream string
	logger *utils.Logger
}

func NewReportPublisher(client *redis.Client, stream string, logger *utils.Logger) *ReportPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &ReportPublisher{client: client, stream: stream, logger: logger}
}

// Attach subscribes the publisher to report-completed events on bus.
func (p *ReportPublisher) Attach(bus eventbus.Subscriber) error {
	return bus.Subscribe(eventbus.TopicReportCompleted, p.handle)
}

func (p *ReportPublisher) handle(ev eventbus.ReportCompleted) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.Publish(ctx, ev); err != nil {
		p.logger.WarnTag("Storage", "report %d not published to stream: %v", ev.ReportID, err)
	}
}

// Publish appends one entry, trimming the stream to roughly the newest 10000 entries.
func (p *ReportPublisher) Publish(ctx context.Context, ev eventbus.ReportCompleted) error {
	_, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]interface{}{
			"id":          strconv.FormatUint(uint64(ev.ReportID), 10),
			"diagnose":    strconv.FormatBool(ev.Diagnose),
			"confidence":  strconv.FormatFloat(ev.Confidence, 'f', -1, 64),
			"camera_type": ev.CameraType,
		},
	}).Result()
	if err != nil {
		return errors.Wrap(errors.KindStorage, "stream.xadd", "failed to publish report", err)
	}
	return nil
}
