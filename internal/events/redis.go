package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/werawoot/Krua-Thai1-sub006/internal/routing"
)

// DefaultChannel is the Redis Pub/Sub channel optimization stages travel on
const DefaultChannel = "krua:optimization:stages"

const (
	publishTimeout = 2 * time.Second
	queueSize      = 64
)

// RedisRelay fans optimization stage events out to every server instance,
// so an admin connected to one instance sees runs started on another.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
	queue   chan routing.StageEvent
	logger  *zap.Logger
}

// NewRedisClient parses a redis:// URL and pings the server
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

// NewRedisRelay creates a relay on channel (DefaultChannel when empty).
// Events are only published while Run is running.
func NewRedisRelay(rdb *redis.Client, channel string, logger *zap.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRelay{
		rdb:     rdb,
		channel: channel,
		queue:   make(chan routing.StageEvent, queueSize),
		logger:  logger,
	}
}

// StageChanged implements routing.StageObserver. It only enqueues; when the
// queue is full the event is dropped.
func (r *RedisRelay) StageChanged(_ context.Context, ev routing.StageEvent) {
	select {
	case r.queue <- ev:
	default:
		r.logger.Warn("stage event queue full, dropping event",
			zap.String("run_id", ev.RunID),
			zap.String("stage", string(ev.Stage)))
	}
}

// Run publishes queued events until ctx is cancelled
func (r *RedisRelay) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.queue:
			r.publish(ctx, ev)
		}
	}
}

func (r *RedisRelay) publish(ctx context.Context, ev routing.StageEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		r.logger.Error("failed to marshal stage event", zap.Error(err))
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := r.rdb.Publish(pubCtx, r.channel, data).Err(); err != nil {
		r.logger.Warn("failed to publish stage event",
			zap.String("run_id", ev.RunID),
			zap.String("stage", string(ev.Stage)),
			zap.Error(err))
	}
}

// Subscription is an active subscription to the relay channel
type Subscription struct {
	ps     *redis.PubSub
	logger *zap.Logger
}

// Subscribe subscribes and waits for Redis to confirm, so events published
// after it returns are not missed.
func (r *RedisRelay) Subscribe(ctx context.Context) (*Subscription, error) {
	ps := r.rdb.Subscribe(ctx, r.channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	return &Subscription{ps: ps, logger: r.logger}, nil
}

// Forward delivers every received event to sink until ctx is cancelled.
// Malformed payloads are skipped.
func (s *Subscription) Forward(ctx context.Context, sink func(routing.StageEvent)) error {
	defer s.ps.Close()

	ch := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis subscription closed")
			}
			var ev routing.StageEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				s.logger.Warn("dropping malformed stage event", zap.Error(err))
				continue
			}
			sink(ev)
		}
	}
}
