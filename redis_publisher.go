package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultViewKey     = "screener:view"
	defaultViewChannel = "screener.views"
)

// RedisClient is the part of *redis.Client the publisher needs.
type RedisClient interface {
	Pipeline() redis.Pipeliner
	Close() error
}

type RedisPublisherConfig struct {
	TTL     time.Duration
	Key     string
	Channel string
}

// RedisPublisher mirrors each view to Redis: the latest one under Key with a
// TTL, and every one on Channel for subscribers.
type RedisPublisher struct {
	cfg RedisPublisherConfig
	rdb RedisClient
}

var _ ViewSink = (*RedisPublisher)(nil)

func NewRedisPublisher(cfg RedisPublisherConfig, rdb RedisClient) *RedisPublisher {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Minute
	}
	if cfg.Key == "" {
		cfg.Key = defaultViewKey
	}
	if cfg.Channel == "" {
		cfg.Channel = defaultViewChannel
	}
	return &RedisPublisher{cfg: cfg, rdb: rdb}
}

func (p *RedisPublisher) PublishView(ctx context.Context, v *View) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal view: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	pipe := p.rdb.Pipeline()
	pipe.Set(ctx, p.cfg.Key, payload, p.cfg.TTL)
	pipe.Publish(ctx, p.cfg.Channel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Close() error { return p.rdb.Close() }
