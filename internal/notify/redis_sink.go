package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisConfig points the sink at a Redis stream
type RedisConfig struct {
	Addr     string
	DB       int
	Username string
	Password string
	Stream   string
	MaxLen   int64
}

// RedisSink appends events as JSON to a Redis stream
type RedisSink struct {
	rdb    *redis.Client
	stream string
	maxLen int64
}

func NewRedisSink(cfg RedisConfig) *RedisSink {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	stream := cfg.Stream
	if stream == "" {
		stream = "tradecore:events"
	}
	return &RedisSink{rdb: rdb, stream: stream, maxLen: cfg.MaxLen}
}

func (s *RedisSink) Name() string { return "redis" }

// Ping checks the connection; used as a health check
func (s *RedisSink) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisSink) Send(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"type":    string(e.Type),
			"payload": string(payload),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	return s.rdb.XAdd(ctx, args).Err()
}

func (s *RedisSink) Close() error {
	return s.rdb.Close()
}
