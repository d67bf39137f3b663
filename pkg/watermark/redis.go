package watermark

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RedisStore keeps the watermark in Redis.
type RedisStore struct {
	redis  *redis.Client
	key    Key
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisStore creates a store for key. A ttl of 0 keeps the watermark forever.
func NewRedisStore(redisClient *redis.Client, key Key, ttl time.Duration) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis:  redisClient,
		key:    key,
		ttl:    ttl,
		logger: log.With().Str("component", "watermark").Str("key", key.String()).Logger(),
	}
}

// Key returns the store's key.
func (s *RedisStore) Key() Key {
	return s.key
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context) (string, bool, error) {
	data, err := s.redis.Get(ctx, s.key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			drataWatermarkOpsTotal.WithLabelValues("load", "miss").Inc()
			return "", false, nil
		}
		drataWatermarkOpsTotal.WithLabelValues("load", "error").Inc()
		return "", false, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		drataWatermarkOpsTotal.WithLabelValues("load", "error").Inc()
		return "", false, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	drataWatermarkOpsTotal.WithLabelValues("load", "hit").Inc()
	return entry.LastPollTime, true, nil
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, value string) error {
	data, err := json.Marshal(Entry{LastPollTime: value, SavedAt: time.Now().UTC()})
	if err != nil {
		drataWatermarkOpsTotal.WithLabelValues("save", "error").Inc()
		return fmt.Errorf("marshal watermark entry: %w", err)
	}

	if err := s.redis.Set(ctx, s.key.String(), data, s.ttl).Err(); err != nil {
		drataWatermarkOpsTotal.WithLabelValues("save", "error").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	drataWatermarkOpsTotal.WithLabelValues("save", "ok").Inc()
	s.logger.Debug().Str("last_poll_time", value).Msg("Watermark saved")
	return nil
}

// Reset deletes the stored watermark.
func (s *RedisStore) Reset(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key.String()).Err(); err != nil {
		drataWatermarkOpsTotal.WithLabelValues("reset", "error").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	drataWatermarkOpsTotal.WithLabelValues("reset", "ok").Inc()
	return nil
}
