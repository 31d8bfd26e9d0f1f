package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "lingoloop:session:"

// RedisRepository stores sessions as JSON strings with a Redis TTL.
type RedisRepository struct {
	client *redis.Client
}

// NewRedisRepository wraps an existing client.
func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

// DialRedis parses a redis:// URL, connects and pings the server.
func DialRedis(ctx context.Context, url string) (*RedisRepository, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisRepository{client: client}, nil
}

func redisKey(userID int64) string {
	return fmt.Sprintf("%s%d", redisKeyPrefix, userID)
}

func (r *RedisRepository) Get(ctx context.Context, userID int64) (*Session, error) {
	data, err := r.client.Get(ctx, redisKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %d: %w", userID, err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session %d: %w", userID, err)
	}
	return &s, nil
}

func (r *RedisRepository) Save(ctx context.Context, s *Session, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %d: %w", s.UserID, err)
	}
	if err := r.client.Set(ctx, redisKey(s.UserID), data, ttl).Err(); err != nil {
		return fmt.Errorf("save session %d: %w", s.UserID, err)
	}
	return nil
}

func (r *RedisRepository) Delete(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, redisKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete session %d: %w", userID, err)
	}
	return nil
}

// Cleanup is a no-op: Redis expires keys on its own.
func (r *RedisRepository) Cleanup(context.Context, time.Duration) (int, error) {
	return 0, nil
}

// Close releases the underlying client.
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
