package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mansoorceksport/nutritico/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	stateKeyPrefix = "user:state:"
)

var (
	ErrCacheMiss    = errors.New("cache miss")
	ErrCacheCorrupt = errors.New("cache entry cannot be decoded")
)

// RedisCacheRepository implements domain.StateCache using Redis
type RedisCacheRepository struct {
	client *redis.Client
}

// NewRedisCacheRepository creates a new Redis cache repository
func NewRedisCacheRepository(client *redis.Client) *RedisCacheRepository {
	return &RedisCacheRepository{
		client: client,
	}
}

// SetState caches a user's state snapshot with TTL
func (r *RedisCacheRepository) SetState(ctx context.Context, userID string, state *domain.AppState, ttl time.Duration) error {
	if err := r.Set(ctx, stateKeyPrefix+userID, state, ttl); err != nil {
		return fmt.Errorf("failed to cache state: %w", err)
	}
	return nil
}

// GetState retrieves the cached state of a user, nil on a miss.
// An entry that no longer decodes is dropped and reported as a miss.
func (r *RedisCacheRepository) GetState(ctx context.Context, userID string) (*domain.AppState, error) {
	key := stateKeyPrefix + userID
	var state domain.AppState
	if err := r.Get(ctx, key, &state); err != nil {
		switch {
		case errors.Is(err, ErrCacheMiss):
			return nil, nil
		case errors.Is(err, ErrCacheCorrupt):
			log.Printf("Warning: dropping undecodable cached state for %s: %v", userID, err)
			if delErr := r.Delete(ctx, key); delErr != nil {
				return nil, fmt.Errorf("failed to drop corrupt cached state: %w", delErr)
			}
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached state: %w", err)
	}
	return &state, nil
}

// InvalidateState removes the cached state of a user
func (r *RedisCacheRepository) InvalidateState(ctx context.Context, userID string) error {
	return r.Delete(ctx, stateKeyPrefix+userID)
}

// =============================================================================
// Generic Cache Operations with OpenTelemetry Tracing
// =============================================================================

// Get retrieves a value from cache by key with OTel tracing
func (r *RedisCacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.Get",
		trace.WithAttributes(attribute.String("cache.key", key)),
	)
	defer span.End()

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			span.SetAttributes(attribute.String("cache.result", "miss"))
			return ErrCacheMiss
		}
		span.RecordError(err)
		return fmt.Errorf("redis get error: %w", err)
	}

	span.SetAttributes(attribute.String("cache.result", "hit"))
	if err := json.Unmarshal(data, dest); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}

	return nil
}

// Set stores a value in cache with TTL and OTel tracing
func (r *RedisCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.Set",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.Int64("cache.ttl_seconds", int64(ttl.Seconds())),
		),
	)
	defer span.End()

	data, err := json.Marshal(value)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("marshal error: %w", err)
	}

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis set error: %w", err)
	}

	return nil
}

// Delete removes keys from cache with OTel tracing
func (r *RedisCacheRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.Delete",
		trace.WithAttributes(attribute.Int("cache.key_count", len(keys))),
	)
	defer span.End()

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis delete error: %w", err)
	}

	return nil
}

var _ domain.StateCache = (*RedisCacheRepository)(nil)
