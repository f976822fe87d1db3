package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps cached listings and rate-limit counters in Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

var errStaleListing = errors.New("listing invalidated during read")

func listingKey(id int64) string {
	return fmt.Sprintf("listing:%d", id)
}

func listingVersionKey(id int64) string {
	return fmt.Sprintf("listing_version:%d", id)
}

func (r *RedisStore) GetListing(ctx context.Context, id int64) (*models.Listing, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, listingKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing from redis: %w", err)
	}

	var listing models.Listing
	if err := json.Unmarshal(val, &listing); err != nil {
		return nil, fmt.Errorf("failed to unmarshal listing: %w", err)
	}
	return &listing, nil
}

// ListingVersion returns the invalidation counter for the listing; a missing
// counter reads as zero.
func (r *RedisStore) ListingVersion(ctx context.Context, id int64) (int64, error) {
	if r.client == nil {
		return 0, fmt.Errorf("redis client is nil")
	}
	version, err := r.client.Get(ctx, listingVersionKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get listing version from redis: %w", err)
	}
	return version, nil
}

// SetListing caches the listing under WATCH on its version key. A version
// that moved since the caller read it, before or during the write, skips the
// write without an error.
func (r *RedisStore) SetListing(ctx context.Context, listing *models.Listing, version int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("failed to marshal listing: %w", err)
	}

	versionKey := listingVersionKey(listing.ID)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return errStaleListing
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, listingKey(listing.ID), data, r.ttl)
			return nil
		})
		return err
	}, versionKey)

	switch {
	case err == nil, errors.Is(err, errStaleListing), errors.Is(err, redis.TxFailedErr):
		return nil
	default:
		return fmt.Errorf("failed to set listing in redis: %w", err)
	}
}

// DeleteListing removes the cached copy and bumps the version in one
// transaction.
func (r *RedisStore) DeleteListing(ctx context.Context, id int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, listingKey(id))
		pipe.Incr(ctx, listingVersionKey(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete listing from redis: %w", err)
	}
	return nil
}

// CheckRateLimit counts a hit for key and reports whether the count is
// still within limit for the current window.
func (r *RedisStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	redisKey := "rate_limit:" + key
	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	return count <= int64(limit), nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
