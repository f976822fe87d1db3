package repository

import (
	"context"
	"testing"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	repo := NewRedisStore(client, time.Hour)
	ctx := context.Background()

	t.Run("SetAndGetListing", func(t *testing.T) {
		listing := &models.Listing{
			ID:           7,
			Title:        "Pipe repair",
			City:         "Austin",
			Price:        80,
			Availability: []string{"Mon", "Tue"},
		}

		require.NoError(t, repo.SetListing(ctx, listing, 0))

		got, err := repo.GetListing(ctx, 7)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Pipe repair", got.Title)
		assert.Equal(t, []string{"Mon", "Tue"}, got.Availability)
		assert.Equal(t, time.Hour, s.TTL("listing:7"))
	})

	t.Run("GetMissing", func(t *testing.T) {
		got, err := repo.GetListing(ctx, 999)
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("DeleteListing", func(t *testing.T) {
		require.NoError(t, repo.SetListing(ctx, &models.Listing{ID: 8}, 0))
		require.NoError(t, repo.DeleteListing(ctx, 8))

		got, err := repo.GetListing(ctx, 8)
		assert.NoError(t, err)
		assert.Nil(t, got)

		version, err := repo.ListingVersion(ctx, 8)
		require.NoError(t, err)
		assert.Equal(t, int64(1), version)
	})

	t.Run("StaleVersionSkipsWrite", func(t *testing.T) {
		version, err := repo.ListingVersion(ctx, 10)
		require.NoError(t, err)

		require.NoError(t, repo.DeleteListing(ctx, 10))
		require.NoError(t, repo.SetListing(ctx, &models.Listing{ID: 10, Title: "old"}, version))
		assert.False(t, s.Exists("listing:10"))

		current, err := repo.ListingVersion(ctx, 10)
		require.NoError(t, err)
		require.NoError(t, repo.SetListing(ctx, &models.Listing{ID: 10, Title: "fresh"}, current))

		got, err := repo.GetListing(ctx, 10)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "fresh", got.Title)
	})

	t.Run("CorruptedEntry", func(t *testing.T) {
		require.NoError(t, s.Set("listing:9", "{not json"))
		_, err := repo.GetListing(ctx, 9)
		assert.Error(t, err)
	})

	t.Run("RateLimit", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			allowed, err := repo.CheckRateLimit(ctx, "login:1.2.3.4", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}

		allowed, err := repo.CheckRateLimit(ctx, "login:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(2 * time.Minute)
		allowed, err = repo.CheckRateLimit(ctx, "login:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})
}

func TestRedisStore_ServerDown(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer Close(client)
	repo := NewRedisStore(client, time.Minute)
	ctx := context.Background()

	s.Close()

	_, err = repo.GetListing(ctx, 1)
	assert.Error(t, err)
	assert.Error(t, repo.SetListing(ctx, &models.Listing{ID: 1}, 0))
	_, err = repo.ListingVersion(ctx, 1)
	assert.Error(t, err)
	_, err = repo.CheckRateLimit(ctx, "k", 1, time.Minute)
	assert.Error(t, err)
	assert.Error(t, Ping(ctx, client))
}

func TestRedisStore_NilClient(t *testing.T) {
	repo := NewRedisStore(nil, time.Minute)
	ctx := context.Background()

	_, err := repo.GetListing(ctx, 1)
	assert.Error(t, err)
	assert.Error(t, repo.DeleteListing(ctx, 1))
	assert.NoError(t, Close(nil))
}
