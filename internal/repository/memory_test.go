package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"marketplace/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Listings(t *testing.T) {
	repo := NewMemoryStore(time.Minute)
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	listing := &models.Listing{ID: 1, Title: "Cleaning", Availability: []string{"Mon"}}
	require.NoError(t, repo.SetListing(ctx, listing, 0))

	got, err := repo.GetListing(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Cleaning", got.Title)

	// Mutating the returned copy must not leak into the cache.
	got.Availability[0] = "Sun"
	again, err := repo.GetListing(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mon"}, again.Availability)

	now = now.Add(2 * time.Minute)
	expired, err := repo.GetListing(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, expired)

	require.NoError(t, repo.SetListing(ctx, listing, 0))
	require.NoError(t, repo.DeleteListing(ctx, 1))
	deleted, err := repo.GetListing(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, deleted)
}

func TestMemoryStore_StaleVersionSkipsWrite(t *testing.T) {
	repo := NewMemoryStore(time.Minute)
	ctx := context.Background()

	version, err := repo.ListingVersion(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)

	// an invalidation lands between the reader's version read and its write
	require.NoError(t, repo.DeleteListing(ctx, 3))
	require.NoError(t, repo.SetListing(ctx, &models.Listing{ID: 3, AverageRating: 0}, version))

	got, err := repo.GetListing(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, got)

	current, err := repo.ListingVersion(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), current)
	require.NoError(t, repo.SetListing(ctx, &models.Listing{ID: 3, AverageRating: 5}, current))

	got, err = repo.GetListing(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 5.0, got.AverageRating)
}

func TestMemoryStore_SweepsExpiredEntries(t *testing.T) {
	repo := NewMemoryStore(time.Minute)
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		_, err := repo.CheckRateLimit(ctx, "login:"+ip, 5, time.Minute)
		require.NoError(t, err)
	}
	require.NoError(t, repo.SetListing(ctx, &models.Listing{ID: 1}, 0))
	assert.Len(t, repo.rateLimits, 3)

	now = now.Add(2 * time.Minute)
	_, err := repo.CheckRateLimit(ctx, "login:10.0.0.9", 5, time.Minute)
	require.NoError(t, err)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Len(t, repo.rateLimits, 1)
	assert.Contains(t, repo.rateLimits, "login:10.0.0.9")
	assert.Empty(t, repo.listings)
}

func TestMemoryStore_RateLimit(t *testing.T) {
	repo := NewMemoryStore(time.Minute)
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := repo.CheckRateLimit(ctx, "login:a", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, _ := repo.CheckRateLimit(ctx, "login:a", 2, time.Minute)
	assert.False(t, allowed)

	other, _ := repo.CheckRateLimit(ctx, "login:b", 2, time.Minute)
	assert.True(t, other)

	now = now.Add(61 * time.Second)
	allowed, _ = repo.CheckRateLimit(ctx, "login:a", 2, time.Minute)
	assert.True(t, allowed)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	repo := NewMemoryStore(time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, err := repo.CheckRateLimit(ctx, "burst", 10, time.Minute)
			if err == nil && allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, allowedCount)
}
