package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"marketplace/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetListing(ctx context.Context, id int64) (*models.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *mockStore) ListingVersion(ctx context.Context, id int64) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) SetListing(ctx context.Context, listing *models.Listing, version int64) error {
	args := m.Called(ctx, listing, version)
	return args.Error(0)
}

func (m *mockStore) DeleteListing(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverStore(t *testing.T) {
	primary := new(mockStore)
	fallback := new(mockStore)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverStore(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		listing := &models.Listing{ID: 1}
		primary.On("GetListing", ctx, int64(1)).Return(listing, nil).Once()

		got, err := repo.GetListing(ctx, 1)
		assert.NoError(t, err)
		assert.Equal(t, listing, got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		listing := &models.Listing{ID: 2}
		primary.On("GetListing", ctx, int64(2)).Return(nil, errors.New("fail")).Once()
		fallback.On("GetListing", ctx, int64(2)).Return(listing, nil).Once()

		got, err := repo.GetListing(ctx, 2)
		assert.NoError(t, err)
		assert.Equal(t, listing, got)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("WritesGoToFallbackWhileDown", func(t *testing.T) {
		listing := &models.Listing{ID: 3}
		fallback.On("ListingVersion", ctx, int64(3)).Return(int64(2), nil).Once()
		fallback.On("SetListing", ctx, listing, int64(2)).Return(nil).Once()
		fallback.On("CheckRateLimit", ctx, "login:x", 5, time.Minute).Return(true, nil).Once()

		version, err := repo.ListingVersion(ctx, 3)
		assert.NoError(t, err)
		assert.NoError(t, repo.SetListing(ctx, listing, version))
		allowed, err := repo.CheckRateLimit(ctx, "login:x", 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		fallback.AssertExpectations(t)
	})

	t.Run("DeleteClearsBoth", func(t *testing.T) {
		primary.On("DeleteListing", ctx, int64(4)).Return(errors.New("still down")).Once()
		fallback.On("DeleteListing", ctx, int64(4)).Return(nil).Once()

		assert.NoError(t, repo.DeleteListing(ctx, 4))
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())

		listing := &models.Listing{ID: 5}
		primary.On("GetListing", ctx, int64(5)).Return(listing, nil).Once()

		got, err := repo.GetListing(ctx, 5)
		assert.NoError(t, err)
		assert.Equal(t, listing, got)
		assert.False(t, repo.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("NoRecoveryBeforeInterval", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck.Store(time.Now().UnixNano())

		fallback.On("GetListing", ctx, int64(6)).Return(nil, nil).Once()

		got, err := repo.GetListing(ctx, 6)
		assert.NoError(t, err)
		assert.Nil(t, got)
		primary.AssertNotCalled(t, "GetListing", ctx, int64(6))
		fallback.AssertExpectations(t)
	})

	t.Run("VersionErrorMarksDown", func(t *testing.T) {
		repo.isDown.Store(false)
		primary.On("ListingVersion", ctx, int64(7)).Return(int64(0), errors.New("fail")).Once()
		fallback.On("ListingVersion", ctx, int64(7)).Return(int64(4), nil).Once()

		version, err := repo.ListingVersion(ctx, 7)
		assert.NoError(t, err)
		assert.Equal(t, int64(4), version)
		assert.True(t, repo.isDown.Load())
	})

	t.Run("RateLimitPrimary", func(t *testing.T) {
		repo.isDown.Store(false)
		primary.On("CheckRateLimit", ctx, "login:y", 5, time.Minute).Return(false, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, "login:y", 5, time.Minute)
		assert.NoError(t, err)
		assert.False(t, allowed)
		primary.AssertExpectations(t)
	})
}
