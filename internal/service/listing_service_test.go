package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"marketplace/internal/database"
	"marketplace/internal/domain"
	"marketplace/internal/models"
	"marketplace/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreateListing(t *testing.T) {
	db := newServiceTestDB(t)
	ctx := context.Background()
	provider := seedUser(t, db, "p@example.com", models.RoleProvider)
	s := NewListingService(db, nil, testLogger())

	valid := func() CreateListingInput {
		return CreateListingInput{
			Title:        "Pipe repair",
			Price:        80,
			City:         "Berlin",
			ServiceName:  "plumbing",
			Availability: []string{"Monday", "friday", "monday"},
		}
	}

	l, err := s.Create(ctx, provider.ID, valid())
	require.NoError(t, err)
	assert.Equal(t, "Plumbing", l.Category)
	assert.Equal(t, []string{"monday", "friday"}, l.Availability)

	got, err := s.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"monday", "friday"}, got.Availability)

	tests := []struct {
		name   string
		mutate func(in *CreateListingInput)
	}{
		{name: "missing title", mutate: func(in *CreateListingInput) { in.Title = " " }},
		{name: "zero price", mutate: func(in *CreateListingInput) { in.Price = 0 }},
		{name: "missing availability", mutate: func(in *CreateListingInput) { in.Availability = nil }},
		{name: "bad day", mutate: func(in *CreateListingInput) { in.Availability = []string{"someday"} }},
		{name: "unknown service", mutate: func(in *CreateListingInput) { in.ServiceName = "Astrology" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(&in)
			_, err := s.Create(ctx, provider.ID, in)
			assert.True(t, IsValidation(err), "got %v", err)
		})
	}

	t.Run("EmptyAvailabilityAllowed", func(t *testing.T) {
		in := valid()
		in.Availability = []string{}
		l, err := s.Create(ctx, provider.ID, in)
		require.NoError(t, err)
		assert.Empty(t, l.Availability)
	})
}

func TestListListingsPriceBounds(t *testing.T) {
	s := NewListingService(new(mockListingRepo), nil, testLogger())
	lo, hi := 100.0, 10.0
	_, err := s.List(context.Background(), models.ListingFilter{PriceMin: &lo, PriceMax: &hi})
	assert.True(t, IsValidation(err))
}

func TestGetListingThroughCache(t *testing.T) {
	ctx := context.Background()
	listing := &models.Listing{ID: 7, Title: "cached"}

	t.Run("Hit", func(t *testing.T) {
		repo := new(mockListingRepo)
		cache := new(mockCache)
		cache.On("GetListing", ctx, int64(7)).Return(listing, nil)

		got, err := NewListingService(repo, cache, testLogger()).Get(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, "cached", got.Title)
		repo.AssertNotCalled(t, "GetListing", mock.Anything, mock.Anything)
	})

	t.Run("MissFillsCache", func(t *testing.T) {
		repo := new(mockListingRepo)
		cache := new(mockCache)
		cache.On("GetListing", ctx, int64(7)).Return(nil, nil)
		cache.On("ListingVersion", ctx, int64(7)).Return(int64(3), nil)
		repo.On("GetListing", ctx, int64(7)).Return(listing, nil)
		cache.On("SetListing", ctx, listing, int64(3)).Return(nil)

		_, err := NewListingService(repo, cache, testLogger()).Get(ctx, 7)
		require.NoError(t, err)
		cache.AssertExpectations(t)
	})

	t.Run("VersionErrorSkipsFill", func(t *testing.T) {
		repo := new(mockListingRepo)
		cache := new(mockCache)
		cache.On("GetListing", ctx, int64(7)).Return(nil, nil)
		cache.On("ListingVersion", ctx, int64(7)).Return(int64(0), errors.New("redis down"))
		repo.On("GetListing", ctx, int64(7)).Return(listing, nil)

		got, err := NewListingService(repo, cache, testLogger()).Get(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(7), got.ID)
		cache.AssertNotCalled(t, "SetListing", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("CacheErrorFallsBack", func(t *testing.T) {
		repo := new(mockListingRepo)
		cache := new(mockCache)
		cache.On("GetListing", ctx, int64(7)).Return(nil, errors.New("redis down"))
		cache.On("ListingVersion", ctx, int64(7)).Return(int64(0), nil)
		repo.On("GetListing", ctx, int64(7)).Return(listing, nil)
		cache.On("SetListing", ctx, listing, int64(0)).Return(errors.New("redis down"))

		got, err := NewListingService(repo, cache, testLogger()).Get(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(7), got.ID)
	})

	t.Run("NotFoundNotCached", func(t *testing.T) {
		repo := new(mockListingRepo)
		cache := new(mockCache)
		cache.On("GetListing", ctx, int64(8)).Return(nil, nil)
		cache.On("ListingVersion", ctx, int64(8)).Return(int64(0), nil)
		repo.On("GetListing", ctx, int64(8)).Return(nil, database.ErrNotFound)

		_, err := NewListingService(repo, cache, testLogger()).Get(ctx, 8)
		assert.ErrorIs(t, err, database.ErrNotFound)
		cache.AssertNotCalled(t, "SetListing", mock.Anything, mock.Anything, mock.Anything)
	})
}

// pausingListingRepo holds the first GetListing after its database read
// until resume is closed.
type pausingListingRepo struct {
	domain.ListingRepository
	once      sync.Once
	afterRead chan struct{}
	resume    chan struct{}
}

func (r *pausingListingRepo) GetListing(ctx context.Context, id int64) (*models.Listing, error) {
	listing, err := r.ListingRepository.GetListing(ctx, id)
	r.once.Do(func() {
		close(r.afterRead)
		<-r.resume
	})
	return listing, err
}

func TestGetDoesNotCacheListingInvalidatedDuringRead(t *testing.T) {
	db := newServiceTestDB(t)
	ctx := context.Background()

	provider := seedUser(t, db, "p@example.com", models.RoleProvider)
	customer := seedUser(t, db, "c@example.com", models.RoleCustomer)
	created, err := NewListingService(db, nil, testLogger()).Create(ctx, provider.ID, CreateListingInput{
		Title: "Pipes", Price: 50, City: "Berlin", ServiceName: "Plumbing", Availability: []string{"monday"},
	})
	require.NoError(t, err)

	cache := repository.NewMemoryStore(time.Minute)
	repo := &pausingListingRepo{ListingRepository: db, afterRead: make(chan struct{}), resume: make(chan struct{})}
	listings := NewListingService(repo, cache, testLogger())
	reviews := NewReviewService(db, listings, nil, testLogger())

	type result struct {
		listing *models.Listing
		err     error
	}
	done := make(chan result, 1)
	go func() {
		l, err := listings.Get(ctx, created.ID)
		done <- result{l, err}
	}()

	<-repo.afterRead
	res, err := reviews.AddOrUpdate(ctx, customer.ID, ReviewInput{ListingID: created.ID, Rating: 5})
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.AverageRating)
	close(repo.resume)

	stale := <-done
	require.NoError(t, stale.err)
	assert.Equal(t, 0.0, stale.listing.AverageRating)

	cached, err := cache.GetListing(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, cached)

	fresh, err := listings.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, fresh.AverageRating)

	cached, err = cache.GetListing(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, 5.0, cached.AverageRating)
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	cache := new(mockCache)
	cache.On("DeleteListing", ctx, int64(4)).Return(errors.New("redis down")).Once()

	NewListingService(new(mockListingRepo), cache, testLogger()).Invalidate(ctx, 4)
	cache.AssertExpectations(t)

	assert.NotPanics(t, func() {
		NewListingService(new(mockListingRepo), nil, testLogger()).Invalidate(ctx, 4)
	})
}
