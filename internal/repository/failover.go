package repository

import (
	"context"
	"sync/atomic"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverStore serves from primary (Redis) and switches to fallback
// (memory) after the first primary error. Reads retry the primary once per
// recovery interval.
type FailoverStore struct {
	primary   domain.CacheStore
	fallback  domain.CacheStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time
}

func NewFailoverStore(primary, fallback domain.CacheStore, logger *zerolog.Logger) *FailoverStore {
	return &FailoverStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (r *FailoverStore) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary cache failed, falling back to memory")
	}
	r.lastCheck.Store(r.now().UnixNano())
}

// usePrimary reports whether the primary should be tried now.
func (r *FailoverStore) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return r.now().Sub(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverStore) recovered() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary cache recovered")
	}
}

func (r *FailoverStore) GetListing(ctx context.Context, id int64) (*models.Listing, error) {
	if r.usePrimary() {
		listing, err := r.primary.GetListing(ctx, id)
		if err == nil {
			r.recovered()
			return listing, nil
		}
		r.markDown(err)
	}
	return r.fallback.GetListing(ctx, id)
}

// ListingVersion reads from the store that takes writes right now. Each
// store keeps its own counter and DeleteListing bumps both.
func (r *FailoverStore) ListingVersion(ctx context.Context, id int64) (int64, error) {
	if !r.isDown.Load() {
		version, err := r.primary.ListingVersion(ctx, id)
		if err == nil {
			return version, nil
		}
		r.markDown(err)
	}
	return r.fallback.ListingVersion(ctx, id)
}

func (r *FailoverStore) SetListing(ctx context.Context, listing *models.Listing, version int64) error {
	if !r.isDown.Load() {
		err := r.primary.SetListing(ctx, listing, version)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetListing(ctx, listing, version)
}

// DeleteListing always clears both stores so a recovered primary never
// serves a listing invalidated while it was down.
func (r *FailoverStore) DeleteListing(ctx context.Context, id int64) error {
	if err := r.primary.DeleteListing(ctx, id); err != nil {
		r.markDown(err)
	}
	return r.fallback.DeleteListing(ctx, id)
}

func (r *FailoverStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
