package service

import (
	"context"
	"errors"
	"strings"

	"marketplace/internal/database"
	"marketplace/internal/domain"
	"marketplace/internal/models"

	"github.com/rs/zerolog"
)

type CreateListingInput struct {
	Title        string
	Description  string
	Price        float64
	City         string
	ServiceName  string
	Availability []string
}

type ListingService struct {
	repo   domain.ListingRepository
	cache  domain.ListingCache
	logger *zerolog.Logger
}

// NewListingService builds the service; cache may be nil.
func NewListingService(repo domain.ListingRepository, cache domain.ListingCache, logger *zerolog.Logger) *ListingService {
	return &ListingService{repo: repo, cache: cache, logger: logger}
}

func (s *ListingService) Create(ctx context.Context, providerID int64, in CreateListingInput) (*models.Listing, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.City = strings.TrimSpace(in.City)
	in.ServiceName = strings.TrimSpace(in.ServiceName)
	if in.Title == "" || in.City == "" || in.ServiceName == "" || in.Availability == nil {
		return nil, validationf("All required fields must be filled")
	}
	if in.Price <= 0 {
		return nil, validationf("Price must be greater than 0")
	}

	days := make([]string, 0, len(in.Availability))
	seen := make(map[string]bool)
	for _, raw := range in.Availability {
		day, ok := models.NormalizeDay(raw)
		if !ok {
			return nil, validationf("Invalid availability day %q", raw)
		}
		if !seen[day] {
			seen[day] = true
			days = append(days, day)
		}
	}

	svc, err := s.repo.GetServiceByName(ctx, in.ServiceName)
	if errors.Is(err, database.ErrNotFound) {
		return nil, validationf("Invalid service name")
	}
	if err != nil {
		return nil, err
	}

	listing := &models.Listing{
		ProviderID:   providerID,
		ServiceID:    svc.ID,
		Category:     svc.Name,
		Title:        in.Title,
		Description:  strings.TrimSpace(in.Description),
		Price:        in.Price,
		City:         in.City,
		Availability: days,
	}
	if err := s.repo.CreateListing(ctx, listing); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("listing_id", listing.ID).Int64("provider_id", providerID).Msg("Listing created")
	return listing, nil
}

func (s *ListingService) List(ctx context.Context, filter models.ListingFilter) ([]models.Listing, error) {
	if filter.PriceMin != nil && filter.PriceMax != nil && *filter.PriceMin > *filter.PriceMax {
		return nil, validationf("price_min must not exceed price_max")
	}
	return s.repo.ListListings(ctx, filter)
}

// Get reads through the listing cache. Cache failures are logged and the
// database answers instead. The cache version is taken before the database
// read, so a copy invalidated meanwhile is not written back.
func (s *ListingService) Get(ctx context.Context, id int64) (*models.Listing, error) {
	fill := s.cache != nil
	var version int64
	if fill {
		cached, err := s.cache.GetListing(ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Int64("listing_id", id).Msg("Listing cache read failed")
		} else if cached != nil {
			return cached, nil
		}

		version, err = s.cache.ListingVersion(ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Int64("listing_id", id).Msg("Listing cache version read failed")
			fill = false
		}
	}

	listing, err := s.repo.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}

	if fill {
		if err := s.cache.SetListing(ctx, listing, version); err != nil {
			s.logger.Warn().Err(err).Int64("listing_id", id).Msg("Listing cache write failed")
		}
	}
	return listing, nil
}

func (s *ListingService) Services(ctx context.Context) ([]models.Service, error) {
	return s.repo.GetServices(ctx)
}

// Invalidate drops the cached copy of a listing.
func (s *ListingService) Invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteListing(ctx, id); err != nil {
		s.logger.Warn().Err(err).Int64("listing_id", id).Msg("Listing cache invalidation failed")
	}
}
