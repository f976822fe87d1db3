package service

import (
	"context"
	"strings"

	"marketplace/internal/domain"
	"marketplace/internal/events"
	"marketplace/internal/metrics"
	"marketplace/internal/models"

	"github.com/rs/zerolog"
)

type ReviewInput struct {
	ListingID int64
	Rating    int
	Comment   string
}

type ReviewResult struct {
	Review        models.Review
	Created       bool
	AverageRating float64
}

type ReviewService struct {
	repo     domain.ReviewRepository
	listings domain.ListingInvalidator
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

// NewReviewService builds the service; listings drops the cached listing
// after each write and may be nil.
func NewReviewService(repo domain.ReviewRepository, listings domain.ListingInvalidator, eventBus domain.EventPublisher, logger *zerolog.Logger) *ReviewService {
	return &ReviewService{repo: repo, listings: listings, eventBus: eventBus, logger: logger}
}

// AddOrUpdate stores the customer's review of a listing, replacing an
// earlier one, and returns the listing's recomputed average rating.
func (s *ReviewService) AddOrUpdate(ctx context.Context, customerID int64, in ReviewInput) (*ReviewResult, error) {
	if in.ListingID <= 0 {
		return nil, validationf("listingId is required")
	}
	if in.Rating < models.MinRating || in.Rating > models.MaxRating {
		return nil, validationf("Rating must be between %d and %d", models.MinRating, models.MaxRating)
	}

	review := models.Review{
		ListingID:  in.ListingID,
		CustomerID: customerID,
		Rating:     in.Rating,
		Comment:    strings.TrimSpace(in.Comment),
	}
	created, avg, err := s.repo.SaveReview(ctx, &review)
	if err != nil {
		return nil, err
	}

	op := "update"
	if created {
		op = "insert"
	}
	metrics.IncReviewWrite(op)

	if s.listings != nil {
		s.listings.Invalidate(ctx, in.ListingID)
	}

	s.logger.Info().
		Int64("listing_id", in.ListingID).
		Int64("customer_id", customerID).
		Str("op", op).
		Float64("average_rating", avg).
		Msg("Review saved")

	if s.eventBus != nil {
		payload := events.ReviewEventPayload{
			ReviewID:      review.ID,
			ListingID:     review.ListingID,
			CustomerID:    customerID,
			Rating:        review.Rating,
			Created:       created,
			AverageRating: avg,
		}
		if err := s.eventBus.PublishJSON(ctx, events.EventReviewSaved, payload); err != nil {
			s.logger.Error().Err(err).Msg("Failed to publish review event")
		}
	}

	return &ReviewResult{Review: review, Created: created, AverageRating: avg}, nil
}

func (s *ReviewService) ListingReviews(ctx context.Context, listingID int64) ([]models.Review, error) {
	return s.repo.GetListingReviews(ctx, listingID)
}

func (s *ReviewService) ProviderStats(ctx context.Context, providerID int64) (*models.ProviderReviewStats, error) {
	return s.repo.GetProviderReviewStats(ctx, providerID)
}
