package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"marketplace/internal/database"
	"marketplace/internal/domain"
	"marketplace/internal/events"
	"marketplace/internal/metrics"
	"marketplace/internal/models"

	"github.com/rs/zerolog"
)

type BookingService struct {
	bookings       domain.BookingRepository
	listings       domain.ListingRepository
	eventBus       domain.EventPublisher
	maxBookingDays int
	logger         *zerolog.Logger
	now            func() time.Time
}

func NewBookingService(
	bookings domain.BookingRepository,
	listings domain.ListingRepository,
	eventBus domain.EventPublisher,
	maxBookingDays int,
	logger *zerolog.Logger,
) *BookingService {
	if maxBookingDays <= 0 {
		maxBookingDays = models.DefaultMaxBookingDays
	}
	return &BookingService{
		bookings:       bookings,
		listings:       listings,
		eventBus:       eventBus,
		maxBookingDays: maxBookingDays,
		logger:         logger,
		now:            time.Now,
	}
}

// ValidateBookingDate parses a YYYY-MM-DD date and checks it lies after
// today and within the booking horizon. It returns the normalized date.
func (s *BookingService) ValidateBookingDate(raw string) (string, error) {
	date, err := time.ParseInLocation(models.DateLayout, strings.TrimSpace(raw), time.Local)
	if err != nil {
		return "", validationf("booking_date must be a date in YYYY-MM-DD format")
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)

	// Проверяем, что дата в будущем
	if !date.After(today) {
		return "", validationf("Booking date must be in the future")
	}

	// Проверяем максимальную дату
	if date.After(today.AddDate(0, 0, s.maxBookingDays)) {
		return "", validationf("Booking date must be within %d days", s.maxBookingDays)
	}

	return date.Format(models.DateLayout), nil
}

// CreateBooking books a listing for one date. At most one pending or
// accepted booking can exist per listing and date; a second attempt
// returns database.ErrSlotTaken.
func (s *BookingService) CreateBooking(ctx context.Context, customerID, listingID int64, rawDate string) (*models.Booking, error) {
	if listingID <= 0 {
		return nil, validationf("listingId is required")
	}
	date, err := s.ValidateBookingDate(rawDate)
	if err != nil {
		return nil, err
	}

	if _, err := s.listings.GetListing(ctx, listingID); err != nil {
		return nil, err
	}

	booking := &models.Booking{
		ListingID:   listingID,
		CustomerID:  customerID,
		BookingDate: date,
	}
	if err := s.bookings.CreateBookingWithLock(ctx, booking); err != nil {
		if errors.Is(err, database.ErrSlotTaken) {
			metrics.IncBookingConflict()
		}
		return nil, err
	}
	metrics.IncBookingTransition(models.StatusPending)

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("listing_id", listingID).
		Str("date", date).
		Msg("Booking created")

	full, err := s.bookings.GetBooking(ctx, booking.ID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("booking_id", booking.ID).Msg("Failed to reload booking")
		return booking, nil
	}

	s.publishEvent(ctx, events.EventBookingCreated, full)
	return full, nil
}

// UpdateStatus moves a pending booking to accepted, rejected or cancelled on
// behalf of the listing's provider. Checks run in a fixed order: status
// value, existence, ownership, current state.
func (s *BookingService) UpdateStatus(ctx context.Context, providerID, bookingID int64, status string) (*models.Booking, error) {
	if !models.IsTargetStatus(status) {
		return nil, validationf("Invalid status")
	}

	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.ProviderID != providerID {
		return nil, ErrForbidden
	}
	if booking.Status != models.StatusPending {
		return nil, database.ErrInvalidTransition
	}

	if err := s.bookings.UpdateBookingStatus(ctx, bookingID, models.StatusPending, status); err != nil {
		return nil, err
	}
	booking.Status = status
	booking.UpdatedAt = s.now()
	metrics.IncBookingTransition(status)

	s.logger.Info().
		Int64("booking_id", bookingID).
		Int64("provider_id", providerID).
		Str("status", status).
		Msg("Booking status updated")

	s.publishEvent(ctx, events.EventBookingStatusChanged, booking)
	return booking, nil
}

func (s *BookingService) CustomerBookings(ctx context.Context, customerID int64) ([]models.Booking, error) {
	return s.bookings.GetCustomerBookings(ctx, customerID)
}

func (s *BookingService) ProviderBookings(ctx context.Context, providerID int64) ([]models.Booking, error) {
	return s.bookings.GetProviderBookings(ctx, providerID)
}

func (s *BookingService) publishEvent(ctx context.Context, eventType string, b *models.Booking) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:     b.ID,
		ListingID:     b.ListingID,
		ListingTitle:  b.ListingTitle,
		BookingDate:   b.BookingDate,
		Status:        b.Status,
		CustomerID:    b.CustomerID,
		CustomerName:  b.CustomerName,
		CustomerEmail: b.CustomerEmail,
		ProviderID:    b.ProviderID,
		ProviderName:  b.ProviderName,
		ProviderEmail: b.ProviderEmail,
	}

	if err := s.eventBus.PublishJSON(ctx, eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Int64("booking_id", b.ID).Msg("Failed to publish booking event")
	}
}
