package domain

import (
	"context"
	"time"

	"marketplace/internal/models"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	EmailExists(ctx context.Context, email string) (bool, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	SetRefreshToken(ctx context.Context, userID int64, token *string) error
}

type ListingRepository interface {
	GetServices(ctx context.Context) ([]models.Service, error)
	GetServiceByName(ctx context.Context, name string) (*models.Service, error)
	CreateListing(ctx context.Context, listing *models.Listing) error
	GetListing(ctx context.Context, id int64) (*models.Listing, error)
	ListListings(ctx context.Context, filter models.ListingFilter) ([]models.Listing, error)
}

type BookingRepository interface {
	CreateBookingWithLock(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id int64, from, to string) error
	GetCustomerBookings(ctx context.Context, customerID int64) ([]models.Booking, error)
	GetProviderBookings(ctx context.Context, providerID int64) ([]models.Booking, error)
}

type ReviewRepository interface {
	SaveReview(ctx context.Context, review *models.Review) (created bool, avg float64, err error)
	GetListingReviews(ctx context.Context, listingID int64) ([]models.Review, error)
	GetProviderReviewStats(ctx context.Context, providerID int64) (*models.ProviderReviewStats, error)
}

type NotificationRepository interface {
	CreateNotificationTask(ctx context.Context, task *models.NotificationTask) error
	GetNotificationTask(ctx context.Context, id int64) (*models.NotificationTask, error)
	GetPendingNotificationTasks(ctx context.Context, limit int) ([]models.NotificationTask, error)
	ClaimNotificationTask(ctx context.Context, id int64) (bool, error)
	ResetStuckNotificationTasks(ctx context.Context) (int64, error)
	UpdateNotificationTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// ListingCache keeps listing reads off the database. Get returns nil, nil
// on a miss. DeleteListing bumps the listing's version, and SetListing
// stores nothing unless the version it is given is still current, so a read
// that raced an invalidation cannot put its stale copy back.
type ListingCache interface {
	GetListing(ctx context.Context, id int64) (*models.Listing, error)
	ListingVersion(ctx context.Context, id int64) (int64, error)
	SetListing(ctx context.Context, listing *models.Listing, version int64) error
	DeleteListing(ctx context.Context, id int64) error
}

// ListingInvalidator drops cached copies of a listing after a write that
// changes it.
type ListingInvalidator interface {
	Invalidate(ctx context.Context, id int64)
}

// RateLimiter counts attempts per key inside a fixed window.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type CacheStore interface {
	ListingCache
	RateLimiter
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, eventType string, payload interface{}) error
}
