package models

import "time"

type Booking struct {
	ID          int64     `json:"id"`
	ListingID   int64     `json:"listing_id"`
	CustomerID  int64     `json:"customer_id"`
	BookingDate string    `json:"booking_date"` // YYYY-MM-DD
	Status      string    `json:"status"`       // pending, accepted, rejected, cancelled
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Joined from service_listings and users.
	ListingTitle  string  `json:"title,omitempty"`
	ListingCity   string  `json:"city,omitempty"`
	ListingPrice  float64 `json:"price,omitempty"`
	ProviderID    int64   `json:"provider_id,omitempty"`
	ProviderName  string  `json:"provider_name,omitempty"`
	ProviderEmail string  `json:"-"`
	CustomerName  string  `json:"customer_name,omitempty"`
	CustomerEmail string  `json:"-"`
}
