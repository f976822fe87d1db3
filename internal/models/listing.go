package models

import "time"

// Service is a category of listings, e.g. "Plumbing".
type Service struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

type Listing struct {
	ID            int64     `json:"id"`
	ProviderID    int64     `json:"provider_id"`
	ProviderName  string    `json:"provider_name"`
	ServiceID     int64     `json:"service_id"`
	Category      string    `json:"category"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Price         float64   `json:"price"`
	City          string    `json:"city"`
	AverageRating float64   `json:"average_rating"`
	Availability  []string  `json:"availability"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListingFilter narrows GET /listings. Nil price bounds are not applied.
type ListingFilter struct {
	City     string
	Category string
	PriceMin *float64
	PriceMax *float64
}
