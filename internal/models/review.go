package models

import "time"

type Review struct {
	ID           int64     `json:"id"`
	ListingID    int64     `json:"listing_id"`
	CustomerID   int64     `json:"customer_id"`
	CustomerName string    `json:"customer_name,omitempty"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	CreatedAt    time.Time `json:"created_at"`
}

type ListingReviewStats struct {
	ListingID     int64   `json:"listing_id"`
	Title         string  `json:"title"`
	ReviewCount   int     `json:"review_count"`
	AverageRating float64 `json:"average_rating"`
}

type ProviderReviewStats struct {
	TotalReviews  int                  `json:"total_reviews"`
	AverageRating float64              `json:"average_rating"`
	Listings      []ListingReviewStats `json:"listings"`
}
