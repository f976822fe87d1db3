package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/models"
)

// SaveReview stores the customer's review for a listing and recomputes the
// listing's average_rating in the same transaction. A second review from the
// same customer replaces the first. created reports whether a new row was
// inserted.
func (db *DB) SaveReview(ctx context.Context, review *models.Review) (created bool, avg float64, err error) {
	now := time.Now()
	err = db.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM service_listings WHERE id = ?)`, review.ListingID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check listing: %w", err)
		}
		if !exists {
			return ErrNotFound
		}

		var existingID int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM reviews WHERE listing_id = ? AND customer_id = ?`,
			review.ListingID, review.CustomerID).Scan(&existingID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			result, err := tx.ExecContext(ctx,
				`INSERT INTO reviews (listing_id, customer_id, rating, comment, created_at) VALUES (?, ?, ?, ?, ?)`,
				review.ListingID, review.CustomerID, review.Rating, review.Comment, now)
			if err != nil {
				return fmt.Errorf("failed to insert review: %w", err)
			}
			id, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to get last insert id: %w", err)
			}
			review.ID = id
			created = true
		case err != nil:
			return fmt.Errorf("failed to look up review: %w", err)
		default:
			if _, err := tx.ExecContext(ctx,
				`UPDATE reviews SET rating = ?, comment = ?, created_at = ? WHERE id = ?`,
				review.Rating, review.Comment, now, existingID); err != nil {
				return fmt.Errorf("failed to update review: %w", err)
			}
			review.ID = existingID
			created = false
		}

		var mean sql.NullFloat64
		if err := tx.QueryRowContext(ctx,
			`SELECT AVG(rating) FROM reviews WHERE listing_id = ?`, review.ListingID).Scan(&mean); err != nil {
			return fmt.Errorf("failed to compute average rating: %w", err)
		}
		avg = models.RoundRating(mean.Float64)

		if _, err := tx.ExecContext(ctx,
			`UPDATE service_listings SET average_rating = ? WHERE id = ?`, avg, review.ListingID); err != nil {
			return fmt.Errorf("failed to update average rating: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, 0, err
	}

	review.CreatedAt = now
	return created, avg, nil
}

// GetListingReviews returns reviews with reviewer names, most recent first.
func (db *DB) GetListingReviews(ctx context.Context, listingID int64) ([]models.Review, error) {
	query := `SELECT r.id, r.listing_id, r.customer_id, u.name, r.rating, r.comment, r.created_at
              FROM reviews r
              JOIN users u ON u.id = r.customer_id
              WHERE r.listing_id = ?
              ORDER BY r.created_at DESC, r.id DESC`
	rows, err := db.QueryContext(ctx, query, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reviews: %w", err)
	}
	defer rows.Close()

	reviews := []models.Review{}
	for rows.Next() {
		var r models.Review
		if err := rows.Scan(&r.ID, &r.ListingID, &r.CustomerID, &r.CustomerName, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// GetProviderReviewStats aggregates reviews over all of the provider's
// listings with a single grouped query.
func (db *DB) GetProviderReviewStats(ctx context.Context, providerID int64) (*models.ProviderReviewStats, error) {
	query := `SELECT l.id, l.title, COUNT(r.id), COALESCE(SUM(r.rating), 0)
              FROM service_listings l
              LEFT JOIN reviews r ON r.listing_id = l.id
              WHERE l.provider_id = ?
              GROUP BY l.id, l.title
              ORDER BY l.id`
	rows, err := db.QueryContext(ctx, query, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get provider review stats: %w", err)
	}
	defer rows.Close()

	stats := &models.ProviderReviewStats{Listings: []models.ListingReviewStats{}}
	var ratingSum int
	for rows.Next() {
		var s models.ListingReviewStats
		var sum int
		if err := rows.Scan(&s.ListingID, &s.Title, &s.ReviewCount, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan review stats: %w", err)
		}
		if s.ReviewCount > 0 {
			s.AverageRating = models.RoundRating(float64(sum) / float64(s.ReviewCount))
		}
		stats.TotalReviews += s.ReviewCount
		ratingSum += sum
		stats.Listings = append(stats.Listings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if stats.TotalReviews > 0 {
		stats.AverageRating = models.RoundRating(float64(ratingSum) / float64(stats.TotalReviews))
	}
	return stats, nil
}
