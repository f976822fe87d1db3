package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/models"
)

const bookingSelect = `
    SELECT b.id, b.listing_id, b.customer_id, b.booking_date, b.status, b.created_at, b.updated_at,
           l.title, l.city, l.price, l.provider_id, p.name, p.email, c.name, c.email
    FROM bookings b
    JOIN service_listings l ON l.id = b.listing_id
    JOIN users p ON p.id = l.provider_id
    JOIN users c ON c.id = b.customer_id`

// CreateBookingWithLock checks the date and inserts a pending booking in one
// immediate transaction. The partial unique index on active bookings backs
// the check, so a lost race surfaces as ErrSlotTaken as well.
func (db *DB) CreateBookingWithLock(ctx context.Context, booking *models.Booking) error {
	now := time.Now()
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var taken int
		queryCount := `SELECT COUNT(*) FROM bookings WHERE listing_id = ? AND booking_date = ? AND status IN (?, ?)`
		err := tx.QueryRowContext(ctx, queryCount,
			booking.ListingID, booking.BookingDate, models.StatusPending, models.StatusAccepted).Scan(&taken)
		if err != nil {
			return fmt.Errorf("failed to check availability in tx: %w", err)
		}
		if taken > 0 {
			return ErrSlotTaken
		}

		queryInsert := `INSERT INTO bookings (listing_id, customer_id, booking_date, status, created_at, updated_at)
                        VALUES (?, ?, ?, ?, ?, ?)`
		result, err := tx.ExecContext(ctx, queryInsert,
			booking.ListingID,
			booking.CustomerID,
			booking.BookingDate,
			models.StatusPending,
			now,
			now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrSlotTaken
			}
			return fmt.Errorf("failed to insert booking in tx: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id in tx: %w", err)
		}
		booking.ID = id
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return err
	}

	booking.Status = models.StatusPending
	booking.CreatedAt = now
	booking.UpdatedAt = now
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	booking, err := scanBooking(db.QueryRowContext(ctx, bookingSelect+` WHERE b.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// UpdateBookingStatus moves a booking from one status to another. It only
// succeeds while the row is still in the from status; otherwise it returns
// ErrInvalidTransition and nothing is written.
func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, from, to string) error {
	query := `UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query, to, time.Now(), id, from)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (db *DB) GetCustomerBookings(ctx context.Context, customerID int64) ([]models.Booking, error) {
	return db.queryBookings(ctx, bookingSelect+` WHERE b.customer_id = ? ORDER BY b.booking_date DESC, b.id DESC`, customerID)
}

func (db *DB) GetProviderBookings(ctx context.Context, providerID int64) ([]models.Booking, error) {
	return db.queryBookings(ctx, bookingSelect+` WHERE l.provider_id = ? ORDER BY b.booking_date DESC, b.id DESC`, providerID)
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...interface{}) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings: %w", err)
	}
	defer rows.Close()

	bookings := []models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(
		&b.ID, &b.ListingID, &b.CustomerID, &b.BookingDate, &b.Status, &b.CreatedAt, &b.UpdatedAt,
		&b.ListingTitle, &b.ListingCity, &b.ListingPrice, &b.ProviderID, &b.ProviderName, &b.ProviderEmail,
		&b.CustomerName, &b.CustomerEmail,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
