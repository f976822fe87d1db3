package database

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"marketplace/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func setupMemoryDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, email, role string) *models.User {
	t.Helper()
	u := &models.User{Name: "User " + email, Email: email, PasswordHash: "hash", Role: role}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return u
}

func createTestListing(t *testing.T, db *DB, providerID int64, category, city string, price float64) *models.Listing {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.SyncServices(ctx, []string{category}))
	svc, err := db.GetServiceByName(ctx, category)
	require.NoError(t, err)

	l := &models.Listing{
		ProviderID:   providerID,
		ServiceID:    svc.ID,
		Title:        category + " in " + city,
		Description:  "desc",
		Price:        price,
		City:         city,
		Availability: []string{"monday", "friday"},
	}
	require.NoError(t, db.CreateListing(ctx, l))
	return l
}

func futureDate(days int) string {
	return time.Now().AddDate(0, 0, days).Format(models.DateLayout)
}

func countActiveBookings(t *testing.T, db *DB, listingID int64, date string) int {
	t.Helper()
	var count int
	err := db.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM bookings WHERE listing_id = ? AND booking_date = ? AND status IN (?, ?)`,
		listingID, date, models.StatusPending, models.StatusAccepted).Scan(&count)
	require.NoError(t, err)
	return count
}
