package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace/internal/models"

	"github.com/doug-martin/goqu/v9"
)

// SyncServices makes sure every configured category exists.
func (db *DB) SyncServices(ctx context.Context, names []string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for _, name := range names {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO services (name) VALUES (?)`, name); err != nil {
				return fmt.Errorf("failed to sync service %q: %w", name, err)
			}
		}
		return nil
	})
}

func (db *DB) GetServices(ctx context.Context) ([]models.Service, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name FROM services ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to get services: %w", err)
	}
	defer rows.Close()

	services := []models.Service{}
	for rows.Next() {
		var s models.Service
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

// GetServiceByName looks a category up case-insensitively.
func (db *DB) GetServiceByName(ctx context.Context, name string) (*models.Service, error) {
	var s models.Service
	err := db.QueryRowContext(ctx, `SELECT id, name FROM services WHERE name = ?`, strings.TrimSpace(name)).
		Scan(&s.ID, &s.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return &s, nil
}

// CreateListing inserts the listing and its availability days in one transaction.
func (db *DB) CreateListing(ctx context.Context, listing *models.Listing) error {
	now := time.Now()
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO service_listings (provider_id, service_id, title, description, price, city, average_rating, created_at)
             VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
			listing.ProviderID,
			listing.ServiceID,
			listing.Title,
			listing.Description,
			listing.Price,
			listing.City,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert listing: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}

		for _, day := range listing.Availability {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO availability_slots (listing_id, day_of_week) VALUES (?, ?)`, id, day); err != nil {
				return fmt.Errorf("failed to insert availability slot: %w", err)
			}
		}

		listing.ID = id
		return nil
	})
	if err != nil {
		return err
	}

	listing.CreatedAt = now
	listing.AverageRating = 0
	return nil
}

func (db *DB) GetListing(ctx context.Context, id int64) (*models.Listing, error) {
	listings, err := db.queryListings(ctx, db.listingSelect().Where(goqu.I("l.id").Eq(id)))
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, ErrNotFound
	}
	return &listings[0], nil
}

// ListListings returns listings matching the filter, newest first.
func (db *DB) ListListings(ctx context.Context, filter models.ListingFilter) ([]models.Listing, error) {
	ds := db.listingSelect()

	if city := strings.TrimSpace(filter.City); city != "" {
		ds = ds.Where(goqu.Func("LOWER", goqu.I("l.city")).Eq(strings.ToLower(city)))
	}
	if category := strings.TrimSpace(filter.Category); category != "" {
		ds = ds.Where(goqu.Func("LOWER", goqu.I("s.name")).Eq(strings.ToLower(category)))
	}
	if filter.PriceMin != nil {
		ds = ds.Where(goqu.I("l.price").Gte(*filter.PriceMin))
	}
	if filter.PriceMax != nil {
		ds = ds.Where(goqu.I("l.price").Lte(*filter.PriceMax))
	}

	return db.queryListings(ctx, ds.Order(goqu.I("l.created_at").Desc(), goqu.I("l.id").Desc()))
}

func (db *DB) listingSelect() *goqu.SelectDataset {
	return db.dialect.
		From(goqu.T("service_listings").As("l")).
		Join(goqu.T("services").As("s"), goqu.On(goqu.I("s.id").Eq(goqu.I("l.service_id")))).
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("l.provider_id")))).
		Select(
			"l.id", "l.provider_id", "u.name", "l.service_id", "s.name",
			"l.title", "l.description", "l.price", "l.city", "l.average_rating", "l.created_at",
		)
}

func (db *DB) queryListings(ctx context.Context, ds *goqu.SelectDataset) ([]models.Listing, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build listings query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get listings: %w", err)
	}

	listings := []models.Listing{}
	for rows.Next() {
		var l models.Listing
		if err := rows.Scan(
			&l.ID, &l.ProviderID, &l.ProviderName, &l.ServiceID, &l.Category,
			&l.Title, &l.Description, &l.Price, &l.City, &l.AverageRating, &l.CreatedAt,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		l.Availability = []string{}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate listings: %w", err)
	}
	// rows must be released before the next query: in-memory databases have one connection
	rows.Close()

	if err := db.attachAvailability(ctx, listings); err != nil {
		return nil, err
	}
	return listings, nil
}

func (db *DB) attachAvailability(ctx context.Context, listings []models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(listings))
	index := make(map[int64]int, len(listings))
	for i, l := range listings {
		ids = append(ids, l.ID)
		index[l.ID] = i
	}

	query, args, err := db.dialect.
		From("availability_slots").
		Select("listing_id", "day_of_week").
		Where(goqu.Ex{"listing_id": ids}).
		Order(goqu.I("id").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build availability query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to get availability: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var listingID int64
		var day string
		if err := rows.Scan(&listingID, &day); err != nil {
			return fmt.Errorf("failed to scan availability: %w", err)
		}
		if i, ok := index[listingID]; ok {
			listings[i].Availability = append(listings[i].Availability, day)
		}
	}
	return rows.Err()
}
