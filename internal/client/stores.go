package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"marketplace/internal/models"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
}

// AuthStore holds the logged-in user. The user is dropped once the client
// reports the session as expired.
type AuthStore struct {
	client *Client
	mu     sync.RWMutex
	user   *models.User
}

func NewAuthStore(c *Client) *AuthStore {
	s := &AuthStore{client: c}
	c.OnSessionExpired(s.clear)
	return s
}

func (s *AuthStore) Register(ctx context.Context, req RegisterRequest) (int64, error) {
	return s.register(ctx, "/auth/register", req)
}

func (s *AuthStore) RegisterProvider(ctx context.Context, req RegisterRequest) (int64, error) {
	return s.register(ctx, "/auth/register-provider", req)
}

func (s *AuthStore) register(ctx context.Context, path string, req RegisterRequest) (int64, error) {
	var resp struct {
		UserID int64 `json:"userId"`
	}
	if err := s.client.doPublic(ctx, http.MethodPost, path, req, &resp); err != nil {
		return 0, err
	}
	return resp.UserID, nil
}

func (s *AuthStore) Login(ctx context.Context, email, password string) (*models.User, error) {
	var resp struct {
		User models.User `json:"user"`
	}
	in := map[string]string{"email": email, "password": password}
	if err := s.client.doPublic(ctx, http.MethodPost, "/auth/login", in, &resp); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.user = &resp.User
	s.mu.Unlock()
	return &resp.User, nil
}

// Logout ends the session; the local user is cleared even if the server
// call fails.
func (s *AuthStore) Logout(ctx context.Context) error {
	err := s.client.doJSON(ctx, http.MethodPost, "/auth/logout", nil, nil)
	s.clear()
	return err
}

func (s *AuthStore) clear() {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
}

func (s *AuthStore) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *AuthStore) IsAuthenticated() bool {
	return s.User() != nil
}

type ListingInput struct {
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Price        float64  `json:"price"`
	City         string   `json:"city"`
	ServiceName  string   `json:"serviceName"`
	Availability []string `json:"availability"`
}

type ReviewInput struct {
	ListingID int64  `json:"listingId"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
}

// ReviewResult is the server's answer to a review write.
type ReviewResult struct {
	Message       string        `json:"message"`
	Review        models.Review `json:"review"`
	AverageRating float64       `json:"average_rating"`
}

// ListingStore caches the browse list for the current filter along with the
// service catalogue.
type ListingStore struct {
	client   *Client
	mu       sync.RWMutex
	filter   models.ListingFilter
	listings []models.Listing
	services []models.Service
}

func NewListingStore(c *Client) *ListingStore {
	return &ListingStore{client: c}
}

// SetFilter replaces the filter; call Refresh to apply it.
func (s *ListingStore) SetFilter(f models.ListingFilter) {
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
}

func (s *ListingStore) Refresh(ctx context.Context) error {
	s.mu.RLock()
	f := s.filter
	s.mu.RUnlock()

	q := url.Values{}
	if f.City != "" {
		q.Set("city", f.City)
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.PriceMin != nil {
		q.Set("price_min", strconv.FormatFloat(*f.PriceMin, 'f', -1, 64))
	}
	if f.PriceMax != nil {
		q.Set("price_max", strconv.FormatFloat(*f.PriceMax, 'f', -1, 64))
	}

	var listings []models.Listing
	if err := s.client.doPublic(ctx, http.MethodGet, withQuery("/listings", q), nil, &listings); err != nil {
		return err
	}

	s.mu.Lock()
	s.listings = listings
	s.mu.Unlock()
	return nil
}

func (s *ListingStore) Listings() []models.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Listing(nil), s.listings...)
}

func (s *ListingStore) Get(ctx context.Context, id int64) (*models.Listing, error) {
	var listing models.Listing
	if err := s.client.doPublic(ctx, http.MethodGet, fmt.Sprintf("/listings/%d", id), nil, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

func (s *ListingStore) Services(ctx context.Context) ([]models.Service, error) {
	s.mu.RLock()
	cached := s.services
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	var services []models.Service
	if err := s.client.doPublic(ctx, http.MethodGet, "/services", nil, &services); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.services = services
	s.mu.Unlock()
	return services, nil
}

// Create publishes a listing and refreshes the browse list.
func (s *ListingStore) Create(ctx context.Context, in ListingInput) (int64, error) {
	var resp struct {
		ListingID int64 `json:"listingId"`
	}
	if err := s.client.doJSON(ctx, http.MethodPost, "/listings", in, &resp); err != nil {
		return 0, err
	}
	return resp.ListingID, s.Refresh(ctx)
}

func (s *ListingStore) Reviews(ctx context.Context, listingID int64) ([]models.Review, error) {
	var reviews []models.Review
	if err := s.client.doPublic(ctx, http.MethodGet, fmt.Sprintf("/reviews/%d", listingID), nil, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// AddReview stores a review and refreshes the browse list so the new
// average rating shows up.
func (s *ListingStore) AddReview(ctx context.Context, in ReviewInput) (*ReviewResult, error) {
	var result ReviewResult
	if err := s.client.doJSON(ctx, http.MethodPost, "/reviews", in, &result); err != nil {
		return nil, err
	}
	return &result, s.Refresh(ctx)
}

func (s *ListingStore) ProviderReviewStats(ctx context.Context) (*models.ProviderReviewStats, error) {
	var stats models.ProviderReviewStats
	if err := s.client.doJSON(ctx, http.MethodGet, "/reviews/provider", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// BookingStore caches the caller's bookings: their own for customers, the
// ones on their listings for providers.
type BookingStore struct {
	client   *Client
	role     string
	mu       sync.RWMutex
	bookings []models.Booking
}

func NewBookingStore(c *Client, role string) *BookingStore {
	return &BookingStore{client: c, role: role}
}

func (s *BookingStore) Refresh(ctx context.Context) error {
	path := "/bookings/my"
	if s.role == models.RoleProvider {
		path = "/bookings/provider"
	}

	var bookings []models.Booking
	if err := s.client.doJSON(ctx, http.MethodGet, path, nil, &bookings); err != nil {
		return err
	}

	s.mu.Lock()
	s.bookings = bookings
	s.mu.Unlock()
	return nil
}

func (s *BookingStore) Bookings() []models.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Booking(nil), s.bookings...)
}

func (s *BookingStore) Create(ctx context.Context, listingID int64, date string) (*models.Booking, error) {
	var resp struct {
		Booking models.Booking `json:"booking"`
	}
	in := map[string]interface{}{"listingId": listingID, "booking_date": date}
	if err := s.client.doJSON(ctx, http.MethodPost, "/bookings", in, &resp); err != nil {
		return nil, err
	}
	return &resp.Booking, s.Refresh(ctx)
}

func (s *BookingStore) UpdateStatus(ctx context.Context, bookingID int64, status string) error {
	path := fmt.Sprintf("/bookings/%d/status", bookingID)
	if err := s.client.doJSON(ctx, http.MethodPatch, path, map[string]string{"status": status}, nil); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// Export downloads the provider's bookings as an XLSX workbook.
func (s *BookingStore) Export(ctx context.Context) ([]byte, error) {
	return s.client.doAuthed(ctx, http.MethodGet, "/bookings/provider/export", nil)
}
