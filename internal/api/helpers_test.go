package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"marketplace/internal/auth"
	"marketplace/internal/config"
	"marketplace/internal/database"
	"marketplace/internal/events"
	"marketplace/internal/models"
	"marketplace/internal/repository"
	"marketplace/internal/service"

	"github.com/alexedwards/argon2id"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	db     *database.DB
	bus    *events.EventBus
	server *HTTPServer
	ts     *httptest.Server
}

func newTestEnv(t *testing.T, httpCfg config.HTTPConfig) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.SyncServices(context.Background(), []string{"Plumbing", "Cleaning"}))

	store := repository.NewMemoryStore(time.Minute)
	bus := events.NewEventBus(&logger)
	tokens := auth.NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour)
	hasher := auth.NewPasswordHasher(&argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})

	listings := service.NewListingService(db, store, &logger)
	services := Services{
		Auth: service.NewAuthService(db, tokens, hasher, store,
			config.AuthConfig{LoginAttempts: 100, LoginWindow: time.Minute}, &logger),
		Listings: listings,
		Bookings: service.NewBookingService(db, db, bus, 365, &logger),
		Reviews:  service.NewReviewService(db, listings, bus, &logger),
	}

	srv := NewHTTPServer(httpCfg, config.AppConfig{Environment: "test"}, services, tokens, db, &logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{db: db, bus: bus, server: srv, ts: ts}
}

type testClient struct {
	t    *testing.T
	base string
	http *http.Client
}

func (e *testEnv) client(t *testing.T) *testClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testClient{t: t, base: e.ts.URL, http: &http.Client{Jar: jar}}
}

func (c *testClient) do(method, path string, body any) (*http.Response, []byte) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

// signup registers and logs in a user, leaving the session cookies in the
// client's jar.
func (c *testClient) signup(role, email string) int64 {
	c.t.Helper()
	path := "/auth/register"
	if role == models.RoleProvider {
		path = "/auth/register-provider"
	}
	resp, data := c.do(http.MethodPost, path, map[string]string{
		"name": "User " + email, "email": email, "password": "secret123",
	})
	require.Equal(c.t, http.StatusCreated, resp.StatusCode, string(data))
	created := decode[struct {
		UserID int64 `json:"userId"`
	}](c.t, data)

	resp, data = c.do(http.MethodPost, "/auth/login", map[string]string{"email": email, "password": "secret123"})
	require.Equal(c.t, http.StatusOK, resp.StatusCode, string(data))
	return created.UserID
}

func (c *testClient) createListing(title string) int64 {
	c.t.Helper()
	resp, data := c.do(http.MethodPost, "/listings", map[string]any{
		"title":        title,
		"description":  "Fast and tidy",
		"price":        80,
		"city":         "Austin",
		"serviceName":  "Plumbing",
		"availability": []string{"Mon", "Wed"},
	})
	require.Equal(c.t, http.StatusCreated, resp.StatusCode, string(data))
	return decode[struct {
		ListingID int64 `json:"listingId"`
	}](c.t, data).ListingID
}

func futureDate(days int) string {
	return time.Now().AddDate(0, 0, days).Format(models.DateLayout)
}
