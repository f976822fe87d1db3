package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"marketplace/internal/auth"
	"marketplace/internal/config"
	"marketplace/internal/models"
	"marketplace/internal/service"

	"github.com/rs/zerolog"
)

// Services groups the use cases exposed over HTTP.
type Services struct {
	Auth     *service.AuthService
	Listings *service.ListingService
	Bookings *service.BookingService
	Reviews  *service.ReviewService
}

// Pinger is satisfied by *database.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HTTPServer exposes the marketplace REST API. Every route is served both
// at the root and under /api.
type HTTPServer struct {
	cfg      config.HTTPConfig
	app      config.AppConfig
	services Services
	tokens   *auth.TokenManager
	db       Pinger
	limiter  *rateLimiter
	logger   *zerolog.Logger
	server   *http.Server
}

func NewHTTPServer(
	cfg config.HTTPConfig,
	app config.AppConfig,
	services Services,
	tokens *auth.TokenManager,
	db Pinger,
	logger *zerolog.Logger,
) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	srv := &HTTPServer{
		cfg:      cfg,
		app:      app,
		services: services,
		tokens:   tokens,
		db:       db,
		limiter:  newRateLimiter(cfg.RateLimit),
		logger:   logger,
	}

	readTimeout := cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 15 * time.Second
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
	}
	return srv
}

// Handler returns the full middleware chain around the router.
func (s *HTTPServer) Handler() http.Handler {
	routes := s.routes()

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", routes))
	root.Handle("/", routes)

	var h http.Handler = root
	h = s.rateLimitMiddleware(h)
	h = s.corsMiddleware(h)
	h = s.loggingMiddleware(h)
	h = requestIDMiddleware(h)
	h = s.recoverMiddleware(h)
	return h
}

func (s *HTTPServer) routes() *http.ServeMux {
	mux := http.NewServeMux()

	s.handle(mux, "POST /auth/register", s.handleRegister(models.RoleCustomer))
	s.handle(mux, "POST /auth/register-provider", s.handleRegister(models.RoleProvider))
	s.handle(mux, "POST /auth/login", s.handleLogin)
	s.handle(mux, "POST /auth/logout", s.requireRole(s.handleLogout, models.RoleCustomer, models.RoleProvider))
	s.handle(mux, "POST /refresh-token", s.handleRefresh)

	s.handle(mux, "POST /listings", s.requireRole(s.handleCreateListing, models.RoleProvider))
	s.handle(mux, "GET /listings", s.handleListListings)
	s.handle(mux, "GET /listings/{id}", s.handleGetListing)
	s.handle(mux, "GET /services", s.handleServices)

	s.handle(mux, "POST /bookings", s.requireRole(s.handleCreateBooking, models.RoleCustomer))
	s.handle(mux, "GET /bookings/my", s.requireRole(s.handleCustomerBookings, models.RoleCustomer))
	s.handle(mux, "GET /bookings/provider", s.requireRole(s.handleProviderBookings, models.RoleProvider))
	s.handle(mux, "GET /bookings/provider/export", s.requireRole(s.handleExportBookings, models.RoleProvider))
	s.handle(mux, "PATCH /bookings/{id}/status", s.requireRole(s.handleUpdateBookingStatus, models.RoleProvider))

	s.handle(mux, "POST /reviews", s.requireRole(s.handleAddReview, models.RoleCustomer))
	s.handle(mux, "GET /reviews/provider", s.requireRole(s.handleProviderReviewStats, models.RoleProvider))
	s.handle(mux, "GET /reviews/{listingId}", s.handleListingReviews)

	s.handle(mux, "GET /healthz", s.handleHealth)

	return mux
}

// handle registers h and tags the access log with the matched pattern.
func (s *HTTPServer) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		if rec, ok := w.(*statusRecorder); ok {
			rec.route = pattern
		}
		h(w, r)
	})
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
