package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"marketplace/internal/api"
	"marketplace/internal/auth"
	"marketplace/internal/config"
	"marketplace/internal/database"
	"marketplace/internal/domain"
	"marketplace/internal/events"
	"marketplace/internal/logging"
	"marketplace/internal/metrics"
	"marketplace/internal/notify"
	"marketplace/internal/repository"
	"marketplace/internal/service"
	"marketplace/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer (func() { _ = repository.Close(redisClient) })()
	}

	cache := initCache(cfg, redisClient, &logger)
	bus := events.NewEventBus(logging.Component(&logger, "events"))

	tokens := auth.NewTokenManager(cfg.Auth.AccessSecret, cfg.Auth.RefreshSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	listings := service.NewListingService(db, cache, logging.Component(&logger, "listings"))
	services := api.Services{
		Auth: service.NewAuthService(db, tokens, auth.NewPasswordHasher(nil), cache, cfg.Auth,
			logging.Component(&logger, "auth")),
		Listings: listings,
		Bookings: service.NewBookingService(db, db, bus, cfg.Booking.MaxDaysAhead,
			logging.Component(&logger, "bookings")),
		Reviews: service.NewReviewService(db, listings, bus, logging.Component(&logger, "reviews")),
	}

	var wg sync.WaitGroup
	startNotifications(ctx, &wg, cfg, db, redisClient, bus, &logger)

	backups := database.NewBackupService(db, cfg.Backup, logging.Component(&logger, "backup"))
	wg.Add(1)
	go func() {
		defer wg.Done()
		backups.Start(ctx)
	}()

	startMetrics(ctx, cfg, &logger)

	httpServer := api.NewHTTPServer(cfg.HTTP, cfg.App, services, tokens, db, logging.Component(&logger, "http"))
	err = startServer(ctx, httpServer, cfg, &logger)
	// background workers must stop before the database closes
	stop()
	wg.Wait()
	return err
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	if err := db.SyncServices(ctx, cfg.Services); err != nil {
		_ = db.Close()
		logger.Error().Err(err).Msg("sync service catalogue")
		return nil, err
	}
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initCache prefers redis and falls back to process memory while it is down.
func initCache(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.CacheStore {
	memory := repository.NewMemoryStore(cfg.Redis.CacheTTL)
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverStore(
		repository.NewRedisStore(redisClient, cfg.Redis.CacheTTL),
		memory,
		logging.Component(logger, "cache"),
	)
}

func startNotifications(
	ctx context.Context,
	wg *sync.WaitGroup,
	cfg *config.Config,
	db *database.DB,
	redisClient *redis.Client,
	bus *events.EventBus,
	logger *zerolog.Logger,
) {
	mailLogger := logging.Component(logger, "mail")

	var sender notify.Sender
	if cfg.Mail.Enabled() {
		sender = notify.NewSMTPSender(cfg.Mail, mailLogger)
	} else {
		logger.Warn().Msg("mail host is not configured, notifications are only logged")
		sender = notify.NewLogSender(mailLogger)
	}

	notificationWorker := worker.NewNotificationWorker(db, sender, redisClient, cfg.Notifications,
		logging.Component(logger, "notification-worker"))
	wg.Add(1)
	go func() {
		defer wg.Done()
		notificationWorker.Start(ctx)
	}()

	notify.NewSubscriber(notificationWorker, mailLogger).Register(bus)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().
		Int("http_port", cfg.HTTP.Port).
		Str("environment", cfg.App.Environment).
		Msg("API server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
	}

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
