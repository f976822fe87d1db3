package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"marketplace/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig          `yaml:"app"`
	HTTP          HTTPConfig         `yaml:"http"`
	Database      DatabaseConfig     `yaml:"database"`
	Redis         RedisConfig        `yaml:"redis"`
	Auth          AuthConfig         `yaml:"auth"`
	Booking       BookingConfig      `yaml:"booking"`
	Mail          MailConfig         `yaml:"mail"`
	Notifications NotificationConfig `yaml:"notifications"`
	Backup        BackupConfig       `yaml:"backup"`
	Monitoring    MonitoringConfig   `yaml:"monitoring"`
	Logging       LoggingConfig      `yaml:"logging"`
	Services      []string           `yaml:"services"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

func (a AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

type HTTPConfig struct {
	Port         int             `yaml:"port"`
	CORSOrigin   string          `yaml:"cors_origin"`
	ReadTimeout  time.Duration   `yaml:"read_timeout"`
	WriteTimeout time.Duration   `yaml:"write_timeout"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"pool_size"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type AuthConfig struct {
	AccessSecret  string        `yaml:"access_secret"`
	RefreshSecret string        `yaml:"refresh_secret"`
	AccessTTL     time.Duration `yaml:"access_ttl"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl"`
	LoginAttempts int           `yaml:"login_attempts"`
	LoginWindow   time.Duration `yaml:"login_window"`
}

type BookingConfig struct {
	MaxDaysAhead int `yaml:"max_days_ahead"`
}

type MailConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	From     string        `yaml:"from"`
	UseTLS   bool          `yaml:"use_tls"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Enabled reports whether an SMTP relay is configured.
func (m MailConfig) Enabled() bool {
	return m.Host != ""
}

type NotificationConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
	RetryJitter   float64       `yaml:"retry_jitter"`
	SendTimeout   time.Duration `yaml:"send_timeout"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	QueueKey      string        `yaml:"queue_key"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// .env не обязателен, переменные могут прийти из окружения
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Auth.AccessSecret == "" || c.Auth.RefreshSecret == "" {
		return errors.New("auth access and refresh secrets are required")
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return errors.New("auth access and refresh secrets must differ")
	}

	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Mail.Enabled() && c.Mail.From == "" {
		return errors.New("mail from address is required when mail host is set")
	}

	return ValidateServices(c.Services)
}

func ValidateServices(names []string) error {
	seen := make(map[string]bool)
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			return errors.New("service name must not be empty")
		}
		if seen[key] {
			return fmt.Errorf("duplicate service name found: %s", name)
		}
		seen[key] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "marketplace"
	}
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 5000
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 30 * time.Second
	}
	if c.HTTP.RateLimit.RPS == 0 {
		c.HTTP.RateLimit.RPS = 20
	}
	if c.HTTP.RateLimit.Burst == 0 {
		c.HTTP.RateLimit.Burst = 40
	}
	if c.Redis.CacheTTL == 0 {
		c.Redis.CacheTTL = models.ListingCacheTTL * time.Second
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	// Auth defaults
	if c.Auth.AccessTTL == 0 {
		c.Auth.AccessTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTTL == 0 {
		c.Auth.RefreshTTL = 7 * 24 * time.Hour
	}
	if c.Auth.LoginAttempts == 0 {
		c.Auth.LoginAttempts = 10
	}
	if c.Auth.LoginWindow == 0 {
		c.Auth.LoginWindow = time.Minute
	}

	if c.Booking.MaxDaysAhead == 0 {
		c.Booking.MaxDaysAhead = models.DefaultMaxBookingDays
	}

	if c.Mail.Port == 0 {
		c.Mail.Port = 587
	}
	if c.Mail.Timeout == 0 {
		c.Mail.Timeout = 30 * time.Second
	}

	// Notification worker defaults
	if c.Notifications.MaxRetries == 0 {
		c.Notifications.MaxRetries = 5
	}
	if c.Notifications.InitialDelay == 0 {
		c.Notifications.InitialDelay = 2 * time.Second
	}
	if c.Notifications.MaxDelay == 0 {
		c.Notifications.MaxDelay = 5 * time.Minute
	}
	if c.Notifications.BackoffFactor == 0 {
		c.Notifications.BackoffFactor = 2
	}
	if c.Notifications.RetryJitter == 0 {
		c.Notifications.RetryJitter = 0.2
	}
	if c.Notifications.SendTimeout == 0 {
		c.Notifications.SendTimeout = time.Minute
	}
	if c.Notifications.PollInterval == 0 {
		c.Notifications.PollInterval = 5 * time.Second
	}
	if c.Notifications.QueueKey == "" {
		c.Notifications.QueueKey = "notifications:queue"
	}

	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "./backups"
	}
}
