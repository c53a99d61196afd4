package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
)

const (
	defaultJWTSecret     = "change-me-jwt-secret"
	defaultAdminPassword = "admin123"

	RetentionRetain = "retain"
	RetentionPurge  = "purge"
)

type Config struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	DatabaseURL string `envconfig:"DATABASE_URL" default:"parking.db"`

	JWTSecret string        `envconfig:"JWT_SECRET" default:"change-me-jwt-secret"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`

	AdminUsername string `envconfig:"ADMIN_USERNAME" default:"admin"`
	AdminEmail    string `envconfig:"ADMIN_EMAIL" default:"admin@parking.com"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD" default:"admin123"`

	// ReservationRetention is "retain" (closed reservations stay as history)
	// or "purge" (the reservation is deleted right after it is closed).
	ReservationRetention string        `envconfig:"RESERVATION_RETENTION" default:"retain"`
	HistoryRetention     time.Duration `envconfig:"HISTORY_RETENTION" default:"0s"`
	HistoryPruneSchedule string        `envconfig:"HISTORY_PRUNE_SCHEDULE" default:"@daily"`

	// MaintenanceToken guards /internal endpoints; empty disables them.
	MaintenanceToken      string   `envconfig:"MAINTENANCE_TOKEN"`
	MaintenanceAllowedIPs []string `envconfig:"MAINTENANCE_ALLOWED_IPS"`

	CORSAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file loaded (%v)", err)
	}

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	cfg.ReservationRetention = strings.ToLower(strings.TrimSpace(cfg.ReservationRetention))

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	log.Printf("config loaded: env=%s addr=%s retention=%s history_retention=%s",
		cfg.AppEnv, cfg.HTTPAddr, cfg.ReservationRetention, cfg.HistoryRetention)
	return cfg, nil
}

// PurgeOnRelease reports whether closed reservations are removed at release.
func (c *Config) PurgeOnRelease() bool {
	return c.ReservationRetention == RetentionPurge
}

func validateConfig(cfg *Config) error {
	if cfg.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be > 0")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if cfg.ReservationRetention != RetentionRetain && cfg.ReservationRetention != RetentionPurge {
		return fmt.Errorf("RESERVATION_RETENTION must be one of: retain, purge")
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be > 0")
	}
	if cfg.HistoryRetention < 0 {
		return fmt.Errorf("HISTORY_RETENTION must be >= 0")
	}
	if cfg.HistoryRetention > 0 {
		if _, err := cron.ParseStandard(cfg.HistoryPruneSchedule); err != nil {
			return fmt.Errorf("invalid HISTORY_PRUNE_SCHEDULE %q: %w", cfg.HistoryPruneSchedule, err)
		}
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if isEmptyOrDefault(cfg.AdminPassword, defaultAdminPassword) {
			return fmt.Errorf("in prod/release ADMIN_PASSWORD must be set and not default")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}
