package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppEnv         = "dev"
	defaultDBPath         = "./voltquote.db"
	defaultPort           = "8080"
	defaultMigrationsDir  = "migrations"
	defaultPolicyCacheTTL = 5 * time.Minute
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	AppEnv         string
	DBPath         string
	Port           string
	MigrationsDir  string
	PolicyFile     string
	PolicyCacheTTL time.Duration
	LogLevel       string
}

// IsDev reports whether startup should migrate and seed automatically.
func (c Config) IsDev() bool {
	return c.AppEnv == "" || c.AppEnv == "dev" || c.AppEnv == "development"
}

// Load reads environment variables and returns a populated Config.
func Load() Config {
	// Best-effort: a missing .env is normal outside local development, and
	// godotenv never overrides variables already set.
	_ = godotenv.Load()

	cfg := Config{
		AppEnv:        os.Getenv("APP_ENV"),
		DBPath:        os.Getenv("DB_PATH"),
		Port:          os.Getenv("PORT"),
		MigrationsDir: os.Getenv("MIGRATIONS_DIR"),
		PolicyFile:    os.Getenv("POLICY_FILE"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
	}

	if cfg.AppEnv == "" {
		cfg.AppEnv = defaultAppEnv
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.MigrationsDir == "" {
		cfg.MigrationsDir = defaultMigrationsDir
	}

	ttl, err := parseTTL(os.Getenv("POLICY_CACHE_TTL"))
	if err != nil {
		slog.Warn("invalid POLICY_CACHE_TTL, using default", "error", err, "default", defaultPolicyCacheTTL.String())
		ttl = defaultPolicyCacheTTL
	}
	cfg.PolicyCacheTTL = ttl

	return cfg
}

func parseTTL(raw string) (time.Duration, error) {
	if raw == "" {
		return defaultPolicyCacheTTL, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", raw)
	}
	return d, nil
}
