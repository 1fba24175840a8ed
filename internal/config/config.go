package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

const (
	defaultEnv          = "dev"
	defaultPort         = "8080"
	defaultDBPath       = "./dev.db"
	defaultLogLevel     = "info"
	defaultCurrency     = "BRL"
	defaultTimeout      = 15 * time.Second
	defaultSyncSchedule = "*/30 * * * *"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	Env      string
	Port     string
	DBPath   string
	LogLevel string
	Currency string
	Upstream UpstreamConfig
}

// UpstreamConfig points at the ERP REST API that BOMs are synced from.
type UpstreamConfig struct {
	BaseURL      string
	Token        string
	Timeout      time.Duration
	SyncSchedule string
}

// Load reads envFile into the process environment, without overriding
// variables that are already set, and returns a populated Config.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	cfg := Config{
		Env:      strings.ToLower(getenvWithDefault("APP_ENV", defaultEnv)),
		Port:     getenvWithDefault("PORT", defaultPort),
		DBPath:   getenvWithDefault("DB_PATH", defaultDBPath),
		LogLevel: strings.ToLower(getenvWithDefault("LOG_LEVEL", defaultLogLevel)),
		Currency: strings.ToUpper(getenvWithDefault("CURRENCY", defaultCurrency)),
		Upstream: UpstreamConfig{
			BaseURL:      strings.TrimSuffix(os.Getenv("UPSTREAM_API_URL"), "/"),
			Token:        os.Getenv("UPSTREAM_API_TOKEN"),
			Timeout:      defaultTimeout,
			SyncSchedule: getenvWithDefault("SYNC_SCHEDULE", defaultSyncSchedule),
		},
	}

	if raw := os.Getenv("UPSTREAM_TIMEOUT"); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse UPSTREAM_TIMEOUT: %w", err)
		}
		if timeout <= 0 {
			return Config{}, fmt.Errorf("UPSTREAM_TIMEOUT must be positive, got %s", raw)
		}
		cfg.Upstream.Timeout = timeout
	}

	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return Config{}, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

// IsDev reports whether the app runs in development mode.
func (c Config) IsDev() bool {
	return c.Env == "dev" || c.Env == "development"
}

// SyncEnabled reports whether the upstream BOM sync should run.
func (c Config) SyncEnabled() bool {
	return c.Upstream.BaseURL != ""
}

// Warnings lists configuration gaps that do not prevent startup.
func (c Config) Warnings() []string {
	var warnings []string
	if c.SyncEnabled() && c.Upstream.Token == "" {
		warnings = append(warnings, "UPSTREAM_API_TOKEN is not set")
	}
	if !c.IsDev() && c.DBPath == defaultDBPath {
		warnings = append(warnings, "DB_PATH is using the development default")
	}
	return warnings
}

func getenvWithDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
