// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage selects the persistence backend.
type Storage string

const (
	StorageSQLite Storage = "sqlite"
	StorageMemory Storage = "memory"
)

// minSessionKeyLength mirrors the session adapter's HS256 key requirement.
const minSessionKeyLength = 32

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr        string
	DBPath            string
	Storage           Storage
	SessionKey        []byte
	SessionTTL        time.Duration
	SealKey           string
	PasswordMinLength int
	PurgeInterval     time.Duration
	RateLimit         int
	LogLevel          slog.Level
}

// Load reads configuration from environment variables and returns a validated Config.
// SHAREVAULT_SESSION_KEY (at least 32 bytes) is required. SHAREVAULT_SEAL_KEY,
// an age X25519 identity, is required for sqlite storage.
// Optional variables with defaults: SHAREVAULT_LISTEN_ADDR (127.0.0.1:8080),
// SHAREVAULT_DB_PATH (sharevault.db), SHAREVAULT_STORAGE (sqlite),
// SHAREVAULT_SESSION_TTL (24h), SHAREVAULT_PASSWORD_MIN_LENGTH (8),
// SHAREVAULT_PURGE_INTERVAL (1h), SHAREVAULT_RATE_LIMIT (100 requests per
// client per hour, 0 disables), SHAREVAULT_LOG_LEVEL (info).
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:        "127.0.0.1:8080",
		DBPath:            "sharevault.db",
		Storage:           StorageSQLite,
		SessionTTL:        24 * time.Hour,
		PasswordMinLength: 8,
		PurgeInterval:     time.Hour,
		RateLimit:         100,
		LogLevel:          slog.LevelInfo,
	}

	if v, ok := os.LookupEnv("SHAREVAULT_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}

	if v, ok := os.LookupEnv("SHAREVAULT_DB_PATH"); ok {
		cfg.DBPath = v
	}

	if v, ok := os.LookupEnv("SHAREVAULT_STORAGE"); ok {
		switch s := Storage(strings.ToLower(strings.TrimSpace(v))); s {
		case StorageSQLite, StorageMemory:
			cfg.Storage = s
		default:
			return nil, fmt.Errorf("SHAREVAULT_STORAGE must be %q or %q, got %q", StorageSQLite, StorageMemory, v)
		}
	}

	key := os.Getenv("SHAREVAULT_SESSION_KEY")
	if key == "" {
		return nil, errors.New("SHAREVAULT_SESSION_KEY is required")
	}
	if len(key) < minSessionKeyLength {
		return nil, fmt.Errorf("SHAREVAULT_SESSION_KEY must be at least %d bytes, got %d", minSessionKeyLength, len(key))
	}
	cfg.SessionKey = []byte(key)

	if v, ok := os.LookupEnv("SHAREVAULT_SESSION_TTL"); ok {
		parsed, err := parsePositiveDuration("SHAREVAULT_SESSION_TTL", v)
		if err != nil {
			return nil, err
		}
		cfg.SessionTTL = parsed
	}

	cfg.SealKey = strings.TrimSpace(os.Getenv("SHAREVAULT_SEAL_KEY"))
	if cfg.Storage == StorageSQLite && cfg.SealKey == "" {
		return nil, errors.New("SHAREVAULT_SEAL_KEY is required for sqlite storage")
	}

	if v, ok := os.LookupEnv("SHAREVAULT_PASSWORD_MIN_LENGTH"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("SHAREVAULT_PASSWORD_MIN_LENGTH must be a positive integer, got %q", v)
		}
		cfg.PasswordMinLength = n
	}

	if v, ok := os.LookupEnv("SHAREVAULT_PURGE_INTERVAL"); ok {
		parsed, err := parsePositiveDuration("SHAREVAULT_PURGE_INTERVAL", v)
		if err != nil {
			return nil, err
		}
		cfg.PurgeInterval = parsed
	}

	if v, ok := os.LookupEnv("SHAREVAULT_RATE_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("SHAREVAULT_RATE_LIMIT must be a non-negative integer, got %q", v)
		}
		cfg.RateLimit = n
	}

	if v, ok := os.LookupEnv("SHAREVAULT_LOG_LEVEL"); ok {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("SHAREVAULT_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	return cfg, nil
}

func parsePositiveDuration(name, v string) (time.Duration, error) {
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", name, v, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", name, v)
	}
	return parsed, nil
}
