package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL     = "http://localhost:8000/api/v1"
	DefaultAuthScheme = "Token"
	DefaultTimeout    = 30 * time.Second
)

// Credential store backends
const (
	StoreKeyring = "keyring"
	StoreFile    = "file"
	StoreSQLite  = "sqlite"
	StoreMemory  = "memory"
)

// Config holds all configuration for the CLI
type Config struct {
	// API Configuration
	API APIConfig

	// Credential storage configuration
	Credentials CredentialsConfig

	// Logging Configuration
	Logging LoggingConfig
}

// APIConfig describes how to reach the VagALI backend
type APIConfig struct {
	URL        string
	AuthScheme string // "Token" (DRF) or "Bearer"
	Timeout    time.Duration
}

// CredentialsConfig selects where the auth token is persisted
type CredentialsConfig struct {
	Backend string // keyring, file, sqlite, memory
	File    string // path used by the file backend
	DB      string // path used by the sqlite backend
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	timeout := DefaultTimeout
	if raw := os.Getenv("VAGALI_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid VAGALI_TIMEOUT %q: %w", raw, err)
		}
		timeout = d
	}

	cfg := &Config{
		API: APIConfig{
			URL:        strings.TrimRight(getEnv("VAGALI_API_URL", DefaultAPIURL), "/"),
			AuthScheme: getEnv("VAGALI_AUTH_SCHEME", DefaultAuthScheme),
			Timeout:    timeout,
		},
		Credentials: CredentialsConfig{
			Backend: strings.ToLower(getEnv("VAGALI_CREDENTIAL_STORE", StoreKeyring)),
			File:    os.Getenv("VAGALI_CREDENTIAL_FILE"),
			DB:      os.Getenv("VAGALI_CREDENTIAL_DB"),
		},
		// CLI output goes to the terminal, so stay quiet unless asked
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "warn"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.API.URL == "" {
		return fmt.Errorf("VAGALI_API_URL cannot be empty")
	}
	if !strings.HasPrefix(c.API.URL, "http://") && !strings.HasPrefix(c.API.URL, "https://") {
		return fmt.Errorf("VAGALI_API_URL must start with http:// or https://")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("VAGALI_TIMEOUT must be > 0")
	}
	switch c.Credentials.Backend {
	case StoreKeyring, StoreFile, StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("unknown VAGALI_CREDENTIAL_STORE %q (want keyring, file, sqlite or memory)", c.Credentials.Backend)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
