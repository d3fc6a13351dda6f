package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// ServerWriteTimeout is the HTTP server's write deadline. A record has to
// finish inside it, so RecordTimeout must be shorter.
const ServerWriteTimeout = 15 * time.Second

// Config holds all configuration for the application.
type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	TimeSourceURLs              []string      `yaml:"time_source_urls"`
	TimeSourcePath              string        `yaml:"time_source_path"`
	TimeSourceTimeout           time.Duration `yaml:"time_source_timeout"`
	TimeSourceRetriesNextServer int           `yaml:"time_source_retries_next_server"`
	TimeSourceRateLimit         int           `yaml:"time_source_rate_limit"`
	BreakerThreshold            int           `yaml:"time_source_breaker_threshold"`
	BreakerCooldown             time.Duration `yaml:"time_source_breaker_cooldown"`

	RecordTimeout time.Duration `yaml:"record_timeout"`
	NumWorkers    int           `yaml:"num_workers"`

	EventStore  string `yaml:"event_store"`
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`

	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

func defaults() *Config {
	return &Config{
		Port:              "8080",
		LogLevel:          "info",
		TimeSourcePath:    "/",
		TimeSourceTimeout: 2 * time.Second,
		BreakerThreshold:  5,
		BreakerCooldown:   30 * time.Second,
		RecordTimeout:     5 * time.Second,
		NumWorkers:        16,
		EventStore:        StoreMemory,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	if urls := getEnv("TIME_SOURCE_URLS", ""); urls != "" {
		cfg.TimeSourceURLs = splitList(urls)
	}
	cfg.TimeSourcePath = getEnv("TIME_SOURCE_PATH", cfg.TimeSourcePath)
	cfg.TimeSourceTimeout = getEnvMillis("TIME_SOURCE_TIMEOUT_MS", cfg.TimeSourceTimeout)
	cfg.TimeSourceRetriesNextServer = getEnvInt("TIME_SOURCE_RETRIES_NEXT_SERVER", cfg.TimeSourceRetriesNextServer)
	cfg.TimeSourceRateLimit = getEnvInt("TIME_SOURCE_RATE_LIMIT", cfg.TimeSourceRateLimit)
	cfg.BreakerThreshold = getEnvInt("TIME_SOURCE_BREAKER_THRESHOLD", cfg.BreakerThreshold)
	cfg.BreakerCooldown = getEnvMillis("TIME_SOURCE_BREAKER_COOLDOWN_MS", cfg.BreakerCooldown)
	cfg.RecordTimeout = getEnvMillis("RECORD_TIMEOUT_MS", cfg.RecordTimeout)
	cfg.NumWorkers = getEnvInt("NUM_WORKERS", cfg.NumWorkers)
	cfg.EventStore = getEnv("EVENT_STORE", cfg.EventStore)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.OTLPEndpoint = getEnv("OTLP_ENDPOINT", cfg.OTLPEndpoint)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.TimeSourceURLs) == 0 {
		return fmt.Errorf("TIME_SOURCE_URLS is required")
	}
	switch c.EventStore {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when EVENT_STORE=%s", StorePostgres)
		}
	default:
		return fmt.Errorf("unknown EVENT_STORE %q", c.EventStore)
	}
	if c.NumWorkers <= 0 {
		return fmt.Errorf("NUM_WORKERS must be positive, got %d", c.NumWorkers)
	}
	if c.TimeSourceRetriesNextServer < 0 {
		return fmt.Errorf("TIME_SOURCE_RETRIES_NEXT_SERVER must not be negative")
	}
	if c.RecordTimeout <= 0 || c.RecordTimeout >= ServerWriteTimeout {
		return fmt.Errorf("RECORD_TIMEOUT_MS must be between 0 and %d exclusive, got %d",
			ServerWriteTimeout.Milliseconds(), c.RecordTimeout.Milliseconds())
	}
	if c.BreakerThreshold <= 0 {
		return fmt.Errorf("TIME_SOURCE_BREAKER_THRESHOLD must be positive, got %d", c.BreakerThreshold)
	}
	if c.BreakerCooldown < time.Second {
		return fmt.Errorf("TIME_SOURCE_BREAKER_COOLDOWN_MS must be at least 1000, got %d", c.BreakerCooldown.Milliseconds())
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvMillis(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return time.Duration(n) * time.Millisecond
		}
	}
	return fallback
}

func splitList(csv string) []string {
	var out []string
	for _, s := range strings.Split(csv, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
