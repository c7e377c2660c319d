package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
// Values come from (lowest to highest precedence) built-in defaults,
// an optional YAML file and environment variables (.env included).
type Config struct {
	Port     int    `yaml:"port"`
	APIKey   string `yaml:"keystring"`
	StoreURI string `yaml:"uri"`

	ListingsAPIURL   string `yaml:"listings_api_url"`
	PageSize         int    `yaml:"page_size"`
	MaxOffset        int    `yaml:"max_offset"`
	RateLimitMs      int    `yaml:"rate_limit_ms"`
	MaxRetries       int    `yaml:"max_retries"`
	FetchTimeoutSecs int    `yaml:"fetch_timeout_secs"`

	RefreshSchedule string `yaml:"refresh_schedule"`
	LogLevel        string `yaml:"log_level"`
	CSVOutputPath   string `yaml:"csv_output_path"`
}

// Load reads the .env file, the optional YAML file at path and the
// environment, and returns a populated Config.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := defaults()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	cfg.Port = getEnvInt("PORT", cfg.Port)
	cfg.APIKey = getEnv("KEYSTRING", cfg.APIKey)
	cfg.StoreURI = getEnv("URI", cfg.StoreURI)

	cfg.ListingsAPIURL = getEnv("LISTINGS_API_URL", cfg.ListingsAPIURL)
	cfg.PageSize = getEnvInt("PAGE_SIZE", cfg.PageSize)
	cfg.MaxOffset = getEnvInt("MAX_OFFSET", cfg.MaxOffset)
	cfg.RateLimitMs = getEnvInt("RATE_LIMIT_MS", cfg.RateLimitMs)
	cfg.MaxRetries = getEnvInt("MAX_RETRIES", cfg.MaxRetries)
	cfg.FetchTimeoutSecs = getEnvInt("FETCH_TIMEOUT_SECS", cfg.FetchTimeoutSecs)

	cfg.RefreshSchedule = getEnv("REFRESH_SCHEDULE", cfg.RefreshSchedule)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.CSVOutputPath = getEnv("CSV_OUTPUT_PATH", cfg.CSVOutputPath)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Port:     5000,
		StoreURI: "sqlite://keyword-median.db",

		ListingsAPIURL:   "https://openapi.etsy.com",
		PageSize:         100,
		MaxOffset:        5000,
		RateLimitMs:      0,
		MaxRetries:       1,
		FetchTimeoutSecs: 30,

		LogLevel:      "info",
		CSVOutputPath: "./output/word_medians.csv",
	}
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.PageSize <= 0 {
		return errors.New("page_size must be positive")
	}
	if c.MaxOffset < 0 {
		return errors.New("max_offset must not be negative")
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = 1
	}
	if c.StoreURI == "" {
		return errors.New("uri is required")
	}
	return nil
}

// RequireAPIKey reports an error when no listings API key is configured.
// Only the commands that talk to the listings API need one.
func (c *Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return errors.New("config: KEYSTRING is required")
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// FetchTimeout returns the per-request timeout for the listings API.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSecs) * time.Second
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
