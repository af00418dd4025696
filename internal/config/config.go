package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Data struct {
		Dir       string `yaml:"dir"`
		ExportDir string `yaml:"export_dir"`
	} `yaml:"data"`
	Provider struct {
		Name    string `yaml:"name"`     // "yahoo" or "stooq"
		BaseURL string `yaml:"base_url"` // endpoint override, mostly for mirrors
	} `yaml:"provider"`
	Symbols []string `yaml:"symbols"`
	Fetch   struct {
		MaxRetries        int     `yaml:"max_retries"`
		RetryDelaySec     int     `yaml:"retry_delay_sec"`
		TimeoutSec        int     `yaml:"timeout_sec"`
		MinPrice          float64 `yaml:"min_price"`
		MaxPriceChangePct float64 `yaml:"max_price_change_pct"`
		DefaultInterval   string  `yaml:"default_interval"`
		DefaultPeriod     string  `yaml:"default_period"`
		DefaultStartDate  string  `yaml:"default_start_date"`
	} `yaml:"fetch"`
	Schedule struct {
		DailyCron    string `yaml:"daily_cron"`
		IntradayCron string `yaml:"intraday_cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Proxy    string `yaml:"proxy"`
	LogLevel string `yaml:"log_level"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error; a .env file
// in the working directory is honored first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("EXPORT_DIR"); v != "" {
		cfg.Data.ExportDir = v
	}
	if v := os.Getenv("PROVIDER"); v != "" {
		cfg.Provider.Name = v
	}
	if v := os.Getenv("PROVIDER_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		cfg.Symbols = splitSymbols(v)
	}
	if v := os.Getenv("MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Fetch.MaxRetries = n
		}
	}
	if v := os.Getenv("RETRY_DELAY_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Fetch.RetryDelaySec = n
		}
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("CRON_DAILY"); v != "" {
		cfg.Schedule.DailyCron = v
	}
	if v := os.Getenv("CRON_INTRADAY"); v != "" {
		cfg.Schedule.IntradayCron = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	// Defaults
	if cfg.Data.Dir == "" {
		cfg.Data.Dir = "data"
	}
	if cfg.Data.ExportDir == "" {
		cfg.Data.ExportDir = "data/exports"
	}
	if cfg.Provider.Name == "" {
		cfg.Provider.Name = "yahoo"
	}
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA"}
	}
	if cfg.Fetch.MaxRetries == 0 {
		cfg.Fetch.MaxRetries = 3
	}
	if cfg.Fetch.RetryDelaySec == 0 {
		cfg.Fetch.RetryDelaySec = 5
	}
	if cfg.Fetch.TimeoutSec == 0 {
		cfg.Fetch.TimeoutSec = 30
	}
	if cfg.Fetch.MinPrice == 0 {
		cfg.Fetch.MinPrice = 0.01
	}
	if cfg.Fetch.MaxPriceChangePct == 0 {
		cfg.Fetch.MaxPriceChangePct = 50
	}
	if cfg.Fetch.DefaultInterval == "" {
		cfg.Fetch.DefaultInterval = "1h"
	}
	if cfg.Fetch.DefaultPeriod == "" {
		cfg.Fetch.DefaultPeriod = "730d"
	}
	if cfg.Fetch.DefaultStartDate == "" {
		cfg.Fetch.DefaultStartDate = "2000-01-01"
	}
	if cfg.Schedule.DailyCron == "" {
		cfg.Schedule.DailyCron = "0 30 22 * * 1-5"
	}
	if cfg.Schedule.IntradayCron == "" {
		cfg.Schedule.IntradayCron = "0 15 */4 * * 1-5"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/archive.db"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// Validate checks that all required fields are sane.
func (c *Config) Validate() error {
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir is required")
	}
	if c.Provider.Name != "yahoo" && c.Provider.Name != "stooq" {
		return fmt.Errorf("provider.name must be yahoo or stooq, got %q", c.Provider.Name)
	}
	if c.Fetch.MaxRetries <= 0 {
		return fmt.Errorf("fetch.max_retries must be positive")
	}
	if c.Fetch.RetryDelaySec < 0 {
		return fmt.Errorf("fetch.retry_delay_sec must not be negative")
	}
	if c.Fetch.TimeoutSec <= 0 {
		return fmt.Errorf("fetch.timeout_sec must be positive")
	}
	if c.Fetch.MaxPriceChangePct <= 0 {
		return fmt.Errorf("fetch.max_price_change_pct must be positive")
	}
	return nil
}

// RetryDelay returns the inter-attempt delay as a duration.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Fetch.RetryDelaySec) * time.Second
}

// Timeout returns the request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSec) * time.Second
}

func splitSymbols(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
