// Package config loads and validates the appraiser configuration from a
// YAML file with ${VAR} environment expansion.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for optional configuration fields.
const (
	DefaultListenAddr      = ":3000"
	DefaultSteamBaseURL    = "https://api.steampowered.com/"
	DefaultPricingBaseURL  = "https://montuga.com/api/IPricing/inventory"
	DefaultAppID           = 730
	DefaultConversionRate  = 5.25
	DefaultRequestInterval = 1200 * time.Millisecond
	DefaultRequestTimeout  = 30 * time.Second
	DefaultHistoryBackend  = "file"
	DefaultHistoryFile     = "history.json"
	DefaultRedisKey        = "appraiser:history"
	DefaultReportWindow    = 24 * time.Hour
	DefaultLogLevel        = "info"
)

// Config is the top-level appraiser configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Steam   SteamConfig   `yaml:"steam"`
	Pricing PricingConfig `yaml:"pricing"`
	History HistoryConfig `yaml:"history"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// SteamConfig holds Steam Web API settings.
type SteamConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// PricingConfig holds pricing service settings.
type PricingConfig struct {
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	AppID           int           `yaml:"app_id"`
	ConversionRate  float64       `yaml:"conversion_rate"`
	RequestInterval time.Duration `yaml:"request_interval"`
	Timeout         time.Duration `yaml:"timeout"`
}

// HistoryConfig selects and configures the history store backend.
type HistoryConfig struct {
	Backend      string        `yaml:"backend"` // "file" or "redis"
	FilePath     string        `yaml:"file_path"`
	RedisAddr    string        `yaml:"redis_addr"`
	RedisKey     string        `yaml:"redis_key"`
	ReportWindow time.Duration `yaml:"report_window"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills in default values for unset optional fields.
func (c *Config) ApplyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListenAddr
	}

	if c.Steam.BaseURL == "" {
		c.Steam.BaseURL = DefaultSteamBaseURL
	}
	if c.Steam.Timeout == 0 {
		c.Steam.Timeout = DefaultRequestTimeout
	}

	if c.Pricing.BaseURL == "" {
		c.Pricing.BaseURL = DefaultPricingBaseURL
	}
	if c.Pricing.AppID == 0 {
		c.Pricing.AppID = DefaultAppID
	}
	if c.Pricing.ConversionRate == 0 {
		c.Pricing.ConversionRate = DefaultConversionRate
	}
	if c.Pricing.RequestInterval == 0 {
		c.Pricing.RequestInterval = DefaultRequestInterval
	}
	if c.Pricing.Timeout == 0 {
		c.Pricing.Timeout = DefaultRequestTimeout
	}

	if c.History.Backend == "" {
		c.History.Backend = DefaultHistoryBackend
	}
	if c.History.FilePath == "" {
		c.History.FilePath = DefaultHistoryFile
	}
	if c.History.RedisKey == "" {
		c.History.RedisKey = DefaultRedisKey
	}
	if c.History.ReportWindow == 0 {
		c.History.ReportWindow = DefaultReportWindow
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Steam.APIKey == "" {
		return fmt.Errorf("steam.api_key is required")
	}
	if c.Pricing.APIKey == "" {
		return fmt.Errorf("pricing.api_key is required")
	}
	if c.Pricing.ConversionRate <= 0 {
		return fmt.Errorf("pricing.conversion_rate must be positive (got %v)", c.Pricing.ConversionRate)
	}
	if c.Pricing.RequestInterval < 0 {
		return fmt.Errorf("pricing.request_interval must not be negative")
	}

	switch c.History.Backend {
	case "file":
		if c.History.FilePath == "" {
			return fmt.Errorf("history.file_path is required for the file backend")
		}
	case "redis":
		if c.History.RedisAddr == "" {
			return fmt.Errorf("history.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("history.backend must be \"file\" or \"redis\" (got %q)", c.History.Backend)
	}

	return nil
}
