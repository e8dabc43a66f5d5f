// Package config loads proxy configuration from a YAML file with
// environment overrides. A local .env file is honored for development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full proxy configuration.
type Config struct {
	Upstream struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"upstream"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Cache struct {
		TTL time.Duration `yaml:"ttl"`
	} `yaml:"cache"`

	Sweep struct {
		MaxPages int `yaml:"max_pages"`
	} `yaml:"sweep"`

	Search struct {
		MinQueryLength   int           `yaml:"min_query_length"`
		DebounceInterval time.Duration `yaml:"debounce_interval"`
		PageSize         int           `yaml:"page_size"`
	} `yaml:"search"`

	Stats struct {
		WindowDays int `yaml:"window_days"`
	} `yaml:"stats"`

	// AllowSimulated enables the terminal no-op mutation strategy.
	// Must stay false in production deployments.
	AllowSimulated bool `yaml:"allow_simulated"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`

	Port string `yaml:"port"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.Upstream.Timeout = 30 * time.Second
	cfg.Redis.Addr = "localhost:6379"
	cfg.Cache.TTL = 30 * time.Second
	cfg.Sweep.MaxPages = 150
	cfg.Search.MinQueryLength = 2
	cfg.Search.DebounceInterval = 450 * time.Millisecond
	cfg.Search.PageSize = 10
	cfg.Stats.WindowDays = 7
	cfg.Log.Level = "info"
	cfg.Port = "8080"
	return cfg
}

// Load reads the YAML file at path (optional, "" skips it), then applies
// environment overrides. A .env file in the working directory is loaded
// first when present.
func Load(path string) (*Config, error) {
	// Best effort: a missing .env file is not an error.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if cfg.Upstream.BaseURL == "" {
		return nil, fmt.Errorf("upstream base_url is required (set BACKOFFICE_BASE_URL or the config file)")
	}

	return cfg, nil
}

// applyEnv overrides file values from the environment.
func applyEnv(cfg *Config) {
	if v := os.Getenv("BACKOFFICE_BASE_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("ALLOW_SIMULATED"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.AllowSimulated = parsed
		}
	}
}
