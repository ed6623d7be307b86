// Package config loads osevents settings from the environment, an optional
// .env file and an optional TOML file of per-source settings.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/alfredjeanlab/osevents/internal/sources"
)

type Config struct {
	DatabaseURL string // OSEVENTS_DATABASE_URL (required by serve and crawl)
	HTTPAddr    string // OSEVENTS_HTTP_ADDR (default ":8080")
	GRPCAddr    string // OSEVENTS_GRPC_ADDR (default ":9090")
	HTTPURL     string // OSEVENTS_HTTP_URL (default "http://localhost:8080"; used by client commands)
	NATSURL     string // OSEVENTS_NATS_URL (optional, empty = no events)
	AuthToken   string // OSEVENTS_AUTH_TOKEN (optional, empty = crawl trigger open)

	Timezone       *time.Location // OSEVENTS_TIMEZONE (default UTC; day boundary for upcoming events)
	SourceTimezone *time.Location // OSEVENTS_SOURCE_TIMEZONE (default America/New_York)
	CrawlInterval  time.Duration  // OSEVENTS_CRAWL_INTERVAL (default 6h; 0 = disabled)
	FetchTimeout   time.Duration  // OSEVENTS_FETCH_TIMEOUT (default 30s)

	// Image rehosting
	ImageBucket   string // OSEVENTS_IMAGE_BUCKET (enables rehosting when set)
	ImageRegion   string // OSEVENTS_IMAGE_REGION (default "us-east-1")
	ImageEndpoint string // OSEVENTS_IMAGE_ENDPOINT (custom endpoint for MinIO)
	ImageBaseURL  string // OSEVENTS_IMAGE_BASE_URL (public prefix of rehosted objects)

	LogFormat string     // OSEVENTS_LOG_FORMAT: text (default) or json
	LogLevel  slog.Level // OSEVENTS_LOG_LEVEL: debug, info (default), warn, error

	ConfigFile string                  // OSEVENTS_CONFIG (optional TOML path)
	Sources    map[string]SourceConfig // [sources.<name>] tables from ConfigFile
}

// SourceConfig is one [sources.<name>] table. Unset fields keep the
// source defaults.
type SourceConfig struct {
	Enabled      *bool  `toml:"enabled"`
	BaseURL      string `toml:"base_url"`
	Months       int    `toml:"months"`
	RehostImages *bool  `toml:"rehost_images"`
}

type fileConfig struct {
	Sources map[string]SourceConfig `toml:"sources"`
}

// Load reads envFile when it exists, then the environment, then the TOML
// file named by OSEVENTS_CONFIG. Variables already set in the environment
// win over envFile.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	c := &Config{
		DatabaseURL:   os.Getenv("OSEVENTS_DATABASE_URL"),
		HTTPAddr:      envOrDefault("OSEVENTS_HTTP_ADDR", ":8080"),
		GRPCAddr:      envOrDefault("OSEVENTS_GRPC_ADDR", ":9090"),
		HTTPURL:       envOrDefault("OSEVENTS_HTTP_URL", "http://localhost:8080"),
		NATSURL:       os.Getenv("OSEVENTS_NATS_URL"),
		AuthToken:     os.Getenv("OSEVENTS_AUTH_TOKEN"),
		ImageBucket:   os.Getenv("OSEVENTS_IMAGE_BUCKET"),
		ImageRegion:   envOrDefault("OSEVENTS_IMAGE_REGION", "us-east-1"),
		ImageEndpoint: os.Getenv("OSEVENTS_IMAGE_ENDPOINT"),
		ImageBaseURL:  strings.TrimRight(envOrDefault("OSEVENTS_IMAGE_BASE_URL", "https://images.osevents.io"), "/"),
		LogFormat:     strings.ToLower(envOrDefault("OSEVENTS_LOG_FORMAT", "text")),
		ConfigFile:    os.Getenv("OSEVENTS_CONFIG"),
		Sources:       map[string]SourceConfig{},
	}

	var err error
	if c.Timezone, err = loadLocation("OSEVENTS_TIMEZONE", "UTC"); err != nil {
		return nil, err
	}
	if c.SourceTimezone, err = loadLocation("OSEVENTS_SOURCE_TIMEZONE", "America/New_York"); err != nil {
		return nil, err
	}
	if c.CrawlInterval, err = loadDuration("OSEVENTS_CRAWL_INTERVAL", "6h"); err != nil {
		return nil, err
	}
	if c.FetchTimeout, err = loadDuration("OSEVENTS_FETCH_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if c.FetchTimeout <= 0 {
		return nil, fmt.Errorf("OSEVENTS_FETCH_TIMEOUT must be positive")
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return nil, fmt.Errorf("OSEVENTS_LOG_FORMAT: unknown format %q", c.LogFormat)
	}
	if err := c.LogLevel.UnmarshalText([]byte(envOrDefault("OSEVENTS_LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("OSEVENTS_LOG_LEVEL: %w", err)
	}

	if c.ConfigFile != "" {
		if err := c.loadFile(c.ConfigFile); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Config) loadFile(path string) error {
	var fc fileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("reading %s: unknown key %q", path, undecoded[0].String())
	}
	for name, sc := range fc.Sources {
		if !slices.Contains(sources.BuiltinNames, name) {
			return fmt.Errorf("reading %s: unknown source %q", path, name)
		}
		if sc.Months < 0 {
			return fmt.Errorf("reading %s: sources.%s.months must not be negative", path, name)
		}
		c.Sources[name] = sc
	}
	return nil
}

// RequireDatabaseURL reports a missing OSEVENTS_DATABASE_URL.
func (c *Config) RequireDatabaseURL() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("OSEVENTS_DATABASE_URL is required")
	}
	return nil
}

// SourceSettings merges the file's [sources.*] tables over the defaults
// for every built-in source.
func (c *Config) SourceSettings() map[string]sources.Settings {
	out := make(map[string]sources.Settings, len(sources.BuiltinNames))
	for _, name := range sources.BuiltinNames {
		s := sources.DefaultSettings()
		if sc, ok := c.Sources[name]; ok {
			if sc.Enabled != nil {
				s.Enabled = *sc.Enabled
			}
			if sc.BaseURL != "" {
				s.BaseURL = sc.BaseURL
			}
			if sc.Months > 0 {
				s.Months = sc.Months
			}
			if sc.RehostImages != nil {
				s.RehostImages = *sc.RehostImages
			}
		}
		out[name] = s
	}
	return out
}

// RehostEnabled reports whether an image bucket is configured.
func (c *Config) RehostEnabled() bool {
	return c.ImageBucket != ""
}

func loadLocation(key, fallback string) (*time.Location, error) {
	name := envOrDefault(key, fallback)
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return loc, nil
}

func loadDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", key)
	}
	return d, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
