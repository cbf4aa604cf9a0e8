// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the eaterymap configuration: defaults, then a TOML
// file, then EATERYMAP_* environment variables. Command line flags are
// applied last by the commands themselves.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jcodagnone/eaterymap/locate"
	"github.com/jcodagnone/eaterymap/places"
	"github.com/jcodagnone/eaterymap/search"
	"github.com/jcodagnone/eaterymap/shellcache"
	"github.com/jcodagnone/eaterymap/spatial"
	"github.com/jcodagnone/eaterymap/status"
	"github.com/jcodagnone/eaterymap/utils/httputils"
	"github.com/jcodagnone/eaterymap/utils/textutils"
	"github.com/pelletier/go-toml/v2"
)

// Config is the application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Search   SearchConfig   `toml:"search"`
	Provider ProviderConfig `toml:"provider"`
	Location LocationConfig `toml:"location"`
	Cache    CacheConfig    `toml:"cache"`
	Storage  StorageConfig  `toml:"storage"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type SearchConfig struct {
	Radius         float64  `toml:"radius"`          // meters
	Categories     []string `toml:"categories"`      // empty selects the provider defaults
	Keyword        string   `toml:"keyword"`         // optional free text filter
	Mode           string   `toml:"mode"`            // "sequential" or "concurrent"
	PageDelay      string   `toml:"page_delay"`      // e.g. "2s", wait before a continuation page
	MaxPages       int      `toml:"max_pages"`       // per category, 0 means unlimited
	MaxConcurrency int      `toml:"max_concurrency"` // categories in flight in concurrent mode
	HideDelay      string   `toml:"hide_delay"`      // e.g. "6s", status line lifetime after completion
}

type ProviderConfig struct {
	Name        string `toml:"name"`         // "overpass" or "google"
	APIKey      string `toml:"api_key"`      // google only; see places.ResolveAPIKey
	ProjectID   string `toml:"project_id"`   // for the ADC key lookup
	KeyName     string `toml:"key_name"`     // display name of the key resource
	DisableADC  bool   `toml:"disable_adc"`  // skip the ADC key lookup
	Endpoint    string `toml:"endpoint"`     // overrides the provider URL
	UserAgent   string `toml:"user_agent"`   // sent on every request
	Timeout     string `toml:"timeout"`      // e.g. "30s"
	MinInterval string `toml:"min_interval"` // e.g. "1s", minimum spacing between requests
	Trace       bool   `toml:"trace"`        // dump requests and responses to stderr
}

type LocationConfig struct {
	FallbackLat float64 `toml:"fallback_lat"`
	FallbackLng float64 `toml:"fallback_lng"`
	IPLookup    bool    `toml:"ip_lookup"`     // approximate the position from the client IP
	IPLookupURL string  `toml:"ip_lookup_url"` // ip-api.com compatible endpoint
}

type CacheConfig struct {
	Enabled  bool     `toml:"enabled"`
	Prefix   string   `toml:"prefix"`
	Manifest []string `toml:"manifest"`
}

type StorageConfig struct {
	Path string `toml:"path"` // DuckDB file, empty for an in-memory database
}

// NewDefaultConfig returns the built-in configuration.
func NewDefaultConfig() *Config {
	policy := search.DefaultPolicy()

	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Search: SearchConfig{
			Radius:    places.DefaultRadius,
			Mode:      string(policy.Mode),
			PageDelay: policy.PageDelay.String(),
			MaxPages:  policy.MaxPages,
			HideDelay: status.DefaultHideDelay.String(),
		},
		Provider: ProviderConfig{
			Name:        places.OverpassProviderName,
			Timeout:     "30s",
			MinInterval: "1s",
		},
		Location: LocationConfig{
			FallbackLat: locate.DefaultFallback.Lat,
			FallbackLng: locate.DefaultFallback.Lng,
			IPLookupURL: locate.IPLookupURL,
		},
		Cache: CacheConfig{
			Enabled:  true,
			Prefix:   shellcache.DefaultPrefix,
			Manifest: append([]string(nil), shellcache.DefaultManifest...),
		},
	}
}

// LoadFromFile loads the configuration with priority: defaults, file, env.
// An empty path skips the file.
func LoadFromFile(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func applyEnvOverrides(config *Config) {
	if host := os.Getenv("EATERYMAP_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("EATERYMAP_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if name := os.Getenv("EATERYMAP_PROVIDER"); name != "" {
		config.Provider.Name = name
	}

	if categories := os.Getenv("EATERYMAP_CATEGORIES"); categories != "" {
		config.Search.Categories = strings.Split(categories, ",")
	}

	if mode := os.Getenv("EATERYMAP_SEARCH_MODE"); mode != "" {
		config.Search.Mode = mode
	}

	if path := os.Getenv("EATERYMAP_STORAGE_PATH"); path != "" {
		config.Storage.Path = path
	}
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}

	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %s", field, value)
	}

	return d, nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port: %d out of range", c.Server.Port))
	}

	if c.Search.Radius <= 0 {
		errs = append(errs, fmt.Errorf("search.radius: must be positive (got %v)", c.Search.Radius))
	}

	if _, err := c.Policy(); err != nil {
		errs = append(errs, err)
	}

	if _, err := c.HideDelay(); err != nil {
		errs = append(errs, err)
	}

	switch c.Provider.Name {
	case places.OverpassProviderName, places.GoogleProviderName:
	default:
		errs = append(errs, fmt.Errorf("provider.name: unknown provider %q", c.Provider.Name))
	}

	if _, err := c.ProviderOptions(); err != nil {
		errs = append(errs, err)
	}

	if err := c.Fallback().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("location: %w", err))
	}

	if c.Cache.Enabled {
		if err := shellcache.Manifest(c.Cache.Manifest).Validate(); err != nil {
			errs = append(errs, fmt.Errorf("cache.manifest: %w", err))
		}

		if c.Cache.Prefix == "" {
			errs = append(errs, errors.New("cache.prefix: must not be empty"))
		}
	}

	return errors.Join(errs...)
}

// Addr is the listen address of the server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// Policy returns the search pagination policy.
func (c *Config) Policy() (search.Policy, error) {
	delay, err := parseDuration("search.page_delay", c.Search.PageDelay)
	if err != nil {
		return search.Policy{}, err
	}

	p := search.Policy{
		PageDelay:      delay,
		Mode:           search.Mode(c.Search.Mode),
		MaxPages:       c.Search.MaxPages,
		MaxConcurrency: c.Search.MaxConcurrency,
	}

	if err := p.Validate(); err != nil {
		return search.Policy{}, fmt.Errorf("search: %w", err)
	}

	return p, nil
}

// HideDelay returns how long the final status message stays visible.
func (c *Config) HideDelay() (time.Duration, error) {
	d, err := parseDuration("search.hide_delay", c.Search.HideDelay)
	if err != nil {
		return 0, err
	}

	if d == 0 {
		d = status.DefaultHideDelay
	}

	return d, nil
}

// Categories returns the normalised category list, falling back to the
// provider defaults.
func (c *Config) Categories() []string {
	if len(c.Search.Categories) == 0 {
		return places.DefaultCategories(c.Provider.Name)
	}

	return textutils.NormalizeCategories(c.Search.Categories)
}

// Fallback returns the coordinate used when the client cannot be located.
func (c *Config) Fallback() spatial.Point {
	return spatial.Point{Lat: c.Location.FallbackLat, Lng: c.Location.FallbackLng}
}

// KeyOptions returns the API key discovery options.
func (c *Config) KeyOptions() places.KeyOptions {
	return places.KeyOptions{
		Explicit:    c.Provider.APIKey,
		ProjectID:   c.Provider.ProjectID,
		DisplayName: c.Provider.KeyName,
		DisableADC:  c.Provider.DisableADC,
	}
}

// ProviderOptions returns the options to build the places provider. The API
// key is left as configured; callers resolve it with places.ResolveAPIKey.
func (c *Config) ProviderOptions() (places.Options, error) {
	timeout, err := parseDuration("provider.timeout", c.Provider.Timeout)
	if err != nil {
		return places.Options{}, err
	}

	interval, err := parseDuration("provider.min_interval", c.Provider.MinInterval)
	if err != nil {
		return places.Options{}, err
	}

	opts := places.Options{
		Name:     c.Provider.Name,
		APIKey:   c.Provider.APIKey,
		Endpoint: c.Provider.Endpoint,
		HTTP: httputils.ClientOptions{
			UserAgent:   c.Provider.UserAgent,
			Timeout:     timeout,
			MinInterval: interval,
		},
	}

	if c.Provider.Trace {
		opts.HTTP.Trace = os.Stderr
	}

	return opts, nil
}
