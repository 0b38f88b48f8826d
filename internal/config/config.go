// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package config

import (
	"errors"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/magic-matching/magicmatch/internal/embedding"
	"github.com/magic-matching/magicmatch/internal/server"
	"github.com/magic-matching/magicmatch/internal/store"
	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

// EnvPrefix is prepended to every environment override, e.g.
// MAGICMATCH_EMBEDDING_API_KEY for embedding.api_key.
const EnvPrefix = "MAGICMATCH"

// Config is the top-level magicmatch configuration.
type Config struct {
	Networking NetworkingConfig `mapstructure:"networking"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Match      MatchConfig      `mapstructure:"match"`
}

// NetworkingConfig controls the HTTP listener.
type NetworkingConfig struct {
	Listen         string   `mapstructure:"listen"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider     string  `mapstructure:"provider"`
	Model        string  `mapstructure:"model"`
	APIKey       string  `mapstructure:"api_key"`
	BaseURL      string  `mapstructure:"base_url"`
	Dimensions   int     `mapstructure:"dimensions"`
	RateLimitRPS float64 `mapstructure:"rate_limit_rps"`
}

// StorageConfig selects the vector store backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn"`
}

type IngestConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// MatchConfig holds the defaults applied when a query omits them.
type MatchConfig struct {
	Threshold        float64 `mapstructure:"threshold"`
	Count            int     `mapstructure:"count"`
	MinContentLength int     `mapstructure:"min_content_length"`
}

// SetDefaults registers every key with its default value. Keys without a
// default are invisible to AutomaticEnv during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("networking.listen", "127.0.0.1:18790")
	v.SetDefault("networking.cors_origins", []string{"*"})
	v.SetDefault("networking.rate_limit_rps", 0)
	v.SetDefault("networking.rate_limit_burst", 0)

	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "text-embedding-ada-002")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.dimensions", embedding.DefaultDimensions)
	v.SetDefault("embedding.rate_limit_rps", 0)

	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.path", "./data/magicmatch.db")
	v.SetDefault("storage.dsn", "")

	v.SetDefault("ingest.concurrency", 4)

	v.SetDefault("match.threshold", 0.78)
	v.SetDefault("match.count", 10)
	v.SetDefault("match.min_content_length", 5)
}

// SetupEnv enables MAGICMATCH_* environment overrides.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults only when path
// is empty) with environment variable overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, mmerr.Errorf(mmerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, mmerr.Errorf(mmerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, mmerr.Errorf(mmerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate returns every problem found rather than stopping at the first.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateNetworking()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateMatch()...)

	if c.Ingest.Concurrency < 1 {
		errs = append(errs, invalid("ingest.concurrency must be at least 1, got %d", c.Ingest.Concurrency))
	}

	return errs
}

func invalid(format string, args ...any) error {
	return mmerr.Errorf(mmerr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

func (c *Config) validateNetworking() []error {
	var errs []error

	if c.Networking.Listen == "" {
		errs = append(errs, invalid("networking.listen must not be empty"))
	} else if _, portStr, err := net.SplitHostPort(c.Networking.Listen); err != nil {
		errs = append(errs, invalid("networking.listen must be a valid host:port address, got %q: %w", c.Networking.Listen, err))
	} else if port, err := strconv.Atoi(portStr); err != nil {
		errs = append(errs, invalid("networking.listen port must be a number, got %q", portStr))
	} else if port < 1 || port > 65535 {
		errs = append(errs, invalid("networking.listen port must be between 1 and 65535, got %d", port))
	}

	if c.Networking.RateLimitRPS < 0 {
		errs = append(errs, invalid("networking.rate_limit_rps must not be negative, got %g", c.Networking.RateLimitRPS))
	}
	if c.Networking.RateLimitBurst < 0 {
		errs = append(errs, invalid("networking.rate_limit_burst must not be negative, got %d", c.Networking.RateLimitBurst))
	}

	return errs
}

func (c *Config) validateEmbedding() []error {
	var errs []error

	validProviders := map[string]bool{"openai": true, "google": true}
	if !validProviders[c.Embedding.Provider] {
		errs = append(errs, invalid("embedding.provider must be one of [openai, google], got %q", c.Embedding.Provider))
	}
	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, invalid("embedding.dimensions must be greater than 0, got %d", c.Embedding.Dimensions))
	}
	if c.Embedding.RateLimitRPS < 0 {
		errs = append(errs, invalid("embedding.rate_limit_rps must not be negative, got %g", c.Embedding.RateLimitRPS))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	switch c.Storage.Backend {
	case "sqlite":
		if c.Storage.Path == "" {
			errs = append(errs, invalid("storage.path must not be empty for the sqlite backend"))
		}
	case "postgres":
		if c.Storage.DSN == "" {
			errs = append(errs, invalid("storage.dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, invalid("storage.backend must be one of [sqlite, postgres], got %q", c.Storage.Backend))
	}

	return errs
}

func (c *Config) validateMatch() []error {
	var errs []error

	if c.Match.Threshold < -1 || c.Match.Threshold > 1 {
		errs = append(errs, invalid("match.threshold must be within [-1, 1], got %g", c.Match.Threshold))
	}
	if c.Match.Count < 0 {
		errs = append(errs, invalid("match.count must not be negative, got %d", c.Match.Count))
	}
	if c.Match.MinContentLength < 0 {
		errs = append(errs, invalid("match.min_content_length must not be negative, got %d", c.Match.MinContentLength))
	}

	return errs
}

// StoreConfig maps the storage and embedding sections onto store.Open input.
func (c *Config) StoreConfig() store.StorageConfig {
	return store.StorageConfig{
		Backend:          c.Storage.Backend,
		Path:             c.Storage.Path,
		DSN:              c.Storage.DSN,
		VectorDimensions: c.Embedding.Dimensions,
	}
}

func (c *Config) EmbeddingConfig() embedding.Config {
	return embedding.Config{
		Provider:     c.Embedding.Provider,
		Model:        c.Embedding.Model,
		APIKey:       c.Embedding.APIKey,
		BaseURL:      c.Embedding.BaseURL,
		Dimensions:   c.Embedding.Dimensions,
		RateLimitRPS: c.Embedding.RateLimitRPS,
	}
}

// ServerConfig maps the networking section onto server.New input. The
// logger is left for the caller.
func (c *Config) ServerConfig() server.Config {
	return server.Config{
		ListenAddr:  c.Networking.Listen,
		CORSOrigins: c.Networking.CORSOrigins,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: c.Networking.RateLimitRPS,
			Burst:             c.Networking.RateLimitBurst,
		},
	}
}
