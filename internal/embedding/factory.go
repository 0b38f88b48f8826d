// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package embedding

import (
	"sort"
	"sync"

	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

// Config selects and configures an embedding provider.
type Config struct {
	Provider   string // "openai" (default) or "google"
	Model      string // empty uses the adapter's default model
	APIKey     string
	BaseURL    string // optional, for OpenAI-compatible gateways or a mock server
	Dimensions int    // 0 uses DefaultDimensions

	// RateLimitRPS caps outgoing calls per second; zero disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// Factory builds a Provider from a Config whose defaults are already applied.
type Factory func(cfg Config) (Provider, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterProvider registers a named provider factory. Adapter packages call
// this from init(). This function is goroutine-safe.
func RegisterProvider(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Registered returns the sorted names of all registered providers.
func Registered() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the configured provider, wrapped with rate limiting (when
// enabled) and health tracking.
func New(cfg Config) (*Tracked, error) {
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.Dimensions < 0 {
		return nil, mmerr.Errorf(mmerr.CodeEmbeddingConfigInvalid, "embedding dimensions must be positive, got %d", cfg.Dimensions)
	}

	factoriesMu.RLock()
	factory, ok := factories[cfg.Provider]
	factoriesMu.RUnlock()
	if !ok {
		return nil, mmerr.New(mmerr.CodeEmbeddingProviderNotFound, "unsupported embedding provider: "+cfg.Provider,
			mmerr.FieldProvider(cfg.Provider))
	}

	p, err := factory(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.RateLimitRPS > 0 {
		p, err = RateLimited(p, cfg.RateLimitRPS, cfg.RateLimitBurst)
		if err != nil {
			return nil, err
		}
	}

	return NewTracked(p, DefaultHealthCooldown)
}
