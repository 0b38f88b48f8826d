// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package store

import (
	"sort"
	"sync"

	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

// defaultVectorDimensions is the default embedding dimension (matches OpenAI text-embedding-ada-002).
const defaultVectorDimensions = 1536

// Factory opens a PersonStore from a StorageConfig whose defaults are applied.
type Factory func(cfg StorageConfig) (PersonStore, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Backends returns the sorted names of all registered backends.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg *StorageConfig) string {
	if cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

// Open creates the PersonStore for the configured backend.
func Open(cfg *StorageConfig) (PersonStore, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, mmerr.Errorf(mmerr.CodeStoreBackendUnsupported, "unsupported storage backend: %q", backend)
	}

	resolved := *cfg
	resolved.Backend = backend
	if resolved.VectorDimensions <= 0 {
		resolved.VectorDimensions = defaultVectorDimensions
	}

	return factory(resolved)
}
