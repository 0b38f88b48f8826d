// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package store

// StorageConfig controls which backend the store factory uses.
type StorageConfig struct {
	Backend          string // "sqlite" (default) or "postgres"
	Path             string // sqlite database file
	DSN              string // postgres connection string
	VectorDimensions int    // Embedding dimensions; 0 uses the default (1536).
}
