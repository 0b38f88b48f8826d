// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package sqlite

import (
	"github.com/magic-matching/magicmatch/internal/store"
)

func init() {
	store.RegisterBackend("sqlite", newPersonStore)
}

func newPersonStore(cfg store.StorageConfig) (store.PersonStore, error) {
	path := cfg.Path
	if path == "" {
		path = "magicmatch.db"
	}
	return NewPersonStore(path, cfg.VectorDimensions)
}
