// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package postgres

import (
	"context"
	"time"

	"github.com/magic-matching/magicmatch/internal/store"
)

// connectTimeout bounds connecting and migrating when opened via the factory.
const connectTimeout = 30 * time.Second

func init() {
	store.RegisterBackend("postgres", newPersonStore)
}

func newPersonStore(cfg store.StorageConfig) (store.PersonStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return NewPersonStore(ctx, cfg.DSN, cfg.VectorDimensions)
}
