// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package store

import "errors"

// Sentinel errors for store operations.
// Backends wrap these so callers can use errors.Is() alongside the coded
// errors from pkg/errors.
var (
	// ErrNotFound indicates the requested person does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a unique constraint violation on username.
	ErrConflict = errors.New("conflict")
)
