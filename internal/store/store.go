// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package store

import "context"

// PersonStore is the system of record for persons, their sections and the
// section embeddings.
//
// All failures are coded store errors (see pkg/errors). Writes for different
// persons may run concurrently; UpsertPerson on the same username serializes
// to a single row through the username uniqueness constraint.
type PersonStore interface {
	// UpsertPerson inserts or updates the person keyed by username. An
	// existing checksum is preserved; callers clear it explicitly.
	UpsertPerson(ctx context.Context, in *PersonInput) (*Person, error)
	// CreatePerson inserts a new person and fails with a conflict when the
	// username is taken.
	CreatePerson(ctx context.Context, in *PersonInput) (*Person, error)
	GetPerson(ctx context.Context, username string) (*Person, error)
	ListPersons(ctx context.Context, opts ListOpts) ([]*Person, error)
	UpdatePerson(ctx context.Context, username string, upd *PersonUpdate) (*Person, error)
	// DeletePerson removes the person and, by cascade, all of its sections.
	DeletePerson(ctx context.Context, username string) error

	ClearChecksum(ctx context.Context, personID string) error
	SetChecksum(ctx context.Context, personID, checksum string) error

	InsertSection(ctx context.Context, personID string, in *SectionInput) (*Section, error)
	DeleteSectionsForPerson(ctx context.Context, personID string) (int, error)
	// DeleteSectionsExcept removes the person's sections whose IDs are not in
	// keep and returns how many were removed. An empty keep removes all.
	DeleteSectionsExcept(ctx context.Context, personID string, keep []string) (int, error)
	CountSections(ctx context.Context, personID string) (int, error)
	// ListSections returns the person's sections in insertion order. It backs
	// the per-person sections read endpoint.
	ListSections(ctx context.Context, personID string) ([]*Section, error)

	// MatchSections scores every section of a complete person whose content
	// is at least MinContentLength characters long by cosine similarity to
	// the query embedding, keeps scores >= Threshold, and returns at most
	// Count results ordered by similarity descending, then section ID.
	MatchSections(ctx context.Context, params MatchParams) ([]SectionMatch, error)

	Dimensions() int
	Close() error
}
