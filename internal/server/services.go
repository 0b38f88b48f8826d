// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package server

import (
	"context"

	"github.com/magic-matching/magicmatch/internal/ingest"
	"github.com/magic-matching/magicmatch/internal/match"
	"github.com/magic-matching/magicmatch/internal/store"
	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
	"github.com/magic-matching/magicmatch/pkg/health"
)

// IngestService stores a person and the embeddings of its sections.
type IngestService interface {
	Ingest(ctx context.Context, payload *ingest.Payload, opts ingest.Options) (*ingest.Result, error)
}

// MatchService answers semantic queries over stored sections.
type MatchService interface {
	Match(ctx context.Context, q match.Query) ([]store.SectionMatch, error)
}

// PersonService is the person CRUD surface of the store.
type PersonService interface {
	ListPersons(ctx context.Context, opts store.ListOpts) ([]*store.Person, error)
	GetPerson(ctx context.Context, username string) (*store.Person, error)
	CreatePerson(ctx context.Context, in *store.PersonInput) (*store.Person, error)
	UpdatePerson(ctx context.Context, username string, upd *store.PersonUpdate) (*store.Person, error)
	DeletePerson(ctx context.Context, username string) error
	ListSections(ctx context.Context, personID string) ([]*store.Section, error)
}

// EmbeddingHealthService reports the health of the embedding provider.
// This is optional; when nil, the embedding health endpoint is not registered.
type EmbeddingHealthService interface {
	Name() string
	HealthMetrics() health.Metrics
}

// Services holds dependencies injected into route handlers.
// Each field is an interface so subsystems can be mocked in tests.
// Use NewServices constructor to ensure all required services are provided.
type Services struct {
	ingest    IngestService
	match     MatchService
	persons   PersonService
	embedding EmbeddingHealthService
}

// NewServices creates a Services instance with validation.
// Returns an error if any required service is nil.
func NewServices(ing IngestService, m MatchService, persons PersonService, embedding ...EmbeddingHealthService) (*Services, error) {
	if ing == nil {
		return nil, mmerr.New(mmerr.CodeServerConfigInvalid, "ingest service is required")
	}
	if m == nil {
		return nil, mmerr.New(mmerr.CodeServerConfigInvalid, "match service is required")
	}
	if persons == nil {
		return nil, mmerr.New(mmerr.CodeServerConfigInvalid, "person service is required")
	}
	if len(embedding) > 1 {
		return nil, mmerr.New(mmerr.CodeServerConfigInvalid, "at most one embedding health service may be supplied")
	}
	s := &Services{ingest: ing, match: m, persons: persons}
	if len(embedding) > 0 && embedding[0] != nil {
		s.embedding = embedding[0]
	}
	return s, nil
}

// Ingest returns the ingest service.
func (s *Services) Ingest() IngestService { return s.ingest }

// Match returns the match service.
func (s *Services) Match() MatchService { return s.match }

// Persons returns the person CRUD service.
func (s *Services) Persons() PersonService { return s.persons }

// Embedding returns the optional embedding health service.
func (s *Services) Embedding() EmbeddingHealthService { return s.embedding }
