// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/magic-matching/magicmatch/internal/ingest"
	"github.com/magic-matching/magicmatch/internal/match"
	"github.com/magic-matching/magicmatch/pkg/health"
)

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
	s.registerPersonRoutes()
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "add-person",
		Method:      http.MethodPost,
		Path:        "/add-person",
		Summary:     "Ingest a person and embed its sections",
		Tags:        []string{"ingest"},
	}, s.handleAddPerson)

	huma.Register(s.api, huma.Operation{
		OperationID: "match-people",
		Method:      http.MethodPost,
		Path:        "/match-people",
		Summary:     "Find person sections similar to a query",
		Tags:        []string{"match"},
	}, s.handleMatchPeople)

	if s.services.Embedding() != nil {
		huma.Register(s.api, huma.Operation{
			OperationID: "embedding-health",
			Method:      http.MethodGet,
			Path:        "/api/v1/embedding/health",
			Summary:     "Embedding provider health",
			Tags:        []string{"system"},
		}, s.handleEmbeddingHealth)
	}
}

// --- Request/Response types for huma ---

// SectionBody is one section of an ingested person.
type SectionBody struct {
	Slug    string `json:"slug,omitempty" doc:"Section identifier"`
	Heading string `json:"heading,omitempty" doc:"Section title"`
	Content string `json:"content,omitempty" doc:"Section text"`
}

// PersonPayloadBody is the person submitted to /add-person.
type PersonPayloadBody struct {
	_              struct{}       `json:"-" additionalProperties:"true"`
	OrganizationID int64          `json:"organization_id,omitempty"`
	Username       string         `json:"username,omitempty" doc:"Unique username"`
	Location       string         `json:"location,omitempty"`
	Meta           map[string]any `json:"meta,omitempty" doc:"Opaque metadata stored as-is"`
	Sections       []SectionBody  `json:"sections,omitempty"`
}

type addPersonInput struct {
	Body struct {
		Person *PersonPayloadBody `json:"person,omitempty"`
		Force  bool               `json:"force,omitempty" doc:"Re-embed even when sections are unchanged"`
	}
}
type addPersonOutput struct {
	Body struct {
		Message  string `json:"message" example:"Created embeding for alice!"`
		Sections int    `json:"sections"`
		Skipped  bool   `json:"skipped"`
	}
}

type matchPeopleInput struct {
	Body struct {
		Query          string   `json:"query,omitempty" doc:"Free-text search"`
		MatchThreshold *float64 `json:"match_threshold,omitempty" doc:"Minimum similarity (default 0.78)"`
		MatchCount     *int     `json:"match_count,omitempty" doc:"Maximum results (default 10)"`
	}
}

// SectionMatchBody is one scored section.
type SectionMatchBody struct {
	ID         string  `json:"id"`
	PersonID   string  `json:"person_id"`
	Username   string  `json:"username"`
	Slug       string  `json:"slug"`
	Heading    string  `json:"heading"`
	Content    string  `json:"content"`
	TokenCount int     `json:"token_count"`
	Similarity float64 `json:"similarity"`
}

type matchPeopleOutput struct {
	Body struct {
		PersonsMatch []SectionMatchBody `json:"persons_match"`
	}
}

type embeddingHealthOutput struct {
	Body struct {
		Provider string         `json:"provider"`
		Health   health.Metrics `json:"health"`
	}
}

// --- Handlers ---

func (s *Server) handleAddPerson(ctx context.Context, input *addPersonInput) (*addPersonOutput, error) {
	var payload *ingest.Payload
	if p := input.Body.Person; p != nil {
		payload = &ingest.Payload{
			OrganizationID: p.OrganizationID,
			Username:       p.Username,
			Location:       p.Location,
			Meta:           p.Meta,
			Sections:       make([]ingest.Section, len(p.Sections)),
		}
		for i, sec := range p.Sections {
			payload.Sections[i] = ingest.Section{Slug: sec.Slug, Heading: sec.Heading, Content: sec.Content}
		}
	}

	res, err := s.services.Ingest().Ingest(ctx, payload, ingest.Options{Force: input.Body.Force})
	if err != nil {
		return nil, toHTTPError(err)
	}

	out := &addPersonOutput{}
	out.Body.Message = res.Message
	out.Body.Sections = res.Sections
	out.Body.Skipped = res.Skipped
	return out, nil
}

func (s *Server) handleMatchPeople(ctx context.Context, input *matchPeopleInput) (*matchPeopleOutput, error) {
	matches, err := s.services.Match().Match(ctx, match.Query{
		Text:      input.Body.Query,
		Threshold: input.Body.MatchThreshold,
		Count:     input.Body.MatchCount,
	})
	if err != nil {
		return nil, toHTTPError(err)
	}

	out := &matchPeopleOutput{}
	out.Body.PersonsMatch = make([]SectionMatchBody, len(matches))
	for i, m := range matches {
		out.Body.PersonsMatch[i] = SectionMatchBody{
			ID:         m.Section.ID,
			PersonID:   m.Section.PersonID,
			Username:   m.Username,
			Slug:       m.Section.Slug,
			Heading:    m.Section.Heading,
			Content:    m.Section.Content,
			TokenCount: m.Section.TokenCount,
			Similarity: m.Similarity,
		}
	}
	return out, nil
}

func (s *Server) handleEmbeddingHealth(_ context.Context, _ *struct{}) (*embeddingHealthOutput, error) {
	svc := s.services.Embedding()
	out := &embeddingHealthOutput{}
	out.Body.Provider = svc.Name()
	out.Body.Health = svc.HealthMetrics()
	return out, nil
}
