// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/magic-matching/magicmatch/internal/store"
	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

func (s *Server) registerPersonRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-persons",
		Method:      http.MethodGet,
		Path:        "/person",
		Summary:     "List persons",
		Tags:        []string{"person"},
	}, s.handleListPersons)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-person",
		Method:      http.MethodGet,
		Path:        "/person/{username}",
		Summary:     "Get a person",
		Tags:        []string{"person"},
	}, s.handleGetPerson)

	huma.Register(s.api, huma.Operation{
		OperationID: "create-person",
		Method:      http.MethodPost,
		Path:        "/person",
		Summary:     "Create a person",
		Tags:        []string{"person"},
	}, s.handleCreatePerson)

	huma.Register(s.api, huma.Operation{
		OperationID: "update-person",
		Method:      http.MethodPut,
		Path:        "/person/{username}",
		Summary:     "Update a person",
		Tags:        []string{"person"},
	}, s.handleUpdatePerson)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-person",
		Method:      http.MethodDelete,
		Path:        "/person/{username}",
		Summary:     "Delete a person and its sections",
		Tags:        []string{"person"},
	}, s.handleDeletePerson)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-person-sections",
		Method:      http.MethodGet,
		Path:        "/person/{username}/sections",
		Summary:     "List the stored sections of a person",
		Tags:        []string{"person"},
	}, s.handleListSections)
}

// PersonView is the REST representation of a person. Path is the username.
type PersonView struct {
	ID             string         `json:"id"`
	OrganizationID int64          `json:"organization_id"`
	Path           string         `json:"path" doc:"Username"`
	Location       string         `json:"location"`
	Meta           map[string]any `json:"meta"`
	Checksum       string         `json:"checksum"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func toPersonView(p *store.Person) PersonView {
	meta := p.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	return PersonView{
		ID:             p.ID,
		OrganizationID: p.OrganizationID,
		Path:           p.Username,
		Location:       p.Location,
		Meta:           meta,
		Checksum:       p.Checksum,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// SectionView is a stored section without its embedding.
type SectionView struct {
	ID         string    `json:"id"`
	Slug       string    `json:"slug"`
	Heading    string    `json:"heading"`
	Content    string    `json:"content"`
	TokenCount int       `json:"token_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// PersonWriteBody is the person document accepted by create and update.
type PersonWriteBody struct {
	_    struct{}       `json:"-" additionalProperties:"true"`
	Path string         `json:"path,omitempty" doc:"Username"`
	Meta map[string]any `json:"meta,omitempty"`
}

type usernameInput struct {
	Username string `path:"username"`
}

type listPersonsInput struct {
	Limit  int `query:"limit" minimum:"0" doc:"Maximum persons to return (0 = all)"`
	Offset int `query:"offset" minimum:"0"`
}
type listPersonsOutput struct {
	Body struct {
		Persons []PersonView `json:"persons"`
	}
}

type personOutput struct {
	Body struct {
		Person PersonView `json:"person"`
	}
}

type createPersonInput struct {
	Body struct {
		Person *PersonWriteBody `json:"person,omitempty"`
	}
}
type createPersonOutput struct {
	Body struct {
		Path string         `json:"path"`
		Meta map[string]any `json:"meta"`
	}
}

type updatePersonInput struct {
	Username string `path:"username"`
	Body     struct {
		Person *PersonWriteBody `json:"person,omitempty"`
	}
}

type listSectionsOutput struct {
	Body struct {
		Sections []SectionView `json:"sections"`
	}
}

type deletePersonOutput struct {
	Body struct{}
}

func (s *Server) handleListPersons(ctx context.Context, input *listPersonsInput) (*listPersonsOutput, error) {
	persons, err := s.services.Persons().ListPersons(ctx, store.ListOpts{Limit: input.Limit, Offset: input.Offset})
	if err != nil {
		return nil, toHTTPError(err)
	}
	out := &listPersonsOutput{}
	out.Body.Persons = make([]PersonView, len(persons))
	for i, p := range persons {
		out.Body.Persons[i] = toPersonView(p)
	}
	return out, nil
}

func (s *Server) handleGetPerson(ctx context.Context, input *usernameInput) (*personOutput, error) {
	p, err := s.services.Persons().GetPerson(ctx, input.Username)
	if err != nil {
		return nil, toHTTPError(err)
	}
	out := &personOutput{}
	out.Body.Person = toPersonView(p)
	return out, nil
}

func (s *Server) handleCreatePerson(ctx context.Context, input *createPersonInput) (*createPersonOutput, error) {
	body := input.Body.Person
	if body == nil {
		return nil, toHTTPError(mmerr.New(mmerr.CodeServerRequestInvalid, "person is required"))
	}

	p, err := s.services.Persons().CreatePerson(ctx, &store.PersonInput{Username: body.Path, Meta: body.Meta})
	if err != nil {
		return nil, toHTTPError(err)
	}
	out := &createPersonOutput{}
	out.Body.Path = p.Username
	out.Body.Meta = toPersonView(p).Meta
	return out, nil
}

func (s *Server) handleUpdatePerson(ctx context.Context, input *updatePersonInput) (*personOutput, error) {
	body := input.Body.Person
	if body == nil {
		return nil, toHTTPError(mmerr.New(mmerr.CodeServerRequestInvalid, "person is required"))
	}

	upd := &store.PersonUpdate{Meta: body.Meta}
	if body.Path != "" {
		upd.Username = &body.Path
	}
	p, err := s.services.Persons().UpdatePerson(ctx, input.Username, upd)
	if err != nil {
		return nil, toHTTPError(err)
	}
	out := &personOutput{}
	out.Body.Person = toPersonView(p)
	return out, nil
}

func (s *Server) handleDeletePerson(ctx context.Context, input *usernameInput) (*deletePersonOutput, error) {
	if err := s.services.Persons().DeletePerson(ctx, input.Username); err != nil {
		return nil, toHTTPError(err)
	}
	return &deletePersonOutput{}, nil
}

func (s *Server) handleListSections(ctx context.Context, input *usernameInput) (*listSectionsOutput, error) {
	persons := s.services.Persons()
	p, err := persons.GetPerson(ctx, input.Username)
	if err != nil {
		return nil, toHTTPError(err)
	}
	sections, err := persons.ListSections(ctx, p.ID)
	if err != nil {
		return nil, toHTTPError(err)
	}

	out := &listSectionsOutput{}
	out.Body.Sections = make([]SectionView, len(sections))
	for i, sec := range sections {
		out.Body.Sections[i] = SectionView{
			ID:         sec.ID,
			Slug:       sec.Slug,
			Heading:    sec.Heading,
			Content:    sec.Content,
			TokenCount: sec.TokenCount,
			CreatedAt:  sec.CreatedAt,
		}
	}
	return out, nil
}
