// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package store

import "time"

// --- Person types ---

// Person is a registered profile document. Username is unique.
//
// Checksum summarizes the person's section content. An empty checksum means
// sections are being (re)written and the person is not yet matchable; it is
// set only after every section was embedded and stored.
type Person struct {
	ID             string
	OrganizationID int64
	Username       string
	Location       string
	Meta           map[string]any
	Checksum       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Complete reports whether all sections of the person were stored.
func (p *Person) Complete() bool {
	return p.Checksum != ""
}

// PersonInput carries the identity and metadata written by an upsert or create.
type PersonInput struct {
	OrganizationID int64
	Username       string
	Location       string
	Meta           map[string]any
}

// PersonUpdate carries the CRUD update fields. Nil fields are left unchanged.
type PersonUpdate struct {
	Username *string
	Location *string
	Meta     map[string]any
}

// --- Section types ---

// Section is one textual part of a person together with the embedding of its
// current content.
type Section struct {
	ID         string
	PersonID   string
	Slug       string
	Heading    string
	Content    string
	TokenCount int
	Embedding  []float32
	CreatedAt  time.Time
}

// SectionInput is the data written by InsertSection.
type SectionInput struct {
	Slug       string
	Heading    string
	Content    string
	TokenCount int
	Embedding  []float32
}

// --- Matching types ---

// MatchParams tunes a similarity search.
type MatchParams struct {
	Embedding        []float32
	Threshold        float64
	Count            int
	MinContentLength int
}

// SectionMatch is a section scored against a query embedding. Username is
// denormalized from the owning person for callers that render results.
type SectionMatch struct {
	Section    Section
	Username   string
	Similarity float64
}

// ListOpts controls pagination for list operations.
type ListOpts struct {
	Limit  int
	Offset int
}
