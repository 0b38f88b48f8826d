// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package store

import (
	"strings"

	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

// Validate checks that the PersonInput has all required fields set.
func (p PersonInput) Validate() error {
	if strings.TrimSpace(p.Username) == "" {
		return mmerr.New(mmerr.CodeStoreInvalidInput, "person: Username is required")
	}
	return nil
}

// Validate checks that the PersonUpdate does not blank out the username.
func (u PersonUpdate) Validate() error {
	if u.Username != nil && strings.TrimSpace(*u.Username) == "" {
		return mmerr.New(mmerr.CodeStoreInvalidInput, "person: Username must not be empty")
	}
	return nil
}

// Validate checks a section against the store's vector dimension.
func (s SectionInput) Validate(dimensions int) error {
	if s.Content == "" {
		return mmerr.New(mmerr.CodeStoreSectionInvalid, "section: Content is required")
	}
	if len(s.Embedding) != dimensions {
		return mmerr.Errorf(mmerr.CodeStoreSectionInvalid,
			"section: embedding has %d dimensions, store expects %d", len(s.Embedding), dimensions)
	}
	if s.TokenCount < 0 {
		return mmerr.Errorf(mmerr.CodeStoreSectionInvalid, "section: TokenCount must be non-negative, got %d", s.TokenCount)
	}
	return nil
}

// Validate checks the search parameters against the store's vector dimension.
func (m MatchParams) Validate(dimensions int) error {
	if len(m.Embedding) != dimensions {
		return mmerr.Errorf(mmerr.CodeStoreMatchInvalid,
			"match: query embedding has %d dimensions, store expects %d", len(m.Embedding), dimensions)
	}
	if m.Threshold < -1 || m.Threshold > 1 {
		return mmerr.Errorf(mmerr.CodeStoreMatchInvalid, "match: threshold must be within [-1, 1], got %g", m.Threshold)
	}
	if m.MinContentLength < 0 {
		return mmerr.Errorf(mmerr.CodeStoreMatchInvalid, "match: MinContentLength must be non-negative, got %d", m.MinContentLength)
	}
	return nil
}
