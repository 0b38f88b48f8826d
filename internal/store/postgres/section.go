// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package postgres

import (
	"context"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/magic-matching/magicmatch/internal/store"
	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

// InsertSection stores one section with its embedding.
func (s *PersonStore) InsertSection(ctx context.Context, personID string, in *store.SectionInput) (*store.Section, error) {
	if err := in.Validate(s.dimensions); err != nil {
		return nil, err
	}

	sec := &store.Section{
		ID:         uuid.NewString(),
		PersonID:   personID,
		Slug:       in.Slug,
		Heading:    in.Heading,
		Content:    in.Content,
		TokenCount: in.TokenCount,
		Embedding:  in.Embedding,
	}

	const q = `INSERT INTO person_section (id, person_id, slug, heading, content, token_count, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at`
	err := s.pool.QueryRow(ctx, q,
		sec.ID, personID, sec.Slug, sec.Heading, sec.Content, sec.TokenCount, pgvector.NewVector(in.Embedding),
	).Scan(&sec.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, mmerr.Errorf(mmerr.CodeStorePersonNotFound, "person %s: %w", personID, store.ErrNotFound)
		}
		return nil, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "inserting section for person %s: %w", personID, err)
	}
	return sec, nil
}

// DeleteSectionsForPerson removes every section of the person and returns how
// many were removed.
func (s *PersonStore) DeleteSectionsForPerson(ctx context.Context, personID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM person_section WHERE person_id = $1`, personID)
	if err != nil {
		return 0, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "deleting sections for person %s: %w", personID, err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteSectionsExcept removes the person's sections not listed in keep.
func (s *PersonStore) DeleteSectionsExcept(ctx context.Context, personID string, keep []string) (int, error) {
	if keep == nil {
		keep = []string{}
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM person_section WHERE person_id = $1 AND NOT (id = ANY($2::text[]))`, personID, keep)
	if err != nil {
		return 0, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "pruning sections for person %s: %w", personID, err)
	}
	return int(tag.RowsAffected()), nil
}

// CountSections returns the number of stored sections for the person.
func (s *PersonStore) CountSections(ctx context.Context, personID string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM person_section WHERE person_id = $1`, personID).Scan(&n); err != nil {
		return 0, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "counting sections for person %s: %w", personID, err)
	}
	return n, nil
}

// ListSections returns the person's sections in insertion order.
func (s *PersonStore) ListSections(ctx context.Context, personID string) ([]*store.Section, error) {
	const q = `SELECT id, person_id, slug, heading, content, token_count, embedding, created_at
FROM person_section
WHERE person_id = $1
ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, q, personID)
	if err != nil {
		return nil, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "listing sections for person %s: %w", personID, err)
	}
	defer rows.Close()

	var sections []*store.Section
	for rows.Next() {
		var (
			sec store.Section
			vec pgvector.Vector
		)
		if err := rows.Scan(&sec.ID, &sec.PersonID, &sec.Slug, &sec.Heading, &sec.Content, &sec.TokenCount, &vec, &sec.CreatedAt); err != nil {
			return nil, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "scanning section: %w", err)
		}
		sec.Embedding = vec.Slice()
		sections = append(sections, &sec)
	}
	if err := rows.Err(); err != nil {
		return nil, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "iterating sections: %w", err)
	}
	return sections, nil
}

// MatchSections runs the match_person_sections function.
func (s *PersonStore) MatchSections(ctx context.Context, params store.MatchParams) ([]store.SectionMatch, error) {
	if err := params.Validate(s.dimensions); err != nil {
		return nil, err
	}
	if params.Count <= 0 {
		return []store.SectionMatch{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, person_id, username, slug, heading, content, token_count, created_at, similarity
FROM match_person_sections($1, $2, $3, $4)`,
		pgvector.NewVector(params.Embedding), params.Threshold, params.Count, params.MinContentLength)
	if err != nil {
		return nil, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "matching sections: %w", err)
	}
	defer rows.Close()

	matches := make([]store.SectionMatch, 0, params.Count)
	for rows.Next() {
		var m store.SectionMatch
		if err := rows.Scan(&m.Section.ID, &m.Section.PersonID, &m.Username, &m.Section.Slug, &m.Section.Heading,
			&m.Section.Content, &m.Section.TokenCount, &m.Section.CreatedAt, &m.Similarity); err != nil {
			return nil, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "scanning section match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "iterating section matches: %w", err)
	}
	return matches, nil
}
