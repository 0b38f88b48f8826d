// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package sqlite

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"

	"github.com/magic-matching/magicmatch/internal/store"
	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

// InsertSection stores one section with its embedding.
func (s *PersonStore) InsertSection(ctx context.Context, personID string, in *store.SectionInput) (*store.Section, error) {
	if err := in.Validate(s.dimensions); err != nil {
		return nil, err
	}

	blob, err := sqlite_vec.SerializeFloat32(in.Embedding)
	if err != nil {
		return nil, mmerr.Errorf(mmerr.CodeStoreSectionInvalid, "serializing embedding: %w", err)
	}

	sec := &store.Section{
		ID:         uuid.NewString(),
		PersonID:   personID,
		Slug:       in.Slug,
		Heading:    in.Heading,
		Content:    in.Content,
		TokenCount: in.TokenCount,
		Embedding:  in.Embedding,
		CreatedAt:  time.Now().UTC(),
	}

	const q = `INSERT INTO person_section (id, person_id, slug, heading, content, token_count, embedding, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		sec.ID, sec.PersonID, sec.Slug, sec.Heading, sec.Content, sec.TokenCount, blob, formatTime(sec.CreatedAt),
	); err != nil {
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM person_section WHERE person_id = ?`, personID)
	if err != nil {
		return 0, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "deleting sections for person %s: %w", personID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "deleting sections for person %s: %w", personID, err)
	}
	return int(n), nil
}

// DeleteSectionsExcept removes the person's sections not listed in keep.
func (s *PersonStore) DeleteSectionsExcept(ctx context.Context, personID string, keep []string) (int, error) {
	if len(keep) == 0 {
		return s.DeleteSectionsForPerson(ctx, personID)
	}

	args := make([]any, 0, len(keep)+1)
	args = append(args, personID)
	for _, id := range keep {
		args = append(args, id)
	}
	q := `DELETE FROM person_section WHERE person_id = ? AND id NOT IN (?` + strings.Repeat(", ?", len(keep)-1) + `)`

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "pruning sections for person %s: %w", personID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "pruning sections for person %s: %w", personID, err)
	}
	return int(n), nil
}

// CountSections returns the number of stored sections for the person.
func (s *PersonStore) CountSections(ctx context.Context, personID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM person_section WHERE person_id = ?`, personID,
	).Scan(&n); err != nil {
		return 0, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "counting sections for person %s: %w", personID, err)
	}
	return n, nil
}

// ListSections returns the person's sections in insertion order.
func (s *PersonStore) ListSections(ctx context.Context, personID string) ([]*store.Section, error) {
	const q = `SELECT id, person_id, slug, heading, content, token_count, vec_to_json(embedding), created_at
FROM person_section
WHERE person_id = ?
ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, q, personID)
	if err != nil {
		return nil, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "listing sections for person %s: %w", personID, err)
	}
	defer func() { _ = rows.Close() }()

	var sections []*store.Section
	for rows.Next() {
		var (
			sec       store.Section
			vecJSON   string
			createdAt string
		)
		if err := rows.Scan(&sec.ID, &sec.PersonID, &sec.Slug, &sec.Heading, &sec.Content, &sec.TokenCount, &vecJSON, &createdAt); err != nil {
			return nil, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "scanning section: %w", err)
		}
		if err := json.Unmarshal([]byte(vecJSON), &sec.Embedding); err != nil {
			return nil, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "decoding embedding of section %s: %w", sec.ID, err)
		}
		sec.CreatedAt = parseTime(createdAt)
		sections = append(sections, &sec)
	}
	if err := rows.Err(); err != nil {
		return nil, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "iterating sections: %w", err)
	}
	return sections, nil
}

// MatchSections scores sections by cosine similarity to the query embedding.
// Similarity is 1 - vec_distance_cosine.
func (s *PersonStore) MatchSections(ctx context.Context, params store.MatchParams) ([]store.SectionMatch, error) {
	if err := params.Validate(s.dimensions); err != nil {
		return nil, err
	}
	if params.Count <= 0 {
		return []store.SectionMatch{}, nil
	}

	blob, err := sqlite_vec.SerializeFloat32(params.Embedding)
	if err != nil {
		return nil, mmerr.Errorf(mmerr.CodeStoreMatchInvalid, "serializing query vector: %w", err)
	}

	const q = `SELECT id, person_id, username, slug, heading, content, token_count, created_at, similarity
FROM (
	SELECT s.id, s.person_id, p.username, s.slug, s.heading, s.content, s.token_count, s.created_at,
		1 - vec_distance_cosine(s.embedding, ?) AS similarity
	FROM person_section s
	JOIN person p ON p.id = s.person_id
	WHERE p.checksum != '' AND length(s.content) >= ?
)
WHERE similarity >= ?
ORDER BY similarity DESC, id ASC
LIMIT ?`

	rows, err := s.db.QueryContext(ctx, q, blob, params.MinContentLength, params.Threshold, params.Count)
	if err != nil {
		return nil, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "matching sections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	matches := make([]store.SectionMatch, 0, params.Count)
	for rows.Next() {
		var (
			m         store.SectionMatch
			createdAt string
		)
		if err := rows.Scan(&m.Section.ID, &m.Section.PersonID, &m.Username, &m.Section.Slug, &m.Section.Heading,
			&m.Section.Content, &m.Section.TokenCount, &createdAt, &m.Similarity); err != nil {
			return nil, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "scanning section match: %w", err)
		}
		m.Section.CreatedAt = parseTime(createdAt)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "iterating section matches: %w", err)
	}
	return matches, nil
}
