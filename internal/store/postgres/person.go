// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/magic-matching/magicmatch/internal/store"
	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

const personColumns = `id, organization_id, username, location, meta::text, checksum, created_at, updated_at`

// UpsertPerson inserts or updates the person keyed by username in a single
// statement. The checksum of an existing row is left untouched.
func (s *PersonStore) UpsertPerson(ctx context.Context, in *store.PersonInput) (*store.Person, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	metaJSON, err := marshalMeta(in.Meta)
	if err != nil {
		return nil, err
	}

	const q = `INSERT INTO person (id, organization_id, username, location, meta)
VALUES ($1, $2, $3, $4, $5::jsonb)
ON CONFLICT (username) DO UPDATE SET
	organization_id = excluded.organization_id,
	location        = excluded.location,
	meta            = excluded.meta,
	updated_at      = now()
RETURNING ` + personColumns

	p, err := s.scanPerson(s.pool.QueryRow(ctx, q, uuid.NewString(), in.OrganizationID, in.Username, in.Location, metaJSON))
	if err != nil {
		return nil, mmerr.Wrapf(err, mmerr.CodeStoreDatabaseFailure, "upserting person %q", in.Username)
	}
	return p, nil
}

// CreatePerson inserts a new person. A taken username is a conflict.
func (s *PersonStore) CreatePerson(ctx context.Context, in *store.PersonInput) (*store.Person, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	metaJSON, err := marshalMeta(in.Meta)
	if err != nil {
		return nil, err
	}

	const q = `INSERT INTO person (id, organization_id, username, location, meta)
VALUES ($1, $2, $3, $4, $5::jsonb)
RETURNING ` + personColumns

	p, err := s.scanPerson(s.pool.QueryRow(ctx, q, uuid.NewString(), in.OrganizationID, in.Username, in.Location, metaJSON))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, mmerr.Errorf(mmerr.CodeStorePersonConflict, "person %q already exists: %w", in.Username, store.ErrConflict)
		}
		return nil, mmerr.Wrapf(err, mmerr.CodeStoreDatabaseFailure, "creating person %q", in.Username)
	}
	return p, nil
}

// GetPerson retrieves a person by username.
func (s *PersonStore) GetPerson(ctx context.Context, username string) (*store.Person, error) {
	p, err := s.scanPerson(s.pool.QueryRow(ctx, `SELECT `+personColumns+` FROM person WHERE username = $1`, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mmerr.Errorf(mmerr.CodeStorePersonNotFound, "person %q: %w", username, store.ErrNotFound)
		}
		return nil, mmerr.Wrapf(err, mmerr.CodeStoreDatabaseFailure, "getting person %q", username)
	}
	return p, nil
}

// ListPersons returns persons ordered by username.
func (s *PersonStore) ListPersons(ctx context.Context, opts store.ListOpts) ([]*store.Person, error) {
	var limit any // NULL means no limit
	if opts.Limit > 0 {
		limit = opts.Limit
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+personColumns+` FROM person ORDER BY username LIMIT $1 OFFSET $2`,
		limit, max(opts.Offset, 0))
	if err != nil {
		return nil, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "listing persons: %w", err)
	}
	defer rows.Close()

	var persons []*store.Person
	for rows.Next() {
		p, err := s.scanPerson(rows)
		if err != nil {
			return nil, mmerr.Wrapf(err, mmerr.CodeStoreDatabaseFailure, "scanning person")
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "iterating persons: %w", err)
	}
	return persons, nil
}

// UpdatePerson applies the non-nil fields of upd to the person.
func (s *PersonStore) UpdatePerson(ctx context.Context, username string, upd *store.PersonUpdate) (*store.Person, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	var metaJSON *string
	if upd.Meta != nil {
		m, err := marshalMeta(upd.Meta)
		if err != nil {
			return nil, err
		}
		metaJSON = &m
	}

	const q = `UPDATE person SET
	username   = COALESCE($2, username),
	location   = COALESCE($3, location),
	meta       = COALESCE($4::jsonb, meta),
	updated_at = now()
WHERE username = $1
RETURNING ` + personColumns

	p, err := s.scanPerson(s.pool.QueryRow(ctx, q, username, upd.Username, upd.Location, metaJSON))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, mmerr.Errorf(mmerr.CodeStorePersonNotFound, "person %q: %w", username, store.ErrNotFound)
		case isUniqueViolation(err):
			return nil, mmerr.Errorf(mmerr.CodeStorePersonConflict, "person %q already exists: %w", *upd.Username, store.ErrConflict)
		}
		return nil, mmerr.Wrapf(err, mmerr.CodeStoreDatabaseFailure, "updating person %q", username)
	}
	return p, nil
}

// DeletePerson removes a person. Sections are removed by the foreign key cascade.
func (s *PersonStore) DeletePerson(ctx context.Context, username string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM person WHERE username = $1`, username)
	if err != nil {
		return mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "deleting person %q: %w", username, err)
	}
	if tag.RowsAffected() == 0 {
		return mmerr.Errorf(mmerr.CodeStorePersonNotFound, "person %q: %w", username, store.ErrNotFound)
	}
	return nil
}

// ClearChecksum marks the person as incomplete.
func (s *PersonStore) ClearChecksum(ctx context.Context, personID string) error {
	return s.setChecksum(ctx, personID, "")
}

// SetChecksum marks the person as complete.
func (s *PersonStore) SetChecksum(ctx context.Context, personID, checksum string) error {
	if checksum == "" {
		return mmerr.New(mmerr.CodeStoreInvalidInput, "checksum must not be empty")
	}
	return s.setChecksum(ctx, personID, checksum)
}

func (s *PersonStore) setChecksum(ctx context.Context, personID, checksum string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE person SET checksum = $1, updated_at = now() WHERE id = $2`, checksum, personID)
	if err != nil {
		return mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "updating checksum for person %s: %w", personID, err)
	}
	if tag.RowsAffected() == 0 {
		return mmerr.Errorf(mmerr.CodeStorePersonNotFound, "person %s: %w", personID, store.ErrNotFound)
	}
	return nil
}

func (s *PersonStore) scanPerson(row pgx.Row) (*store.Person, error) {
	var (
		p       store.Person
		metaStr string
	)
	if err := row.Scan(&p.ID, &p.OrganizationID, &p.Username, &p.Location, &metaStr, &p.Checksum, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if metaStr != "" && metaStr != "{}" {
		if err := json.Unmarshal([]byte(metaStr), &p.Meta); err != nil {
			s.logger.Warn("failed to unmarshal person meta",
				slog.String("person_id", p.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return &p, nil
}

func marshalMeta(meta map[string]any) (string, error) {
	if len(meta) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", mmerr.Errorf(mmerr.CodeStoreInvalidInput, "marshalling person meta: %w", err)
	}
	return string(b), nil
}
