// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magic-matching/magicmatch/internal/store"
	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

const personColumns = `id, organization_id, username, location, meta, checksum, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

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

	now := formatTime(time.Now())
	const q = `INSERT INTO person (id, organization_id, username, location, meta, checksum, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, '', ?, ?)
ON CONFLICT(username) DO UPDATE SET
	organization_id = excluded.organization_id,
	location        = excluded.location,
	meta            = excluded.meta,
	updated_at      = excluded.updated_at
RETURNING ` + personColumns

	row := s.db.QueryRowContext(ctx, q, uuid.NewString(), in.OrganizationID, in.Username, in.Location, metaJSON, now, now)
	p, err := s.scanPerson(row)
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

	now := formatTime(time.Now())
	const q = `INSERT INTO person (id, organization_id, username, location, meta, checksum, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, '', ?, ?)
RETURNING ` + personColumns

	row := s.db.QueryRowContext(ctx, q, uuid.NewString(), in.OrganizationID, in.Username, in.Location, metaJSON, now, now)
	p, err := s.scanPerson(row)
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
	row := s.db.QueryRowContext(ctx, `SELECT `+personColumns+` FROM person WHERE username = ?`, username)
	p, err := s.scanPerson(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, mmerr.Errorf(mmerr.CodeStorePersonNotFound, "person %q: %w", username, store.ErrNotFound)
		}
		return nil, mmerr.Wrapf(err, mmerr.CodeStoreDatabaseFailure, "getting person %q", username)
	}
	return p, nil
}

// ListPersons returns persons ordered by username.
func (s *PersonStore) ListPersons(ctx context.Context, opts store.ListOpts) ([]*store.Person, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+personColumns+` FROM person ORDER BY username LIMIT ? OFFSET ?`,
		limit, max(opts.Offset, 0))
	if err != nil {
		return nil, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "listing persons: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var persons []*store.Person
	for rows.Next() {
		p, err := s.scanPerson(rows)
		if err != nil {
			return nil, err
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

	current, err := s.GetPerson(ctx, username)
	if err != nil {
		return nil, err
	}

	newUsername := current.Username
	if upd.Username != nil {
		newUsername = *upd.Username
	}
	location := current.Location
	if upd.Location != nil {
		location = *upd.Location
	}
	meta := current.Meta
	if upd.Meta != nil {
		meta = upd.Meta
	}

	metaJSON, err := marshalMeta(meta)
	if err != nil {
		return nil, err
	}

	const q = `UPDATE person SET username = ?, location = ?, meta = ?, updated_at = ?
WHERE id = ?
RETURNING ` + personColumns

	row := s.db.QueryRowContext(ctx, q, newUsername, location, metaJSON, formatTime(time.Now()), current.ID)
	p, err := s.scanPerson(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, mmerr.Errorf(mmerr.CodeStorePersonConflict, "person %q already exists: %w", newUsername, store.ErrConflict)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, mmerr.Errorf(mmerr.CodeStorePersonNotFound, "person %q: %w", username, store.ErrNotFound)
		}
		return nil, mmerr.Wrapf(err, mmerr.CodeStoreDatabaseFailure, "updating person %q", username)
	}
	return p, nil
}

// DeletePerson removes a person. Sections are removed by the foreign key cascade.
func (s *PersonStore) DeletePerson(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM person WHERE username = ?`, username)
	if err != nil {
		return mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "deleting person %q: %w", username, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "deleting person %q: %w", username, err)
	}
	if n == 0 {
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
	res, err := s.db.ExecContext(ctx,
		`UPDATE person SET checksum = ?, updated_at = ? WHERE id = ?`,
		checksum, formatTime(time.Now()), personID)
	if err != nil {
		return mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "updating checksum for person %s: %w", personID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "updating checksum for person %s: %w", personID, err)
	}
	if n == 0 {
		return mmerr.Errorf(mmerr.CodeStorePersonNotFound, "person %s: %w", personID, store.ErrNotFound)
	}
	return nil
}

func (s *PersonStore) scanPerson(row rowScanner) (*store.Person, error) {
	var (
		p                    store.Person
		metaStr              string
		createdAt, updatedAt string
	)
	err := row.Scan(&p.ID, &p.OrganizationID, &p.Username, &p.Location, &metaStr, &p.Checksum, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			return nil, err
		}
		return nil, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "scanning person: %w", err)
	}

	if metaStr != "" && metaStr != "{}" {
		if err := json.Unmarshal([]byte(metaStr), &p.Meta); err != nil {
			s.logger.Warn("failed to unmarshal person meta",
				slog.String("person_id", p.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
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
