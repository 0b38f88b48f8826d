// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package sqlite

import (
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/magic-matching/magicmatch/internal/store"
	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ store.PersonStore = (*PersonStore)(nil)

// PersonStore implements store.PersonStore backed by SQLite. Section
// embeddings are stored as sqlite-vec float32 blobs and scored with
// vec_distance_cosine.
type PersonStore struct {
	db         *sql.DB
	dimensions int
	logger     *slog.Logger
}

// NewPersonStore opens (or creates) a SQLite database at dbPath and
// initialises the person and person_section tables.
func NewPersonStore(dbPath string, dimensions int) (*PersonStore, error) {
	if dimensions <= 0 {
		return nil, mmerr.Errorf(mmerr.CodeStoreInvalidInput, "vector dimensions must be positive, got %d", dimensions)
	}

	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "pinging sqlite db: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "migrating person tables: %w", err)
	}

	return &PersonStore{db: db, dimensions: dimensions, logger: slog.Default()}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS person (
	id              TEXT PRIMARY KEY,
	organization_id INTEGER NOT NULL DEFAULT 0,
	username        TEXT NOT NULL UNIQUE,
	location        TEXT NOT NULL DEFAULT '',
	meta            TEXT NOT NULL DEFAULT '{}',
	checksum        TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS person_section (
	id          TEXT PRIMARY KEY,
	person_id   TEXT NOT NULL,
	slug        TEXT NOT NULL DEFAULT '',
	heading     TEXT NOT NULL DEFAULT '',
	content     TEXT NOT NULL,
	token_count INTEGER NOT NULL DEFAULT 0,
	embedding   BLOB NOT NULL,
	created_at  TEXT NOT NULL,
	FOREIGN KEY (person_id) REFERENCES person(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_person_section_person
	ON person_section(person_id);`

	_, err := db.Exec(ddl)
	return err
}

// Dimensions returns the embedding dimension the store accepts.
func (s *PersonStore) Dimensions() int {
	return s.dimensions
}

// Close closes the underlying database connection.
func (s *PersonStore) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// isForeignKeyViolation reports whether err is a SQLite FOREIGN KEY constraint failure.
func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}

// timeLayout is RFC 3339 with a fixed nine-digit fraction, so stored
// timestamps sort correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime serialises a time.Time in UTC using timeLayout.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// parseTime deserialises a time string stored in the database.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
