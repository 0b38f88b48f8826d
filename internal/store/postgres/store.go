// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

// Package postgres implements store.PersonStore on PostgreSQL with the
// pgvector extension. The schema mirrors the person and person_section tables
// of the hosted deployment, including the match_person_sections function.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/magic-matching/magicmatch/internal/store"
	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

// PostgreSQL error codes used for classification.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Compile-time interface check.
var _ store.PersonStore = (*PersonStore)(nil)

// PersonStore implements store.PersonStore backed by a pgx connection pool.
type PersonStore struct {
	pool       *pgxpool.Pool
	dimensions int
	logger     *slog.Logger
}

// NewPersonStore connects to dsn, ensures the vector extension and schema
// exist, and returns a pooled store.
func NewPersonStore(ctx context.Context, dsn string, dimensions int) (*PersonStore, error) {
	if dsn == "" {
		return nil, mmerr.New(mmerr.CodeStoreInvalidInput, "postgres dsn is required")
	}
	if dimensions <= 0 {
		return nil, mmerr.Errorf(mmerr.CodeStoreInvalidInput, "vector dimensions must be positive, got %d", dimensions)
	}

	// The vector type must exist before pooled connections register it.
	if err := ensureExtension(ctx, dsn); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, mmerr.Errorf(mmerr.CodeStoreInvalidInput, "parsing postgres dsn: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "opening postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "pinging postgres: %w", err)
	}

	if err := migrate(ctx, pool, dimensions); err != nil {
		pool.Close()
		return nil, mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "migrating person tables: %w", err)
	}

	return &PersonStore{pool: pool, dimensions: dimensions, logger: slog.Default()}, nil
}

func ensureExtension(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "connecting to postgres: %w", err)
	}
	defer func() { _ = conn.Close(ctx) }()

	if _, err := conn.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return mmerr.Errorf(mmerr.CodeStoreDatabaseFailure, "creating vector extension: %w", err)
	}
	return nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool, dimensions int) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS person (
	id              TEXT PRIMARY KEY,
	organization_id BIGINT NOT NULL DEFAULT 0,
	username        TEXT NOT NULL UNIQUE,
	location        TEXT NOT NULL DEFAULT '',
	meta            JSONB NOT NULL DEFAULT '{}'::jsonb,
	checksum        TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS person_section (
	id          TEXT PRIMARY KEY,
	person_id   TEXT NOT NULL REFERENCES person(id) ON DELETE CASCADE,
	slug        TEXT NOT NULL DEFAULT '',
	heading     TEXT NOT NULL DEFAULT '',
	content     TEXT NOT NULL,
	token_count INTEGER NOT NULL DEFAULT 0,
	embedding   vector(%d) NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
);

CREATE INDEX IF NOT EXISTS idx_person_section_person ON person_section(person_id);

CREATE INDEX IF NOT EXISTS idx_person_section_embedding
	ON person_section USING hnsw (embedding vector_cosine_ops);

CREATE OR REPLACE FUNCTION match_person_sections(
	query_embedding vector(%d),
	match_threshold float,
	match_count int,
	min_content_length int
)
RETURNS TABLE (
	id text, person_id text, username text, slug text, heading text,
	content text, token_count int, created_at timestamptz, similarity float
)
LANGUAGE sql STABLE
AS $$
	SELECT s.id, s.person_id, p.username, s.slug, s.heading,
		s.content, s.token_count, s.created_at,
		1 - (s.embedding <=> query_embedding) AS similarity
	FROM person_section s
	JOIN person p ON p.id = s.person_id
	WHERE p.checksum <> ''
		AND length(s.content) >= min_content_length
		AND 1 - (s.embedding <=> query_embedding) >= match_threshold
	ORDER BY similarity DESC, s.id ASC
	LIMIT match_count;
$$;`, dimensions, dimensions)

	_, err := pool.Exec(ctx, ddl)
	return err
}

// Dimensions returns the embedding dimension the store accepts.
func (s *PersonStore) Dimensions() int {
	return s.dimensions
}

// Close releases the connection pool.
func (s *PersonStore) Close() error {
	s.pool.Close()
	return nil
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == pgForeignKeyViolation
}
