// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/magic-matching/magicmatch/internal/store"
	"github.com/magic-matching/magicmatch/internal/store/sqlite"
)

// testDir creates a temp directory for a test and returns cleanup func.
func testDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "magicmatch-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// testDBPath returns a temp SQLite database path.
func testDBPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(testDir(t), name+".db")
}

// newTestStore opens a 3-dimensional store in a temp directory.
func newTestStore(t *testing.T, name string) *sqlite.PersonStore {
	t.Helper()
	s, err := sqlite.NewPersonStore(testDBPath(t, name), 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// seedPerson upserts a person, inserts the sections, and marks it complete.
func seedPerson(t *testing.T, s store.PersonStore, username string, sections ...store.SectionInput) *store.Person {
	t.Helper()
	ctx := context.Background()
	p, err := s.UpsertPerson(ctx, &store.PersonInput{Username: username})
	require.NoError(t, err)
	for i := range sections {
		_, err := s.InsertSection(ctx, p.ID, &sections[i])
		require.NoError(t, err)
	}
	require.NoError(t, s.SetChecksum(ctx, p.ID, "sum-"+username))
	return p
}
