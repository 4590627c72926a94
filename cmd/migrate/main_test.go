package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"user-service/internal/store"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("LOG_FORMAT", "json")
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func tables(t *testing.T, dbPath string) []string {
	t.Helper()
	s, err := store.Open(context.Background(), dbPath)
	require.NoError(t, err)
	defer s.Close()

	objects, err := s.Objects(context.Background(), "table")
	require.NoError(t, err)
	var names []string
	for _, o := range objects {
		names = append(names, o.Name)
	}
	return names
}

func TestUpIsDefaultAndRepeatable(t *testing.T) {
	db := filepath.Join(t.TempDir(), "users.sqlite")

	code, _, logs := runCLI(t, "-db", db)
	require.Equal(t, 0, code, logs)
	assert.Contains(t, logs, "Migration 001_create_users completed")
	assert.Contains(t, logs, "Migration 002_add_index completed")
	assert.Contains(t, logs, "All migrations completed successfully")

	code, _, logs = runCLI(t, "-db", db, "up")
	require.Equal(t, 0, code, logs)
	assert.Equal(t, []string{"schema_migrations", "users"}, tables(t, db))
}

func TestDownAfterUp(t *testing.T) {
	db := filepath.Join(t.TempDir(), "users.sqlite")

	code, _, logs := runCLI(t, "-db", db, "up")
	require.Equal(t, 0, code, logs)

	code, _, logs = runCLI(t, "-db", db, "down")
	require.Equal(t, 0, code, logs)
	assert.Contains(t, logs, "All rollbacks completed successfully")
	assert.Equal(t, []string{"schema_migrations"}, tables(t, db))
}

func TestUnknownCommandDoesNotOpenStore(t *testing.T) {
	db := filepath.Join(t.TempDir(), "users.sqlite")

	code, _, logs := runCLI(t, "-db", db, "sideways")
	assert.Equal(t, 1, code)
	assert.Contains(t, logs, `unknown command "sideways"`)
	assert.Contains(t, logs, "Usage: migrate")

	_, err := os.Stat(db)
	assert.True(t, os.IsNotExist(err))
}

func TestTooManyArguments(t *testing.T) {
	code, _, logs := runCLI(t, "-db", filepath.Join(t.TempDir(), "x.sqlite"), "up", "down")
	assert.Equal(t, 1, code)
	assert.Contains(t, logs, "Usage: migrate")
}

func TestStoreOpenFailure(t *testing.T) {
	code, _, logs := runCLI(t, "-db", filepath.Join(t.TempDir(), "missing", "users.sqlite"))
	assert.Equal(t, 1, code)
	assert.Contains(t, logs, "Failed to open database")
}

func TestMissingUnitDirectory(t *testing.T) {
	code, _, logs := runCLI(t, "-db", filepath.Join(t.TempDir(), "x.sqlite"), "-dir", filepath.Join(t.TempDir(), "nope"))
	assert.Equal(t, 1, code)
	assert.Contains(t, logs, "Failed to load migrations")
}

func TestFailingUnitStopsRun(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(t.TempDir(), "x.sqlite")
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	write("001_ok.sql", "-- +migrate Up\nCREATE TABLE IF NOT EXISTS ok (id INTEGER);\n")
	write("002_broken.sql", "-- +migrate Up\nCREATE TABLE (;\n")
	write("003_never.sql", "-- +migrate Up\nCREATE TABLE IF NOT EXISTS never (id INTEGER);\n")

	code, _, logs := runCLI(t, "-db", db, "-dir", dir)
	assert.Equal(t, 1, code)
	assert.Contains(t, logs, "Migration 002_broken failed")
	assert.Contains(t, logs, "Migration run stopped, 1 earlier migrations stay applied")
	assert.Equal(t, []string{"ok", "schema_migrations"}, tables(t, db))
}

func TestStatus(t *testing.T) {
	db := filepath.Join(t.TempDir(), "users.sqlite")

	code, out, _ := runCLI(t, "-db", db, "status")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "001_create_users")
	assert.NotContains(t, out, "Z\n")

	code, _, _ = runCLI(t, "-db", db)
	require.Equal(t, 0, code)

	code, out, _ = runCLI(t, "-db", db, "status")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "002_add_index")
	assert.Contains(t, out, "Z\n")
}
