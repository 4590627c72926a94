// Package testutil opens migrated stores for package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"user-service/internal/store"
	"user-service/migrations"
)

// NewStore returns a store in a temp directory with every unit applied. It is
// closed when the test ends.
func NewStore(t testing.TB) *store.Store {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(ctx, filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, migrations.AutoMigrate(ctx, s, zerolog.Nop()))
	return s
}
