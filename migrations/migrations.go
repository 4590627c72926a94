// Package migrations holds the schema units for the users database.
package migrations

import (
	"context"
	"embed"
	"io/fs"

	"github.com/rs/zerolog"

	"user-service/internal/migrate"
	"user-service/internal/store"
)

//go:embed *.sql TEMPLATE.sql.txt
var files embed.FS

// FS exposes the embedded unit files.
func FS() fs.FS {
	return files
}

// Units loads every embedded unit in name order.
func Units() ([]migrate.Unit, error) {
	return migrate.Discover(files, ".")
}

// AutoMigrate applies all units upwards. The server calls it at startup.
func AutoMigrate(ctx context.Context, s *store.Store, logger zerolog.Logger) error {
	units, err := Units()
	if err != nil {
		return err
	}
	_, err = migrate.NewRunner(s, migrate.WithLogger(logger)).Run(ctx, migrate.Up, units)
	return err
}
