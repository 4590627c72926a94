package migrate

import (
	"context"
	"fmt"
	"time"

	"user-service/internal/store"
)

// LedgerTable keeps a note of which units were last applied. The runner only
// writes to it; it never uses it to decide what to run.
const LedgerTable = "schema_migrations"

func ensureLedger(ctx context.Context, tx store.Execer) error {
	_, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+LedgerTable+` (
		name       TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create %s: %w", LedgerTable, err)
	}
	return nil
}

func recordInLedger(ctx context.Context, tx store.Execer, d Direction, name string) error {
	var err error
	switch d {
	case Up:
		_, err = tx.ExecContext(ctx, `INSERT INTO `+LedgerTable+` (name) VALUES (?)
			ON CONFLICT(name) DO UPDATE SET applied_at = CURRENT_TIMESTAMP`, name)
	case Down:
		_, err = tx.ExecContext(ctx, `DELETE FROM `+LedgerTable+` WHERE name = ?`, name)
	}
	if err != nil {
		return fmt.Errorf("record %s in %s: %w", name, LedgerTable, err)
	}
	return nil
}

func ledgerEntries(ctx context.Context, s *store.Store) (map[string]time.Time, error) {
	ok, err := s.HasTable(ctx, LedgerTable)
	if err != nil || !ok {
		return map[string]time.Time{}, err
	}

	rows, err := s.Query(ctx, `SELECT name, applied_at FROM `+LedgerTable)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", LedgerTable, err)
	}
	defer rows.Close()

	entries := make(map[string]time.Time)
	for rows.Next() {
		var (
			name string
			at   store.Time
		)
		if err := rows.Scan(&name, &at); err != nil {
			return nil, fmt.Errorf("scan %s: %w", LedgerTable, err)
		}
		entries[name] = at.Time
	}
	return entries, rows.Err()
}
