package store

import (
	"context"
	"fmt"
)

// Object is one entry of the schema catalogue.
type Object struct {
	Type  string
	Name  string
	Table string
}

// Objects lists user-defined schema objects of the given kind ("table",
// "index", ...). An empty kind lists everything. SQLite internal objects and
// auto-indexes are left out.
func (s *Store) Objects(ctx context.Context, kind string) ([]Object, error) {
	query := `SELECT type, name, tbl_name FROM sqlite_master
		WHERE name NOT LIKE 'sqlite_%'`
	args := []any{}
	if kind != "" {
		query += " AND type = ?"
		args = append(args, kind)
	}
	query += " ORDER BY type, name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query schema catalogue: %w", err)
	}
	defer rows.Close()

	var objects []Object
	for rows.Next() {
		var o Object
		if err := rows.Scan(&o.Type, &o.Name, &o.Table); err != nil {
			return nil, fmt.Errorf("scan schema object: %w", err)
		}
		objects = append(objects, o)
	}
	return objects, rows.Err()
}

// HasTable reports whether a table with the given name exists.
func (s *Store) HasTable(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup table %s: %w", name, err)
	}
	return n > 0, nil
}
