// Package migrate discovers schema migration units and applies them, one
// transaction per unit, against a store.
//
// There is no skip-if-applied logic: every run re-executes every unit, so unit
// statements must be idempotent (CREATE TABLE IF NOT EXISTS and friends).
package migrate

import (
	"context"
	"fmt"
	"sort"

	"user-service/internal/store"
)

// Direction selects which operation of each unit a run invokes.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection validates a direction argument.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case Up, Down:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// Operation applies or reverts one unit. It receives the transaction the unit
// runs in.
type Operation func(ctx context.Context, tx store.Execer) error

// Unit is one named schema change. Either operation may be nil.
type Unit struct {
	Name string
	Up   Operation
	Down Operation
}

// NewUnit builds a unit from Go functions.
func NewUnit(name string, up, down Operation) Unit {
	return Unit{Name: name, Up: up, Down: down}
}

// Operation returns the unit's operation for d, or nil when it has none.
func (u Unit) Operation(d Direction) Operation {
	switch d {
	case Up:
		return u.Up
	case Down:
		return u.Down
	}
	return nil
}

// Order returns a copy of units sorted by name, ascending for Up and
// descending for Down. Duplicate names are rejected.
func Order(units []Unit, d Direction) ([]Unit, error) {
	ordered := make([]Unit, len(units))
	copy(ordered, units)

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Name < ordered[j].Name
	})

	for i := 1; i < len(ordered); i++ {
		if ordered[i].Name == ordered[i-1].Name {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateUnit, ordered[i].Name)
		}
	}

	if d == Down {
		for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		}
	}
	return ordered, nil
}
