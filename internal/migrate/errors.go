package migrate

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDirection = errors.New("invalid migration direction")
	ErrDuplicateUnit    = errors.New("duplicate migration unit")
)

// LoadError reports a unit file that could not be read or parsed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load migration %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// UnitError reports the unit that stopped a run.
type UnitError struct {
	Index     int
	Name      string
	Direction Direction
	Err       error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("migration %s (%s) failed: %v", e.Name, e.Direction, e.Err)
}

func (e *UnitError) Unwrap() error { return e.Err }
