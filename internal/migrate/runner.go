package migrate

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"user-service/internal/store"
)

// State is where a run currently is.
type State int

const (
	NotStarted State = iota
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Outcome is what happened to a single unit.
type Outcome string

const (
	Applied Outcome = "applied"
	Skipped Outcome = "skipped"
	Errored Outcome = "failed"
)

// UnitResult records one unit attempt.
type UnitResult struct {
	Name     string
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// Report describes one run. FailedAt is -1 unless State is Failed.
type Report struct {
	Direction Direction
	State     State
	Current   int
	FailedAt  int
	Results   []UnitResult
}

// Applied counts the units whose operation ran successfully.
func (r *Report) Applied() int { return r.count(Applied) }

// Skipped counts the units that had no operation for the run's direction.
func (r *Report) Skipped() int { return r.count(Skipped) }

func (r *Report) count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Runner applies units sequentially against a store and stops at the first
// failure. Units applied before a failure stay applied.
type Runner struct {
	store  *store.Store
	logger zerolog.Logger
	ledger bool
}

type Option func(*Runner)

// WithLogger sets the logger used for per-unit and summary lines.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithoutLedger disables writes to the schema_migrations table.
func WithoutLedger() Option {
	return func(r *Runner) {
		r.ledger = false
	}
}

func NewRunner(s *store.Store, opts ...Option) *Runner {
	r := &Runner{
		store:  s,
		logger: zerolog.New(io.Discard),
		ledger: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every unit's operation for d, each in its own transaction.
// Units run in ascending name order for Up and descending for Down. A unit
// without an operation for d is logged and counted as skipped. The returned
// error is a *UnitError when a unit fails.
func (r *Runner) Run(ctx context.Context, d Direction, units []Unit) (*Report, error) {
	report := &Report{Direction: d, State: NotStarted, FailedAt: -1}

	if _, err := ParseDirection(string(d)); err != nil {
		return report, err
	}
	ordered, err := Order(units, d)
	if err != nil {
		return report, err
	}
	r.logger.Info().Int("count", len(ordered)).Str("direction", string(d)).Msgf("Running %d migrations %s", len(ordered), d)
	report.State = Running

	// ledger table is created by the first unit that runs
	ledgerReady := false
	for i, u := range ordered {
		report.Current = i
		log := r.logger.With().Str("migration", u.Name).Str("direction", string(d)).Logger()

		op := u.Operation(d)
		if op == nil {
			log.Info().Msgf("Migration %s has no %s operation, skipping", u.Name, d)
			report.Results = append(report.Results, UnitResult{Name: u.Name, Outcome: Skipped})
			continue
		}

		start := time.Now()
		err := r.store.Transact(ctx, func(tx store.Execer) error {
			if r.ledger && !ledgerReady {
				if err := ensureLedger(ctx, tx); err != nil {
					return err
				}
			}
			if err := op(ctx, tx); err != nil {
				return err
			}
			if r.ledger {
				return recordInLedger(ctx, tx, d, u.Name)
			}
			return nil
		})
		elapsed := time.Since(start)

		if err != nil {
			log.Error().Err(err).Msgf("Migration %s failed", u.Name)
			report.Results = append(report.Results, UnitResult{Name: u.Name, Outcome: Errored, Err: err, Duration: elapsed})
			report.State = Failed
			report.FailedAt = i
			return report, &UnitError{Index: i, Name: u.Name, Direction: d, Err: err}
		}

		ledgerReady = true
		log.Info().Dur("duration", elapsed).Msgf("Migration %s completed", u.Name)
		report.Results = append(report.Results, UnitResult{Name: u.Name, Outcome: Applied, Duration: elapsed})
	}

	report.State = Completed
	summary := "All migrations completed successfully"
	if d == Down {
		summary = "All rollbacks completed successfully"
	}
	r.logger.Info().Int("applied", report.Applied()).Int("skipped", report.Skipped()).Msg(summary)
	return report, nil
}

// UnitStatus pairs a unit with its ledger entry.
type UnitStatus struct {
	Name      string
	HasUp     bool
	HasDown   bool
	AppliedAt *time.Time
}

// Status lists units in ascending order together with the time each was last
// applied, if the ledger has a record of it.
func (r *Runner) Status(ctx context.Context, units []Unit) ([]UnitStatus, error) {
	ordered, err := Order(units, Up)
	if err != nil {
		return nil, err
	}
	entries, err := ledgerEntries(ctx, r.store)
	if err != nil {
		return nil, err
	}

	out := make([]UnitStatus, 0, len(ordered))
	for _, u := range ordered {
		st := UnitStatus{Name: u.Name, HasUp: u.Up != nil, HasDown: u.Down != nil}
		if at, ok := entries[u.Name]; ok {
			at := at
			st.AppliedAt = &at
		}
		out = append(out, st)
	}
	return out, nil
}

// IsUnitFailure reports whether err came from a unit operation rather than
// from loading or validation.
func IsUnitFailure(err error) bool {
	var ue *UnitError
	return errors.As(err, &ue)
}
