package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"user-service/internal/config"
	"user-service/internal/logging"
	"user-service/internal/migrate"
	"user-service/internal/store"
	"user-service/migrations"
)

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: migrate [flags] [up|down|status]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  up      apply every unit in name order (default)")
	fmt.Fprintln(w, "  down    revert every unit in reverse name order")
	fmt.Fprintln(w, "  status  list units and when each was last applied")
	fmt.Fprintln(w)
	fs.PrintDefaults()
}

func loadUnits(dir string) ([]migrate.Unit, error) {
	if dir == "" {
		return migrations.Units()
	}
	return migrate.Discover(os.DirFS(dir), ".")
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	logger := logging.New(stderr, cfg.LogLevel, cfg.LogFormat)

	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", cfg.DBPath, "path to the SQLite database")
	dir := fs.String("dir", "", "read unit files from this directory instead of the built-in set")
	fs.Usage = func() { usage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	command := "up"
	switch fs.NArg() {
	case 0:
	case 1:
		command = fs.Arg(0)
	default:
		fs.Usage()
		return 1
	}
	if command != "status" {
		if _, err := migrate.ParseDirection(command); err != nil {
			fmt.Fprintf(stderr, "unknown command %q\n\n", command)
			fs.Usage()
			return 1
		}
	}

	units, err := loadUnits(*dir)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load migrations")
		return 1
	}

	s, err := store.Open(ctx, *dbPath)
	if err != nil {
		logger.Error().Err(err).Str("db", *dbPath).Msg("Failed to open database")
		return 1
	}
	defer s.Close()

	runner := migrate.NewRunner(s, migrate.WithLogger(logger))

	if command == "status" {
		statuses, err := runner.Status(ctx, units)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to read migration status")
			return 1
		}
		printStatus(stdout, statuses)
		return 0
	}

	report, err := runner.Run(ctx, migrate.Direction(command), units)
	if err != nil {
		if migrate.IsUnitFailure(err) {
			logger.Error().Err(err).Int("applied", report.Applied()).
				Msgf("Migration run stopped, %d earlier migrations stay applied", report.Applied())
			return 1
		}
		logger.Error().Err(err).Msg("Migration run failed")
		return 1
	}
	return 0
}

func printStatus(w io.Writer, statuses []migrate.UnitStatus) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MIGRATION\tUP\tDOWN\tAPPLIED AT")
	for _, st := range statuses {
		applied := "-"
		if st.AppliedAt != nil {
			applied = st.AppliedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%t\t%t\t%s\n", st.Name, st.HasUp, st.HasDown, applied)
	}
	tw.Flush()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
