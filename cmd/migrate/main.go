// Command migrate applies or reverts the warehouse schema migrations
// outside of a pipeline run.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"

	"github.com/JaimeStill/salesflow/internal/warehouse"
	"github.com/JaimeStill/salesflow/pkg/query"
)

const (
	envDSN     = "SALESFLOW_DB_DSN"
	defaultDSN = "sqlite://data/warehouse.db"
)

type options struct {
	dsn     string
	up      bool
	down    bool
	steps   int
	version bool
	force   int
	forced  bool
}

func main() {
	opts, err := parse(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatal(err)
	}
	if err := run(opts, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func parse(args []string, errOut io.Writer) (*options, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(errOut)

	opts := &options{}
	fs.StringVar(&opts.dsn, "dsn", "", "Database URL (postgres://... or sqlite://path)")
	fs.BoolVar(&opts.up, "up", false, "Run all up migrations")
	fs.BoolVar(&opts.down, "down", false, "Run all down migrations")
	fs.IntVar(&opts.steps, "steps", 0, "Number of migrations (positive=up, negative=down)")
	fs.BoolVar(&opts.version, "version", false, "Print current migration version")
	fs.IntVar(&opts.force, "force", -1, "Force set version (use with caution)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		opts.forced = opts.forced || f.Name == "force"
	})

	if opts.dsn == "" {
		opts.dsn = os.Getenv(envDSN)
	}
	if opts.dsn == "" {
		opts.dsn = defaultDSN
	}
	return opts, nil
}

func run(opts *options, out io.Writer) error {
	if !opts.up && !opts.down && !opts.version && !opts.forced && opts.steps == 0 {
		fmt.Fprintln(out, "usage: migrate -dsn <database-url> [-up|-down|-steps N|-version|-force N]")
		return nil
	}

	source, err := warehouse.Source(dialectOf(opts.dsn))
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, opts.dsn)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	switch {
	case opts.version:
		v, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			return fmt.Errorf("read version: %w", err)
		}
		fmt.Fprintf(out, "version: %d, dirty: %v\n", v, dirty)
	case opts.forced:
		if err := m.Force(opts.force); err != nil {
			return fmt.Errorf("force version: %w", err)
		}
		fmt.Fprintf(out, "forced to version %d\n", opts.force)
	case opts.up:
		if err := ignoreNoChange(m.Up()); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		fmt.Fprintln(out, "migrations applied")
	case opts.down:
		if err := ignoreNoChange(m.Down()); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
		fmt.Fprintln(out, "migrations reverted")
	default:
		if err := ignoreNoChange(m.Steps(opts.steps)); err != nil {
			return fmt.Errorf("migrate %d steps: %w", opts.steps, err)
		}
		fmt.Fprintf(out, "applied %d migration steps\n", opts.steps)
	}
	return nil
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

func dialectOf(dsn string) query.Dialect {
	if strings.HasPrefix(dsn, "sqlite") {
		return query.SQLite
	}
	return query.Postgres
}
