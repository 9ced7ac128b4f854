package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DefaultTable records the applied migration version.
const DefaultTable = "schema_migrations"

// Runner applies the embedded migrations to one database.
type Runner struct {
	migrate *migrate.Migrate
	db      *sql.DB
}

// migrateLogger forwards golang-migrate output to slog.
type migrateLogger struct{}

var _ migrate.Logger = (*migrateLogger)(nil)

func (migrateLogger) Printf(format string, v ...any) {
	slog.Debug(fmt.Sprintf(format, v...), "component", "migrate")
}

func (migrateLogger) Verbose() bool { return false }

// NewRunner validates the embedded migrations and connects to databaseURL.
func NewRunner(ctx context.Context, databaseURL, table string) (*Runner, error) {
	if table == "" {
		table = DefaultTable
	}
	if err := Validate(embedded); err != nil {
		return nil, fmt.Errorf("embedded migration validation failed: %w", err)
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: table})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	source, err := iofs.New(embedded, ".")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create embedded migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}

	return &Runner{migrate: m, db: db}, nil
}

// Up applies all pending migrations. Already being current is not an error.
func (r *Runner) Up() error {
	err := r.migrate.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		slog.Info("ledger schema up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}
	slog.Info("ledger migrations applied")
	return nil
}

// Down rolls back the last migration.
func (r *Runner) Down() error {
	err := r.migrate.Steps(-1)
	if errors.Is(err, migrate.ErrNoChange) {
		slog.Info("no migrations to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration down failed: %w", err)
	}
	slog.Info("last migration rolled back")
	return nil
}

// Version returns the applied version; 0 when nothing is applied.
func (r *Runner) Version() (uint, bool, error) {
	v, dirty, err := r.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return v, dirty, nil
}

// Close closes the migrate instance and its connection.
func (r *Runner) Close() error {
	var errs []error
	if r.migrate != nil {
		sourceErr, dbErr := r.migrate.Close()
		if sourceErr != nil {
			errs = append(errs, fmt.Errorf("source close error: %w", sourceErr))
		}
		if dbErr != nil {
			errs = append(errs, fmt.Errorf("database close error: %w", dbErr))
		}
	}
	return errors.Join(errs...)
}

// Up is a convenience wrapper: connect, migrate up, close.
func Up(ctx context.Context, databaseURL, table string) error {
	r, err := NewRunner(ctx, databaseURL, table)
	if err != nil {
		return err
	}
	defer r.Close()
	return r.Up()
}
