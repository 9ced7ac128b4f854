package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JonMunkholm/silverload/internal/application"
	"github.com/JonMunkholm/silverload/internal/config"
	"github.com/JonMunkholm/silverload/internal/core"
	_ "github.com/JonMunkholm/silverload/internal/core/contracts" // Register all contracts
	"github.com/JonMunkholm/silverload/internal/logging"
	"github.com/JonMunkholm/silverload/internal/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// annotationNoConfig marks commands that run without configuration.
const annotationNoConfig = "silverload/no-config"

// env is the state shared by every subcommand once the root has run.
type env struct {
	cfg     *config.Config
	migrate bool
	stdout  io.Writer
}

// NewRootCommand builds the silverload command tree.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	e := &env{stdout: stdout}

	rc := &cobra.Command{
		Use:   "silverload",
		Short: "Load bronze workbook snapshots into validated silver tables.",
		Long: `silverload turns raw .xlsx workbooks into timestamped parquet batches
(the bronze store) and loads each batch newer than the last completed load
into PostgreSQL (the silver store), one table per sheet. Rows that fail their
table contract are written next to the batch under invalids/.

Configuration comes from the environment, optionally seeded from a .env file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[annotationNoConfig] == "true" {
				return nil
			}

			// Overload overwrites existing env vars
			if err := godotenv.Overload(); err != nil {
				slog.Debug("no .env file found, using environment variables")
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
			slog.Debug("configuration loaded", "config", cfg.String())

			e.cfg = cfg
			return nil
		},
	}
	rc.PersistentFlags().BoolVar(&e.migrate, "migrate", true, "apply ledger migrations before connecting")

	rc.AddCommand(newRunCommand(e))
	rc.AddCommand(newIngestCommand(e))
	rc.AddCommand(newServeCommand(e))
	rc.AddCommand(newWatchCommand(e))
	rc.AddCommand(newMigrateCommand(e))
	rc.AddCommand(newContractsCommand(e))

	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

// connect migrates the ledger (unless disabled) and opens the pool.
func (e *env) connect(ctx context.Context) (*pgxpool.Pool, error) {
	if e.migrate {
		if err := migrations.Up(ctx, e.cfg.Database.URL, e.cfg.Database.MigrationsTable); err != nil {
			return nil, err
		}
	}

	poolConfig, err := pgxpool.ParseConfig(e.cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(e.cfg.Database.MaxConns)
	poolConfig.MinConns = int32(e.cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = e.cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = e.cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(e.cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"), "schema", e.cfg.Database.Schema)
	} else {
		slog.Info("connected to database")
	}
	slog.Info("contracts registered", "count", core.ContractCount())

	return pool, nil
}

// service connects and builds the application service. The returned func
// closes the pool.
func (e *env) service(ctx context.Context) (*application.Service, func(), error) {
	pool, err := e.connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	return application.New(pool, e.cfg), pool.Close, nil
}

// printJSON writes v indented to the command's stdout.
func (e *env) printJSON(v any) error {
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
