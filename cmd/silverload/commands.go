package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/silverload/internal/application"
	"github.com/JonMunkholm/silverload/internal/core"
	"github.com/JonMunkholm/silverload/internal/migrations"
	"github.com/JonMunkholm/silverload/internal/web"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// errFilesFailed makes the process exit non-zero when a run finished with
// failed files.
var errFilesFailed = errors.New("one or more files failed to load")

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func checkReport(report *core.RunReport) error {
	if report != nil && report.Count(core.StateFailed) > 0 {
		return errFilesFailed
	}
	return nil
}

func newRunCommand(e *env) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load every bronze batch newer than the last completed load",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			svc, closeDB, err := e.service(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			report, err := svc.Run(ctx, source)
			if report != nil {
				if perr := e.printJSON(report); perr != nil {
					return perr
				}
			}
			if err != nil {
				return err
			}
			return checkReport(report)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source id recorded in the ledger (default: each batch path)")
	return cmd
}

func newIngestCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest WORKBOOK...",
		Short: "Snapshot workbooks into the bronze store and load them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			svc, closeDB, err := e.service(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			var errs []error
			for _, path := range args {
				report, err := svc.Ingest(ctx, path)
				if report != nil {
					if perr := e.printJSON(report); perr != nil {
						return perr
					}
				}
				if err != nil {
					slog.Error("ingest failed", "path", path, "error", err)
					errs = append(errs, err)
					continue
				}
				if err := checkReport(report.Run); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", path, err))
				}
			}
			return errors.Join(errs...)
		},
	}
}

func newServeCommand(e *env) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP trigger API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			svc, closeDB, err := e.service(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			server := web.NewServer(svc, e.cfg)
			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})

			if watch {
				w := newWatcher(e, svc)
				g.Go(func() error { return w.Watch(gctx) })
			}

			g.Go(func() error {
				<-gctx.Done()
				slog.Info("shutting down...")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), e.cfg.Server.ShutdownTimeout)
				defer cancel()

				if svc.Status().Active {
					slog.Info("waiting for the active run to complete")
					if err := svc.WaitForRuns(shutdownCtx); err != nil {
						slog.Warn("run did not complete in time", "error", err)
					}
				}
				return server.Shutdown(shutdownCtx)
			})

			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "also watch RAW_DIR for new workbooks")
	return cmd
}

func newWatcher(e *env, svc *application.Service) *application.Watcher {
	return application.NewWatcher(e.cfg.Pipeline.RawDir, e.cfg.Pipeline.WatchInterval,
		func(ctx context.Context, path string) error {
			report, err := svc.Ingest(ctx, path)
			if err != nil {
				return err
			}
			slog.Info("workbook ingested",
				"path", path,
				"batch", report.Batch,
				"loaded", report.Run.Count(core.StateLoaded),
				"failed", report.Run.Count(core.StateFailed),
			)
			return nil
		})
}

func newWatchCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch RAW_DIR and ingest each new workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			svc, closeDB, err := e.service(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			return newWatcher(e, svc).Watch(ctx)
		},
	}
}

func newMigrateCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the ledger schema",
	}

	withRunner := func(fn func(r *migrations.Runner) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			r, err := migrations.NewRunner(cmd.Context(), e.cfg.Database.URL, e.cfg.Database.MigrationsTable)
			if err != nil {
				return err
			}
			defer r.Close()
			return fn(r)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE:  withRunner(func(r *migrations.Runner) error { return r.Up() }),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		Args:  cobra.NoArgs,
		RunE:  withRunner(func(r *migrations.Runner) error { return r.Down() }),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied migration version",
		Args:  cobra.NoArgs,
		RunE: withRunner(func(r *migrations.Runner) error {
			v, dirty, err := r.Version()
			if err != nil {
				return err
			}
			return e.printJSON(map[string]any{"version": v, "dirty": dirty})
		}),
	})
	return cmd
}

func newContractsCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:         "contracts",
		Short:       "List the registered table contracts",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.printJSON(application.Contracts())
		},
	}
}
