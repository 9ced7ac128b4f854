// Package application wires the load engine to its storage and exposes the
// operations the CLI and the HTTP trigger share.
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/silverload/internal/config"
	"github.com/JonMunkholm/silverload/internal/core"
	"github.com/JonMunkholm/silverload/internal/logging"
	"github.com/JonMunkholm/silverload/internal/metrics"
	"github.com/JonMunkholm/silverload/internal/snapshot"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultRunTimeout bounds one run when none is configured.
const DefaultRunTimeout = 10 * time.Minute

// Snapshotter writes a raw workbook into the bronze store.
type Snapshotter interface {
	WriteWorkbook(ctx context.Context, path string) (core.Batch, []snapshot.SheetSnapshot, error)
}

// Runner performs one incremental pass.
type Runner interface {
	Run(ctx context.Context, sourceID string) (*core.RunReport, error)
}

// LedgerReader lists recent ledger records.
type LedgerReader interface {
	Records(ctx context.Context, limit int) ([]core.MetadataRecord, error)
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IngestReport is the outcome of snapshotting one workbook and loading it.
type IngestReport struct {
	Source string                   `json:"source"`
	Batch  string                   `json:"batch"`
	Sheets []snapshot.SheetSnapshot `json:"sheets"`
	Run    *core.RunReport          `json:"run"`
}

// Service serializes runs and records their metrics.
type Service struct {
	snapshots  Snapshotter
	runner     Runner
	ledger     LedgerReader
	db         Pinger
	limiter    *core.RunLimiter
	recorder   metrics.Recorder
	runTimeout time.Duration
}

// New builds a Service backed by pool and the bronze store in cfg.
func New(pool *pgxpool.Pool, cfg *config.Config) *Service {
	store := snapshot.NewStore(cfg.Pipeline.SnapshotDir, cfg.Pipeline.ParquetBatchRows)
	writer := snapshot.NewWriter(cfg.Pipeline.SnapshotDir, cfg.Pipeline.ParquetBatchRows)
	ledger := core.NewLedger(pool)

	orchestrator := core.NewOrchestrator(
		store,
		ledger,
		core.NewSchemaManager(pool, cfg.Database.Schema),
		core.NewLoader(pool, cfg.Database.Schema, cfg.Pipeline.LoadBatchSize),
		core.Options{Observer: metrics.Recorder{}},
	)

	return newService(writer, orchestrator, ledger, pool, cfg.Pipeline.RunTimeout)
}

func newService(snapshots Snapshotter, runner Runner, ledger LedgerReader, db Pinger, runTimeout time.Duration) *Service {
	if runTimeout <= 0 {
		runTimeout = DefaultRunTimeout
	}
	return &Service{
		snapshots:  snapshots,
		runner:     runner,
		ledger:     ledger,
		db:         db,
		limiter:    core.NewRunLimiter(core.DefaultRunWait),
		runTimeout: runTimeout,
	}
}

// Run loads every bronze batch newer than the ledger cursor. It waits briefly
// for a run already in progress and fails with core.ErrRunInProgress if that
// run does not finish.
func (s *Service) Run(ctx context.Context, sourceID string) (*core.RunReport, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		s.recorder.RunFinished(nil, err)
		return nil, err
	}
	defer s.limiter.Release()

	return s.run(ctx, sourceID)
}

func (s *Service) run(ctx context.Context, sourceID string) (*core.RunReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	report, err := s.runner.Run(ctx, sourceID)
	s.recorder.RunFinished(report, err)
	return report, err
}

// Ingest snapshots the workbook at path into a new bronze batch and then runs
// the loader with path as the ledger source. A snapshot failure ends the
// ingest before any load is attempted.
func (s *Service) Ingest(ctx context.Context, path string) (*IngestReport, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		s.recorder.RunFinished(nil, err)
		return nil, err
	}
	defer s.limiter.Release()

	logger := logging.WithFields(ctx, "source", path)

	batch, sheets, err := s.snapshots.WriteWorkbook(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	logger.Info("workbook snapshotted", "batch", batch.ID, "sheets", len(sheets))

	report := &IngestReport{Source: path, Batch: batch.ID, Sheets: sheets}
	report.Run, err = s.run(ctx, path)
	return report, err
}

// Records returns the newest ledger records.
func (s *Service) Records(ctx context.Context, limit int) ([]core.MetadataRecord, error) {
	return s.ledger.Records(ctx, limit)
}

// Ping checks the database.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Status reports whether a run is in progress.
func (s *Service) Status() core.RunLimiterStatus {
	return s.limiter.Status()
}

// WaitForRuns blocks until an in-flight run finishes or ctx is done.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
