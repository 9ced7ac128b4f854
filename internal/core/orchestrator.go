package core

// orchestrator.go drives one incremental pass over the bronze store.
//
// A pass reads the ledger cursor, picks every batch named after it, and walks
// each batch's sheet files in order:
//
//	read -> lookup contract -> validate -> quarantine invalid rows
//	     -> skip if nothing valid -> skip if ledger has (source, table, rows)
//	     -> ensure table -> bulk insert -> record in ledger
//
// A failure confined to one file is recorded in that file's result and the
// pass moves on. Ledger failures and failing to enumerate batches end the pass,
// because continuing without the ledger risks loading the same rows twice.

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/silverload/internal/logging"
	"github.com/google/uuid"
)

// batchIDPattern matches batch directory names.
var batchIDPattern = regexp.MustCompile(`^\d{8}_\d{6}$`)

// IsBatchID reports whether name is a YYYYMMDD_HHMMSS batch id.
func IsBatchID(name string) bool {
	return batchIDPattern.MatchString(name)
}

// SnapshotSource lists and reads bronze batches and stores quarantined rows.
type SnapshotSource interface {
	ListBatches(ctx context.Context) ([]Batch, error)
	ListSheets(ctx context.Context, b Batch) ([]SheetFile, error)
	ReadSheet(ctx context.Context, f SheetFile) ([]Row, error)
	WriteQuarantine(ctx context.Context, b Batch, table string, rows []InvalidRow) (string, error)
}

// MetadataLedger is the durable record of completed loads.
type MetadataLedger interface {
	IsProcessed(ctx context.Context, sourceID, table string, rowCount int64) (bool, error)
	RecordProcessed(ctx context.Context, rec MetadataRecord) error
	Cursor(ctx context.Context) (string, bool, error)
}

// TableEnsurer creates silver tables on first sight.
type TableEnsurer interface {
	EnsureTable(ctx context.Context, rows []Row, table string) (bool, error)
}

// BulkLoader inserts validated rows.
type BulkLoader interface {
	BulkInsert(ctx context.Context, rows []Row, table string) (int64, error)
}

// Observer is told about every file outcome. Used for metrics.
type Observer interface {
	FileProcessed(res FileResult)
}

// Options configures an Orchestrator. Zero values select defaults.
type Options struct {
	// Contracts resolves a table to its contract (default: Lookup).
	Contracts func(table string) (Contract, error)
	// Now is the clock for validation and ledger timestamps (default: time.Now).
	Now func() time.Time
	// Observer receives file outcomes (optional).
	Observer Observer
}

// Orchestrator runs incremental bronze-to-silver passes. Passes on one
// Orchestrator are serialized.
type Orchestrator struct {
	snapshots SnapshotSource
	ledger    MetadataLedger
	schema    TableEnsurer
	loader    BulkLoader

	contracts func(string) (Contract, error)
	now       func() time.Time
	observer  Observer

	mu sync.Mutex
}

// NewOrchestrator wires the collaborators of a pass.
func NewOrchestrator(snapshots SnapshotSource, ledger MetadataLedger, schema TableEnsurer, loader BulkLoader, opts Options) *Orchestrator {
	o := &Orchestrator{
		snapshots: snapshots,
		ledger:    ledger,
		schema:    schema,
		loader:    loader,
		contracts: opts.Contracts,
		now:       opts.Now,
		observer:  opts.Observer,
	}
	if o.contracts == nil {
		o.contracts = Lookup
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Run processes every batch newer than the ledger cursor. sourceID is the
// identity recorded in the ledger; when empty, each batch's path is used.
//
// The returned report is non-nil even when Run fails, and holds the results
// of every file processed before the failure.
func (o *Orchestrator) Run(ctx context.Context, sourceID string) (*RunReport, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	report := &RunReport{
		RunID:     uuid.NewString(),
		SourceID:  sourceID,
		StartedAt: o.now(),
	}
	defer func() { report.Duration = o.now().Sub(report.StartedAt) }()

	ctx = logging.WithRunID(ctx, report.RunID)
	logger := logging.FromContext(ctx)

	batches, cursor, err := o.selectBatches(ctx)
	if err != nil {
		logger.Error("batch selection failed", "error", err)
		return report, err
	}
	report.Cursor = cursor
	for _, b := range batches {
		report.Batches = append(report.Batches, b.ID)
	}
	logger.Info("run started", "cursor", cursor, "batches", len(batches), "source", sourceID)

	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := o.runBatch(ctx, b, sourceID, report); err != nil {
			logger.Error("run aborted", "batch", b.ID, "error", err)
			return report, err
		}
	}

	logger.Info("run finished",
		"loaded", report.Count(StateLoaded),
		"skipped_duplicate", report.Count(StateSkippedDuplicate),
		"skipped_all_invalid", report.Count(StateSkippedAllInvalid),
		"failed", report.Count(StateFailed),
	)
	return report, nil
}

// selectBatches returns the batches after the cursor in ascending order.
func (o *Orchestrator) selectBatches(ctx context.Context) ([]Batch, string, error) {
	cursor, ok, err := o.ledger.Cursor(ctx)
	if err != nil {
		return nil, "", err
	}

	all, err := o.snapshots.ListBatches(ctx)
	if err != nil {
		var ce *Error
		if !errors.As(err, &ce) {
			err = &Error{Kind: KindSnapshot, Op: "list batches", Err: err}
		}
		return nil, cursor, err
	}

	selected := make([]Batch, 0, len(all))
	for _, b := range all {
		if !IsBatchID(b.ID) {
			continue
		}
		if ok && b.ID <= cursor {
			continue
		}
		selected = append(selected, b)
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].ID < selected[j].ID })

	return selected, cursor, nil
}

// runBatch processes every sheet of b. Only ledger failures are returned.
func (o *Orchestrator) runBatch(ctx context.Context, b Batch, sourceID string, report *RunReport) error {
	logger := logging.WithFields(ctx, "batch", b.ID)

	sheets, err := o.snapshots.ListSheets(ctx, b)
	if err != nil {
		res := FileResult{Batch: b.ID, State: StateFailed}
		o.finish(ctx, report, res, &Error{Kind: KindSnapshot, Op: "list sheets", Batch: b.ID, Err: err})
		return nil
	}
	logger.Info("processing batch", "path", b.Path, "sheets", len(sheets))

	source := sourceID
	if source == "" {
		source = b.Path
	}

	for _, f := range sheets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.processFile(ctx, f, source, report); err != nil {
			return err
		}
	}
	return nil
}

// processFile loads one sheet. It returns an error only when the ledger
// could not be read or written.
func (o *Orchestrator) processFile(ctx context.Context, f SheetFile, source string, report *RunReport) error {
	res := FileResult{Batch: f.Batch.ID, File: f.Name, Table: f.Table, State: StateFailed}
	logger := logging.WithFields(ctx, "batch", f.Batch.ID, "file", f.Name, "table", f.Table)

	rows, err := o.snapshots.ReadSheet(ctx, f)
	if err != nil {
		o.finish(ctx, report, res, withBatch(err, f.Batch.ID))
		return nil
	}

	contract, err := o.contracts(f.Table)
	if err != nil {
		o.finish(ctx, report, res, withBatch(err, f.Batch.ID))
		return nil
	}

	valid, invalid := Validate(rows, contract, o.now())
	res.ValidRows, res.InvalidRows = len(valid), len(invalid)

	if len(invalid) > 0 {
		path, err := o.snapshots.WriteQuarantine(ctx, f.Batch, f.Table, invalid)
		if err != nil {
			logger.Warn("quarantine write failed", "rows", len(invalid), "error", err)
		} else {
			res.Quarantine = path
			logger.Info("invalid rows quarantined", "rows", len(invalid), "path", path)
		}
	}

	if len(valid) == 0 {
		res.State = StateSkippedAllInvalid
		o.finish(ctx, report, res, nil)
		return nil
	}

	rowCount := int64(len(valid))
	done, err := o.ledger.IsProcessed(ctx, source, f.Table, rowCount)
	if err != nil {
		err = withBatch(err, f.Batch.ID)
		o.finish(ctx, report, res, err)
		return err
	}
	if done {
		res.State = StateSkippedDuplicate
		o.finish(ctx, report, res, nil)
		return nil
	}

	created, err := o.schema.EnsureTable(ctx, valid, f.Table)
	if err != nil {
		o.finish(ctx, report, res, withBatch(err, f.Batch.ID))
		return nil
	}
	res.Created = created

	if _, err := o.loader.BulkInsert(ctx, valid, f.Table); err != nil {
		o.finish(ctx, report, res, withBatch(err, f.Batch.ID))
		return nil
	}

	rec := MetadataRecord{SourceID: source, Table: f.Table, RowCount: rowCount, CompletedAt: o.now()}
	if err := o.ledger.RecordProcessed(ctx, rec); err != nil {
		// rows are committed but unrecorded; a rerun will load them again
		err = withBatch(err, f.Batch.ID)
		o.finish(ctx, report, res, fmt.Errorf("rows inserted but not recorded: %w", err))
		return err
	}

	res.State = StateLoaded
	o.finish(ctx, report, res, nil)
	return nil
}

// finish records res in the report, logs it and notifies the observer.
func (o *Orchestrator) finish(ctx context.Context, report *RunReport, res FileResult, err error) {
	if err != nil {
		res.State = StateFailed
		res.Err = err
		res.Error = err.Error()
	}
	report.Files = append(report.Files, res)

	logger := logging.WithFields(ctx,
		"batch", res.Batch,
		"file", res.File,
		"table", res.Table,
		"state", res.State,
		"valid_rows", res.ValidRows,
		"invalid_rows", res.InvalidRows,
	)
	switch {
	case err != nil:
		logger.Error("file failed", "kind", KindOf(err).String(), "sqlstate", SQLState(err), "error", err)
	case res.State == StateLoaded:
		logger.Info("file loaded", "table_created", res.Created)
	default:
		logger.Info("file skipped")
	}

	if o.observer != nil {
		o.observer.FileProcessed(res)
	}
}
