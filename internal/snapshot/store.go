// Package snapshot is the bronze layer: immutable parquet snapshots of raw
// workbooks, one directory per batch, one file per sheet.
//
//	<root>/
//	    20240101_093000/
//	        sales data.parquet
//	        product inventory.parquet
//	        invalids/
//	            sales_data_invalids.parquet
package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/JonMunkholm/silverload/internal/core"
)

// QuarantineDir is the batch subdirectory holding rejected rows.
const QuarantineDir = "invalids"

// ErrorsColumn is the quarantine column listing every violation of a row.
const ErrorsColumn = "errors"

// Store reads batches from and writes quarantine files to a bronze root.
type Store struct {
	root      string
	mem       memory.Allocator
	batchRows int64
}

// NewStore returns a store rooted at root. batchRows bounds the arrow
// record size used when reading and the row group size when writing.
func NewStore(root string, batchRows int) *Store {
	if batchRows <= 0 {
		batchRows = DefaultBatchRows
	}
	return &Store{root: root, mem: memory.NewGoAllocator(), batchRows: int64(batchRows)}
}

// Root returns the bronze root directory.
func (s *Store) Root() string { return s.root }

func snapshotError(op string, b core.Batch, table string, err error) error {
	return &core.Error{Kind: core.KindSnapshot, Op: op, Batch: b.ID, Table: table, Err: err}
}

// ListBatches returns every batch directory under the root in ascending id
// order. Directories not named YYYYMMDD_HHMMSS are ignored, and a root that
// does not exist yet holds no batches.
func (s *Store) ListBatches(ctx context.Context) ([]core.Batch, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, snapshotError("list batches", core.Batch{}, "", err)
	}

	var batches []core.Batch
	for _, e := range entries {
		if !e.IsDir() || !core.IsBatchID(e.Name()) {
			continue
		}
		batches = append(batches, core.Batch{ID: e.Name(), Path: filepath.Join(s.root, e.Name())})
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i].ID < batches[j].ID })

	return batches, nil
}

// ListSheets returns the parquet files of b sorted by name.
func (s *Store) ListSheets(ctx context.Context, b core.Batch) ([]core.SheetFile, error) {
	entries, err := os.ReadDir(b.Path)
	if err != nil {
		return nil, snapshotError("list sheets", b, "", err)
	}

	var sheets []core.SheetFile
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".parquet") {
			continue
		}
		sheets = append(sheets, core.SheetFile{
			Batch: b,
			Name:  e.Name(),
			Path:  filepath.Join(b.Path, e.Name()),
			Table: core.TableNameFromFile(e.Name()),
		})
	}
	sort.Slice(sheets, func(i, j int) bool { return sheets[i].Name < sheets[j].Name })

	return sheets, nil
}

// ReadSheet loads every row of f.
func (s *Store) ReadSheet(ctx context.Context, f core.SheetFile) ([]core.Row, error) {
	_, rows, err := readParquet(ctx, f.Path, s.mem, s.batchRows)
	if err != nil {
		return nil, snapshotError("read sheet "+f.Name, f.Batch, f.Table, err)
	}
	return rows, nil
}

// WriteQuarantine writes rows to <batch>/invalids/<table>_invalids.parquet,
// replacing any earlier file for the same table. Every data column is stored
// as text holding the original value, followed by the errors column.
func (s *Store) WriteQuarantine(ctx context.Context, b core.Batch, table string, rows []core.InvalidRow) (string, error) {
	dir := filepath.Join(b.Path, QuarantineDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", snapshotError("write quarantine", b, table, err)
	}
	path := filepath.Join(dir, table+"_invalids.parquet")

	names := quarantineColumns(rows)
	cols := make([]columnBuilder, 0, len(names)+1)
	for _, name := range names {
		cols = append(cols, stringColumn(name))
	}
	cols = append(cols, stringColumn(ErrorsColumn))

	rec := buildRecord(s.mem, cols, len(rows), func(i, j int) (string, bool) {
		if j == len(names) {
			return rows[i].Reason(), true
		}
		v, ok := rows[i].Row[names[j]]
		if !ok || v == nil {
			return "", false
		}
		return core.FormatValue(v), true
	})
	defer rec.Release()

	if err := writeParquet(path, rec, s.batchRows); err != nil {
		return "", snapshotError("write quarantine", b, table, err)
	}
	return path, nil
}

// quarantineColumns is the sorted union of the rows' columns.
func quarantineColumns(rows []core.InvalidRow) []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range rows {
		for name := range r.Row {
			if name == ErrorsColumn || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ReadQuarantine loads a quarantine file back as rows. Used by tooling and tests.
func (s *Store) ReadQuarantine(ctx context.Context, path string) ([]core.Row, error) {
	_, rows, err := readParquet(ctx, path, s.mem, s.batchRows)
	if err != nil {
		return nil, fmt.Errorf("read quarantine %s: %w", path, err)
	}
	return rows, nil
}
