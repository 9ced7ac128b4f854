package snapshot

// workbook.go snapshots raw workbooks into the bronze layer.
//
// Every sheet of a workbook becomes <root>/<batch>/<lower(sheet)>.parquet,
// where batch is the snapshot time formatted YYYYMMDD_HHMMSS. The first row
// of a sheet is its header. Column types are inferred from the formatted
// cell text so downstream validation sees numbers, booleans and timestamps
// rather than strings:
//
//	all integers            -> int64
//	all numbers             -> float64 (currency and accounting formats allowed)
//	all TRUE/FALSE          -> bool
//	all dates or date-times -> timestamp
//	anything else           -> string
//
// Empty cells are null and do not take part in inference.

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/silverload/internal/core"
	"github.com/JonMunkholm/silverload/internal/logging"
)

// Writer turns workbooks into bronze batches.
type Writer struct {
	root     string
	mem      memory.Allocator
	rowGroup int64
	now      func() time.Time
}

// NewWriter returns a writer creating batches under root.
func NewWriter(root string, rowGroup int) *Writer {
	if rowGroup <= 0 {
		rowGroup = DefaultBatchRows
	}
	return &Writer{root: root, mem: memory.NewGoAllocator(), rowGroup: int64(rowGroup), now: time.Now}
}

// SheetSnapshot reports the outcome of one sheet.
type SheetSnapshot struct {
	Sheet string `json:"sheet"`
	Path  string `json:"path,omitempty"`
	Rows  int    `json:"rows"`
	Error string `json:"error,omitempty"`
}

// WriteWorkbook snapshots every sheet of the workbook at path into a new
// batch. A sheet that fails is reported and the remaining sheets continue;
// the error return is reserved for failures that affect the whole workbook.
// Two workbooks snapshotted within the same second share a batch.
func (w *Writer) WriteWorkbook(ctx context.Context, path string) (core.Batch, []SheetSnapshot, error) {
	logger := logging.WithFields(ctx, "workbook", path)

	wb, err := excelize.OpenFile(path)
	if err != nil {
		return core.Batch{}, nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer wb.Close()

	id := w.now().Format(core.CursorLayout)
	batch := core.Batch{ID: id, Path: filepath.Join(w.root, id)}
	if err := os.MkdirAll(batch.Path, 0o755); err != nil {
		return core.Batch{}, nil, fmt.Errorf("create batch %s: %w", id, err)
	}

	var results []SheetSnapshot
	for _, sheet := range wb.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return batch, results, err
		}

		res := SheetSnapshot{Sheet: sheet}
		rows, err := wb.GetRows(sheet)
		if err != nil {
			res.Error = fmt.Sprintf("read sheet: %v", err)
			logger.Error("sheet snapshot failed", "sheet", sheet, "error", err)
			results = append(results, res)
			continue
		}

		out := filepath.Join(batch.Path, strings.ToLower(sheet)+".parquet")
		n, err := w.writeSheet(out, rows)
		if err != nil {
			res.Error = err.Error()
			logger.Error("sheet snapshot failed", "sheet", sheet, "error", err)
			results = append(results, res)
			continue
		}
		if n < 0 {
			logger.Info("empty sheet skipped", "sheet", sheet)
			continue
		}

		res.Path, res.Rows = out, n
		logger.Info("sheet snapshotted", "sheet", sheet, "rows", n, "path", out)
		results = append(results, res)
	}

	return batch, results, nil
}

// writeSheet writes the header and data rows of one sheet and returns the
// number of data rows, or -1 when the sheet has no header.
func (w *Writer) writeSheet(path string, rows [][]string) (int, error) {
	header, data := splitHeader(rows)
	if header == nil {
		return -1, nil
	}

	cols := make([]columnBuilder, len(header))
	for j, name := range header {
		cells := make([]string, len(data))
		for i, r := range data {
			cells[i] = cellAt(r, j)
		}
		cols[j] = inferColumn(name, cells)
	}

	rec := buildRecord(w.mem, cols, len(data), func(i, j int) (string, bool) {
		c := cellAt(data[i], j)
		return c, strings.TrimSpace(c) != ""
	})
	defer rec.Release()

	if err := writeParquet(path, rec, w.rowGroup); err != nil {
		return 0, err
	}
	return len(data), nil
}

// splitHeader returns the first non-empty row as header and the remaining
// non-empty rows as data. Blank and duplicate header names are made unique.
func splitHeader(rows [][]string) ([]string, [][]string) {
	start := -1
	for i, r := range rows {
		if !isEmptyRow(r) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, nil
	}

	width := 0
	for _, r := range rows[start:] {
		width = max(width, len(r))
	}

	seen := make(map[string]int)
	header := make([]string, width)
	for j := range header {
		name := strings.TrimSpace(cellAt(rows[start], j))
		if name == "" {
			name = fmt.Sprintf("column_%d", j+1)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			seen[name] = 1
		}
		header[j] = name
	}

	var data [][]string
	for _, r := range rows[start+1:] {
		if isEmptyRow(r) {
			continue
		}
		data = append(data, r)
	}
	return header, data
}

func cellAt(row []string, j int) string {
	if j < len(row) {
		return row[j]
	}
	return ""
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// inferColumn picks the narrowest type every non-empty cell parses as.
func inferColumn(name string, cells []string) columnBuilder {
	isInt, isFloat, isBool, isTime := true, true, true, true
	seen := false

	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		seen = true
		if isInt {
			if _, err := strconv.ParseInt(c, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, ok := core.ParseNumeric(c); !ok {
				isFloat = false
			}
		}
		if isBool && !strings.EqualFold(c, "true") && !strings.EqualFold(c, "false") {
			isBool = false
		}
		if isTime {
			if _, ok := core.ParseTimestamp(c); !ok {
				isTime = false
			}
		}
		if !isInt && !isFloat && !isBool && !isTime {
			break
		}
	}

	switch {
	case !seen:
		return stringColumn(name)
	case isInt:
		return columnBuilder{
			field: arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Int64, Nullable: true},
			append: func(b array.Builder, cell string) {
				v, _ := strconv.ParseInt(strings.TrimSpace(cell), 10, 64)
				b.(*array.Int64Builder).Append(v)
			},
		}
	case isFloat:
		return columnBuilder{
			field: arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64, Nullable: true},
			append: func(b array.Builder, cell string) {
				v, _ := core.ParseNumeric(cell)
				b.(*array.Float64Builder).Append(v)
			},
		}
	case isBool:
		return columnBuilder{
			field: arrow.Field{Name: name, Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
			append: func(b array.Builder, cell string) {
				b.(*array.BooleanBuilder).Append(strings.EqualFold(strings.TrimSpace(cell), "true"))
			},
		}
	case isTime:
		return columnBuilder{
			field: arrow.Field{Name: name, Type: &arrow.TimestampType{Unit: arrow.Microsecond}, Nullable: true},
			append: func(b array.Builder, cell string) {
				t, _ := core.ParseTimestamp(cell)
				b.(*array.TimestampBuilder).Append(arrow.Timestamp(naiveMicros(t)))
			},
		}
	default:
		return stringColumn(name)
	}
}
