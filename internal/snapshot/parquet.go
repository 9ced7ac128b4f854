package snapshot

// parquet.go converts between parquet files and core rows.
//
// Timestamps are stored without a zone and carry the local wall clock, so a
// value reads back as the same local time it was written with.
//
// Files are read whole through pqarrow into an arrow table and walked with a
// table reader. Writing goes the other way: rows are appended to per-column
// builders, assembled into one record, and written as a snappy-compressed
// parquet file via a temp file and rename, so a reader never sees a partial
// snapshot.

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/apache/arrow/go/v17/parquet"
	"github.com/apache/arrow/go/v17/parquet/compress"
	"github.com/apache/arrow/go/v17/parquet/file"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"

	"github.com/JonMunkholm/silverload/internal/core"
)

// DefaultBatchRows is the read batch and row group size when none is configured.
const DefaultBatchRows = 4096

// indexColumnPrefix marks dataframe index columns some writers add.
const indexColumnPrefix = "__index_level_"

// readParquet loads every row of the file at path. Column order is returned
// separately because rows are maps.
func readParquet(ctx context.Context, path string, mem memory.Allocator, batchRows int64) ([]string, []core.Row, error) {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, nil, fmt.Errorf("open parquet: %w", err)
	}
	defer rdr.Close()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{BatchSize: batchRows}, mem)
	if err != nil {
		return nil, nil, fmt.Errorf("create arrow reader: %w", err)
	}

	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read table: %w", err)
	}
	defer tbl.Release()

	var (
		names []string
		keep  []int
	)
	for i, field := range tbl.Schema().Fields() {
		if strings.HasPrefix(field.Name, indexColumnPrefix) {
			continue
		}
		names = append(names, field.Name)
		keep = append(keep, i)
	}

	tr := array.NewTableReader(tbl, batchRows)
	defer tr.Release()

	rows := make([]core.Row, 0, tbl.NumRows())
	for tr.Next() {
		rec := tr.Record()
		n := int(rec.NumRows())
		for i := 0; i < n; i++ {
			row := make(core.Row, len(keep))
			for k, j := range keep {
				row[names[k]] = valueAt(rec.Column(j), i)
			}
			rows = append(rows, row)
		}
	}
	if err := tr.Err(); err != nil {
		return nil, nil, fmt.Errorf("read records: %w", err)
	}

	return names, rows, nil
}

// valueAt returns element i of arr as one of the types core.Row carries.
func valueAt(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}

	switch a := arr.(type) {
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Binary:
		return string(a.Value(i))
	case *array.Int64:
		return a.Value(i)
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Uint32:
		return int64(a.Value(i))
	case *array.Uint16:
		return int64(a.Value(i))
	case *array.Uint8:
		return int64(a.Value(i))
	case *array.Uint64:
		if v := a.Value(i); v <= math.MaxInt64 {
			return int64(v)
		}
		return float64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Boolean:
		return a.Value(i)
	case *array.Timestamp:
		typ := a.DataType().(*arrow.TimestampType)
		t := a.Value(i).ToTime(typ.Unit)
		if typ.TimeZone == "" {
			return localWallClock(t)
		}
		return t
	case *array.Date32:
		return localWallClock(a.Value(i).ToTime())
	case *array.Date64:
		return localWallClock(a.Value(i).ToTime())
	case *array.Dictionary:
		return valueAt(a.Dictionary(), a.GetValueIndex(i))
	default:
		return arr.ValueStr(i)
	}
}

// naiveMicros encodes the wall clock of t in time.Local as a timestamp
// without a zone.
func naiveMicros(t time.Time) int64 {
	t = t.In(time.Local)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC).UnixMicro()
}

// localWallClock reads a zone-less timestamp as a wall-clock time in time.Local.
func localWallClock(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.Local)
}

// writeParquet writes rec to path, replacing any existing file.
func writeParquet(path string, rec arrow.Record, rowGroup int64) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	tbl := array.NewTableFromRecords(rec.Schema(), []arrow.Record{rec})
	defer tbl.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	if err := pqarrow.WriteTable(tbl, f, rowGroup, props, pqarrow.DefaultWriterProps()); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write parquet: %w", err)
	}
	// the parquet writer closes its sink on success
	if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// columnBuilder appends cells of one inferred type.
type columnBuilder struct {
	field  arrow.Field
	append func(b array.Builder, cell string)
}

// stringColumn appends cells verbatim.
func stringColumn(name string) columnBuilder {
	return columnBuilder{
		field: arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true},
		append: func(b array.Builder, cell string) {
			b.(*array.StringBuilder).Append(cell)
		},
	}
}

// buildRecord assembles n rows into one record. cell returns the text of
// row i, column j, or false when the cell is null.
func buildRecord(mem memory.Allocator, cols []columnBuilder, n int, cell func(i, j int) (string, bool)) arrow.Record {
	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		fields[i] = c.field
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for i := 0; i < n; i++ {
		for j, c := range cols {
			fb := b.Field(j)
			v, ok := cell(i, j)
			if !ok {
				fb.AppendNull()
				continue
			}
			c.append(fb, v)
		}
	}
	return b.NewRecord()
}
