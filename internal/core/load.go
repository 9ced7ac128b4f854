package core

import (
	"context"
	"fmt"
	"strings"
)

// maxBindParams is PostgreSQL's limit on parameters in one statement.
const maxBindParams = 65535

// DefaultLoadBatchSize is the number of rows per INSERT when none is configured.
const DefaultLoadBatchSize = 1000

// Loader bulk-inserts validated rows into silver tables.
type Loader struct {
	db        TxBeginner
	schema    string
	batchSize int
}

// NewLoader returns a loader writing to schema, batchSize rows per statement.
func NewLoader(db TxBeginner, schema string, batchSize int) *Loader {
	if schema == "" {
		schema = "public"
	}
	if batchSize <= 0 {
		batchSize = DefaultLoadBatchSize
	}
	return &Loader{db: db, schema: schema, batchSize: batchSize}
}

// BulkInsert appends rows to table in one transaction and returns the number
// of rows inserted. Column names are normalized the same way the table was
// created, and values are coerced to the inferred column types. Any failure
// rolls back every chunk.
func (l *Loader) BulkInsert(ctx context.Context, rows []Row, table string) (int64, error) {
	fail := func(err error) (int64, error) {
		return 0, &Error{Kind: KindLoad, Op: "bulk insert", Table: table, Rows: len(rows), Err: err}
	}

	if len(rows) == 0 {
		return 0, nil
	}

	cols := InferColumns(rows)
	if len(cols) == 0 {
		return fail(fmt.Errorf("no columns to insert"))
	}
	normalized := make([]Row, len(rows))
	for i, r := range rows {
		normalized[i] = NormalizeRow(r)
	}

	chunk := l.batchSize
	if perStmt := maxBindParams / len(cols); perStmt < chunk {
		chunk = perStmt
	}

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return fail(fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	var inserted int64
	for start := 0; start < len(normalized); start += chunk {
		end := min(start+chunk, len(normalized))

		query, args, err := buildInsert(l.schema, table, cols, normalized[start:end])
		if err != nil {
			return fail(err)
		}

		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return fail(fmt.Errorf("insert rows %d-%d: %w", start+1, end, err))
		}
		inserted += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return fail(fmt.Errorf("commit: %w", err))
	}

	return inserted, nil
}

// buildInsert renders one multi-row INSERT and its arguments.
func buildInsert(schema, table string, cols []Column, rows []Row) (string, []any, error) {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = quoteIdentifier(c.Name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", qualifiedName(schema, table), strings.Join(names, ", "))

	args := make([]any, 0, len(rows)*len(cols))
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, c := range cols {
			if j > 0 {
				b.WriteString(", ")
			}
			v, err := columnValue(r[c.Name], c.Type)
			if err != nil {
				return "", nil, fmt.Errorf("column %s: %w", c.Name, err)
			}
			args = append(args, v)
			fmt.Fprintf(&b, "$%d", len(args))
		}
		b.WriteByte(')')
	}

	return b.String(), args, nil
}

// columnValue converts v for a column of type t. Nulls pass through as nil.
func columnValue(v any, t ColumnType) (any, error) {
	if isNull(v) {
		return nil, nil
	}
	switch t {
	case TypeBigInt:
		return CoerceInteger(v)
	case TypeDouble:
		return CoerceFloat(v)
	case TypeBoolean:
		return CoerceBool(v)
	case TypeTimestamp:
		return CoerceTimestamp(v)
	default:
		return FormatValue(v), nil
	}
}
