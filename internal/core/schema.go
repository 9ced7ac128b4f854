package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ColumnType is the relational type a silver column is created with.
type ColumnType string

const (
	TypeText      ColumnType = "TEXT"
	TypeBigInt    ColumnType = "BIGINT"
	TypeDouble    ColumnType = "DOUBLE PRECISION"
	TypeTimestamp ColumnType = "TIMESTAMP"
	TypeBoolean   ColumnType = "BOOLEAN"
)

// Column is one inferred silver column.
type Column struct {
	Name string
	Type ColumnType
}

type valueKind int

const (
	kindText valueKind = iota
	kindInt
	kindFloat
	kindBool
	kindTime
)

func kindOf(v any) valueKind {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return kindInt
	case float32, float64:
		return kindFloat
	case bool:
		return kindBool
	case time.Time:
		return kindTime
	default:
		return kindText
	}
}

// InferColumns derives the silver schema of rows. Columns are normalized
// and sorted by name. A column holding only integers and floats is a
// double; any other mix, or a column that is null everywhere, is text.
func InferColumns(rows []Row) []Column {
	kinds := make(map[string]map[valueKind]bool)
	for _, r := range rows {
		for name, v := range r {
			col := NormalizeIdentifier(name)
			if kinds[col] == nil {
				kinds[col] = make(map[valueKind]bool)
			}
			if isNull(v) {
				continue
			}
			kinds[col][kindOf(v)] = true
		}
	}

	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	sort.Strings(names)

	cols := make([]Column, len(names))
	for i, name := range names {
		cols[i] = Column{Name: name, Type: resolveType(kinds[name])}
	}
	return cols
}

func resolveType(seen map[valueKind]bool) ColumnType {
	switch {
	case len(seen) == 1 && seen[kindInt]:
		return TypeBigInt
	case len(seen) == 1 && seen[kindFloat]:
		return TypeDouble
	case len(seen) == 2 && seen[kindInt] && seen[kindFloat]:
		return TypeDouble
	case len(seen) == 1 && seen[kindBool]:
		return TypeBoolean
	case len(seen) == 1 && seen[kindTime]:
		return TypeTimestamp
	default:
		return TypeText
	}
}

// CreateTableSQL renders the DDL for a silver table.
func CreateTableSQL(schema, table string, cols []Column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = quoteIdentifier(c.Name) + " " + string(c.Type)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", qualifiedName(schema, table), strings.Join(defs, ", "))
}

// SchemaManager creates silver tables on first sight. It never alters an
// existing table; a later batch with a different shape is not detected here.
type SchemaManager struct {
	db     TxBeginner
	schema string
}

// NewSchemaManager returns a manager creating tables in schema.
func NewSchemaManager(db TxBeginner, schema string) *SchemaManager {
	if schema == "" {
		schema = "public"
	}
	return &SchemaManager{db: db, schema: schema}
}

const tableExistsSQL = `SELECT EXISTS (
	SELECT 1 FROM information_schema.tables
	WHERE table_schema = $1 AND table_name = $2
)`

// EnsureTable creates table from the shape of rows unless it already exists.
// The existence check and the CREATE run in one transaction. Returns whether
// the table was created.
func (m *SchemaManager) EnsureTable(ctx context.Context, rows []Row, table string) (bool, error) {
	fail := func(err error) (bool, error) {
		return false, &Error{Kind: KindSchemaCreation, Op: "ensure table", Table: table, Rows: len(rows), Err: err}
	}

	cols := InferColumns(rows)
	if len(cols) == 0 {
		return fail(fmt.Errorf("no columns to create"))
	}

	tx, err := m.db.Begin(ctx)
	if err != nil {
		return fail(fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, tableExistsSQL, m.schema, table).Scan(&exists); err != nil {
		return fail(fmt.Errorf("check table: %w", err))
	}

	if !exists {
		if _, err := tx.Exec(ctx, CreateTableSQL(m.schema, table, cols)); err != nil {
			return fail(fmt.Errorf("create table: %w", err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fail(fmt.Errorf("commit: %w", err))
	}

	return !exists, nil
}
