// Package core provides the bronze-to-silver incremental load engine.
// This package has no transport dependencies and can be driven by the CLI,
// the HTTP trigger or tests alike.
package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// TxBeginner opens transactions. Satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Row is one record of a sheet: column name to untyped value.
// Values read from snapshots are string, int64, float64, bool, time.Time or nil.
type Row map[string]any

// Columns returns the row's column names in no particular order.
func (r Row) Columns() []string {
	cols := make([]string, 0, len(r))
	for k := range r {
		cols = append(cols, k)
	}
	return cols
}

// InvalidRow is a row that failed its contract, with every violation found.
type InvalidRow struct {
	Row    Row
	Errors []ValidationError
}

// FieldType is the primitive type a contract field is coerced to.
type FieldType int

const (
	FieldText FieldType = iota
	FieldInteger
	FieldFloat
	FieldBool
	FieldTimestamp
)

func (ft FieldType) String() string {
	switch ft {
	case FieldText:
		return "text"
	case FieldInteger:
		return "integer"
	case FieldFloat:
		return "float"
	case FieldBool:
		return "boolean"
	case FieldTimestamp:
		return "timestamp"
	default:
		return "value"
	}
}

// ExtraMode decides what happens to columns a contract does not declare.
type ExtraMode int

const (
	// ExtraPermissive keeps undeclared columns in the valid row unchanged.
	ExtraPermissive ExtraMode = iota
	// ExtraIgnore drops undeclared columns from the valid row.
	ExtraIgnore
	// ExtraStrict rejects any row that carries an undeclared column.
	ExtraStrict
)

func (m ExtraMode) String() string {
	switch m {
	case ExtraIgnore:
		return "ignore"
	case ExtraStrict:
		return "strict"
	default:
		return "permissive"
	}
}

// Check validates one coerced, non-null field value.
// now is the validation clock, used by temporal checks.
type Check func(value any, now time.Time) error

// FieldSpec declares one column of a contract.
type FieldSpec struct {
	Name     string    // Normalized column name
	Type     FieldType // Primitive the value is coerced to
	Nullable bool      // Null is accepted (the column must still be present)
	Optional bool      // The column may be absent entirely
	Checks   []Check   // Run in order on the coerced value; all failures are kept
}

// CrossRule validates a relationship between fields of one row.
// It only runs when every field in Fields passed its own checks, and it sees
// the coerced values.
type CrossRule struct {
	Name   string   // Field the failure is reported against
	Fields []string // Fields the rule reads
	Check  func(row Row) error
}

// Contract is the declarative schema a sheet's rows must satisfy.
type Contract struct {
	Table      string
	Extra      ExtraMode
	Fields     []FieldSpec
	CrossRules []CrossRule
}

// Field returns the FieldSpec for name, if declared.
func (c Contract) Field(name string) (FieldSpec, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Batch is one immutable snapshot directory named YYYYMMDD_HHMMSS.
type Batch struct {
	ID   string
	Path string
}

// SheetFile is one sheet snapshot inside a batch.
type SheetFile struct {
	Batch Batch
	Name  string // File name, e.g. "sales data.parquet"
	Path  string
	Table string // Target table derived from Name
}

// MetadataRecord is one ledger entry.
type MetadataRecord struct {
	SourceID    string    `json:"fileName"`
	Table       string    `json:"sheetName"`
	RowCount    int64     `json:"rowCount"`
	CompletedAt time.Time `json:"lastProcessedTime"`
}

// FileState is the outcome of processing one sheet file.
type FileState string

const (
	StateLoaded            FileState = "loaded"
	StateSkippedAllInvalid FileState = "skipped-all-invalid"
	StateSkippedDuplicate  FileState = "skipped-duplicate"
	StateFailed            FileState = "failed"
)

// FileResult reports what happened to one sheet file during a run.
type FileResult struct {
	Batch       string    `json:"batch"`
	File        string    `json:"file"`
	Table       string    `json:"table"`
	State       FileState `json:"state"`
	ValidRows   int       `json:"validRows"`
	InvalidRows int       `json:"invalidRows"`
	Quarantine  string    `json:"quarantine,omitempty"`
	Created     bool      `json:"tableCreated,omitempty"`
	Error       string    `json:"error,omitempty"`
	Err         error     `json:"-"`
}

// RunReport summarizes one orchestrator pass.
type RunReport struct {
	RunID     string        `json:"runId"`
	SourceID  string        `json:"sourceId"`
	Cursor    string        `json:"cursor,omitempty"`
	Batches   []string      `json:"batches"`
	Files     []FileResult  `json:"files"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
}

// Count returns how many files ended in state.
func (r *RunReport) Count(state FileState) int {
	n := 0
	for _, f := range r.Files {
		if f.State == state {
			n++
		}
	}
	return n
}
