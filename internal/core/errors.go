package core

// errors.go defines the error kinds the load engine reports.
//
// Every error leaving the core is a *Error carrying a Kind plus the batch,
// table and row count it was raised for. Callers branch on the kind with
// errors.Is against the package sentinels:
//
//	if errors.Is(err, core.ErrContractNotFound) { ... }
//
// Row validation failures are never errors; they travel as InvalidRow values.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Kind classifies a load engine failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindContractNotFound
	KindSchemaCreation
	KindLoad
	KindLedgerAccess
	KindSnapshot
)

func (k Kind) String() string {
	switch k {
	case KindContractNotFound:
		return "contract not found"
	case KindSchemaCreation:
		return "schema creation"
	case KindLoad:
		return "load"
	case KindLedgerAccess:
		return "ledger access"
	case KindSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrContractNotFound = &Error{Kind: KindContractNotFound}
	ErrSchemaCreation   = &Error{Kind: KindSchemaCreation}
	ErrLoad             = &Error{Kind: KindLoad}
	ErrLedgerAccess     = &Error{Kind: KindLedgerAccess}
	ErrSnapshot         = &Error{Kind: KindSnapshot}
)

// Error is a load engine failure with the context it happened in.
type Error struct {
	Kind  Kind
	Op    string // operation, e.g. "ensure table"
	Batch string // batch id, when known
	Table string // target table, when known
	Rows  int    // rows involved, when known
	Err   error  // underlying cause
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
	} else {
		b.WriteString(e.Kind.String())
	}
	if e.Table != "" {
		fmt.Fprintf(&b, " %s", e.Table)
	}
	if e.Batch != "" {
		fmt.Fprintf(&b, " (batch %s)", e.Batch)
	}
	if e.Rows > 0 {
		fmt.Fprintf(&b, " [%d rows]", e.Rows)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match when target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// withBatch fills in the batch id on a core error that does not have one yet.
func withBatch(err error, batch string) error {
	var e *Error
	if errors.As(err, &e) && e.Batch == "" {
		e.Batch = batch
	}
	return err
}

// SQLState returns the Postgres SQLSTATE code carried by err, or "".
func SQLState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
