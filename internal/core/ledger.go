package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// CursorLayout formats ledger timestamps the way batch directories are named.
const CursorLayout = "20060102_150405"

// LedgerTable is the table the ledger migration creates.
const LedgerTable = "data_processing_metadata"

// Ledger records which (source, table, row count) triples have been loaded.
// Records are append-only; the ledger never updates or deletes.
type Ledger struct {
	db DBTX
}

// NewLedger returns a ledger stored in the data_processing_metadata table.
func NewLedger(db DBTX) *Ledger {
	return &Ledger{db: db}
}

func ledgerError(op, table string, err error) error {
	return &Error{Kind: KindLedgerAccess, Op: op, Table: table, Err: err}
}

// IsProcessed reports whether a record matches all three of sourceID, table
// and rowCount exactly.
func (l *Ledger) IsProcessed(ctx context.Context, sourceID, table string, rowCount int64) (bool, error) {
	const q = `SELECT EXISTS (
		SELECT 1 FROM ` + LedgerTable + `
		WHERE file_name = $1 AND sheet_name = $2 AND row_count = $3
	)`

	var found bool
	if err := l.db.QueryRow(ctx, q, sourceID, table, rowCount).Scan(&found); err != nil {
		return false, ledgerError("check ledger", table, err)
	}
	return found, nil
}

// RecordProcessed appends rec.
func (l *Ledger) RecordProcessed(ctx context.Context, rec MetadataRecord) error {
	const q = `INSERT INTO ` + LedgerTable + ` (file_name, sheet_name, row_count, last_processed_time)
		VALUES ($1, $2, $3, $4)`

	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now()
	}
	ts := pgtype.Timestamp{Time: rec.CompletedAt, Valid: true}
	if _, err := l.db.Exec(ctx, q, rec.SourceID, rec.Table, rec.RowCount, ts); err != nil {
		return ledgerError("record ledger", rec.Table, err)
	}
	return nil
}

// Cursor returns the latest completion time formatted with CursorLayout.
// The boolean is false when the ledger is empty.
func (l *Ledger) Cursor(ctx context.Context) (string, bool, error) {
	const q = `SELECT MAX(last_processed_time) FROM ` + LedgerTable

	var ts pgtype.Timestamp
	if err := l.db.QueryRow(ctx, q).Scan(&ts); err != nil {
		return "", false, ledgerError("read cursor", "", err)
	}
	if !ts.Valid {
		return "", false, nil
	}
	return ts.Time.Format(CursorLayout), true, nil
}

// Records returns up to limit records, newest first.
func (l *Ledger) Records(ctx context.Context, limit int) ([]MetadataRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	const q = `SELECT file_name, sheet_name, row_count, last_processed_time
		FROM ` + LedgerTable + `
		ORDER BY last_processed_time DESC
		LIMIT $1`

	rows, err := l.db.Query(ctx, q, limit)
	if err != nil {
		return nil, ledgerError("list ledger", "", err)
	}
	defer rows.Close()

	var out []MetadataRecord
	for rows.Next() {
		var (
			rec MetadataRecord
			ts  pgtype.Timestamp
		)
		if err := rows.Scan(&rec.SourceID, &rec.Table, &rec.RowCount, &ts); err != nil {
			return nil, ledgerError("list ledger", "", fmt.Errorf("scan: %w", err))
		}
		rec.CompletedAt = ts.Time
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgerError("list ledger", "", err)
	}
	return out, nil
}
