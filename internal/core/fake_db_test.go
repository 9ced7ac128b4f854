package core

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeDB is an in-memory stand-in for a pgx pool. It understands the
// table-existence query, CREATE TABLE and multi-row INSERT, which is all
// the schema manager and loader issue.
type fakeDB struct {
	mu sync.Mutex

	tables   map[string]bool
	inserted map[string]int
	execs    []string
	argCount []int

	failExec   error  // returned by Exec when the statement matches failOn
	failOn     string // statement substring to fail on
	failAt     int    // or the 1-based Exec call to fail on
	commits    int
	rollbacks  int
	beginError error
}

func newFakeDB() *fakeDB {
	return &fakeDB{tables: make(map[string]bool), inserted: make(map[string]int)}
}

func (d *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	if d.beginError != nil {
		return nil, d.beginError
	}
	return &fakeTx{db: d, pendingRows: make(map[string]int)}, nil
}

func (d *fakeDB) statements(prefix string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, s := range d.execs {
		if strings.HasPrefix(s, prefix) {
			n++
		}
	}
	return n
}

// fakeTx buffers effects until Commit.
type fakeTx struct {
	pgx.Tx
	db *fakeDB

	lastTable     string
	pendingCreate string
	pendingRows   map[string]int
	done          bool
}

func (tx *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	table, _ := args[1].(string)
	tx.lastTable = table

	tx.db.mu.Lock()
	exists := tx.db.tables[table]
	tx.db.mu.Unlock()

	return fakeRow(func(dest ...any) error {
		*dest[0].(*bool) = exists
		return nil
	})
}

func (tx *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()

	tx.db.execs = append(tx.db.execs, sql)
	tx.db.argCount = append(tx.db.argCount, len(args))
	matched := tx.db.failOn != "" && strings.Contains(sql, tx.db.failOn)
	if tx.db.failExec != nil && (matched || tx.db.failAt == len(tx.db.execs)) {
		return pgconn.CommandTag{}, tx.db.failExec
	}

	switch {
	case strings.HasPrefix(sql, "CREATE TABLE"):
		tx.pendingCreate = tx.lastTable
		return pgconn.NewCommandTag("CREATE TABLE"), nil
	case strings.HasPrefix(sql, "INSERT INTO"):
		table := insertTarget(sql)
		rows := strings.Count(sql, "(") - 1
		tx.pendingRows[table] += rows
		return pgconn.NewCommandTag("INSERT 0 " + strconv.Itoa(rows)), nil
	}
	return pgconn.CommandTag{}, errors.New("fakeDB: unsupported statement")
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	tx.db.commits++
	if tx.pendingCreate != "" {
		tx.db.tables[tx.pendingCreate] = true
	}
	for table, n := range tx.pendingRows {
		tx.db.inserted[table] += n
	}
	return nil
}

func (tx *fakeTx) Rollback(ctx context.Context) error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	tx.db.rollbacks++
	return nil
}

// insertTarget extracts the unquoted table from `INSERT INTO "s"."t" (...`.
func insertTarget(sql string) string {
	rest := strings.TrimPrefix(sql, "INSERT INTO ")
	target := rest[:strings.Index(rest, " ")]
	parts := strings.Split(target, ".")
	return strings.Trim(parts[len(parts)-1], `"`)
}

// fakeRow adapts a scan function to pgx.Row.
type fakeRow func(dest ...any) error

func (f fakeRow) Scan(dest ...any) error { return f(dest...) }
