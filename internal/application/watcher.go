package application

// watcher.go polls the raw directory for new workbooks.
//
// A workbook is handed to the ingest func once it has been seen with the same
// size and modification time on two consecutive scans, so a file still being
// copied in is not read half written. Files present when watching starts are
// treated as already handled.

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultWatchInterval is used when no interval is configured.
const DefaultWatchInterval = 5 * time.Second

// IngestFunc processes one newly arrived workbook.
type IngestFunc func(ctx context.Context, path string) error

type fileStamp struct {
	size    int64
	modTime time.Time
}

// Watcher discovers workbooks arriving under a directory tree.
type Watcher struct {
	dir      string
	interval time.Duration
	ingest   IngestFunc

	seen    map[string]fileStamp
	pending map[string]fileStamp
}

// NewWatcher returns a watcher over dir.
func NewWatcher(dir string, interval time.Duration, ingest IngestFunc) *Watcher {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	return &Watcher{
		dir:      dir,
		interval: interval,
		ingest:   ingest,
		seen:     make(map[string]fileStamp),
		pending:  make(map[string]fileStamp),
	}
}

// isWorkbook reports whether name is an .xlsx file that is not an Excel lock file.
func isWorkbook(name string) bool {
	base := filepath.Base(name)
	return strings.EqualFold(filepath.Ext(base), ".xlsx") && !strings.HasPrefix(base, "~$")
}

func (w *Watcher) list() (map[string]fileStamp, error) {
	found := make(map[string]fileStamp)
	err := filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !isWorkbook(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		found[path] = fileStamp{size: info.Size(), modTime: info.ModTime()}
		return nil
	})
	return found, err
}

// Prime marks every workbook currently present as handled.
func (w *Watcher) Prime() error {
	found, err := w.list()
	if err != nil {
		return err
	}
	for path, st := range found {
		w.seen[path] = st
	}
	return nil
}

// Scan returns workbooks that are new or changed and have been stable since
// the previous scan, in path order. Returned files are marked handled.
func (w *Watcher) Scan() ([]string, error) {
	found, err := w.list()
	if err != nil {
		return nil, err
	}

	var ready []string
	for path, st := range found {
		if prev, ok := w.seen[path]; ok && prev == st {
			continue
		}
		if prev, ok := w.pending[path]; ok && prev == st {
			delete(w.pending, path)
			w.seen[path] = st
			ready = append(ready, path)
			continue
		}
		w.pending[path] = st
	}

	for path := range w.pending {
		if _, ok := found[path]; !ok {
			delete(w.pending, path)
		}
	}

	sort.Strings(ready)
	return ready, nil
}

// Watch primes the watcher and then scans every interval until ctx is done.
// Ingest failures are logged and do not stop the watcher.
func (w *Watcher) Watch(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	if err := w.Prime(); err != nil {
		return err
	}
	slog.Info("watching for workbooks", "dir", w.dir, "interval", w.interval, "existing", len(w.seen))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("watcher stopped")
			return nil
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Watcher) tick(ctx context.Context) {
	ready, err := w.Scan()
	if err != nil {
		slog.Error("scan raw directory failed", "dir", w.dir, "error", err)
		return
	}
	for _, path := range ready {
		if ctx.Err() != nil {
			return
		}
		slog.Info("new workbook detected", "path", path)
		if err := w.ingest(ctx, path); err != nil {
			slog.Error("ingest failed", "path", path, "error", err)
		}
	}
}
