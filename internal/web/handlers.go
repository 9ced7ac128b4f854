package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/silverload/internal/application"
	"github.com/JonMunkholm/silverload/internal/logging"
)

// maxRequestBody bounds trigger request bodies.
const maxRequestBody = 64 * 1024

// maxLedgerLimit caps GET /api/ledger?limit=.
const maxLedgerLimit = 1000

type runRequest struct {
	Source string `json:"source"`
}

type ingestRequest struct {
	Path string `json:"path"`
}

// decodeBody decodes an optional JSON body into v. An empty body is allowed.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return badRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// detach keeps request-scoped values but not cancellation, so a run is not
// abandoned halfway when the client disconnects.
func detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// partial returns p as an error payload, or nil for a nil pointer.
func partial[T any](p *T) any {
	if p == nil {
		return nil
	}
	return p
}

// handleRun runs the loader over snapshots already in the bronze store.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, err, nil)
		return
	}

	report, err := s.pipeline.Run(detach(r), strings.TrimSpace(req.Source))
	if err != nil {
		respondError(w, r, err, partial(report))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleIngest snapshots a workbook from the raw directory and loads it.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, err, nil)
		return
	}

	path, err := resolveWorkbook(s.cfg.Pipeline.RawDir, req.Path)
	if err != nil {
		respondError(w, r, err, nil)
		return
	}

	report, err := s.pipeline.Ingest(detach(r), path)
	if err != nil {
		respondError(w, r, err, partial(report))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// resolveWorkbook resolves p against rawDir and rejects anything outside it.
func resolveWorkbook(rawDir, p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", badRequest("path is required")
	}
	if !strings.EqualFold(filepath.Ext(p), ".xlsx") {
		return "", badRequest("path must name an .xlsx workbook")
	}

	root, err := filepath.Abs(rawDir)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)

	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", badRequest("path must be inside the raw directory")
	}

	info, err := os.Stat(p)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", badRequest("path is a directory")
	}
	return p, nil
}

// handleStatus reports whether a run is in progress.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Status())
}

// handleLedger lists the newest ledger records.
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	limit := min(parseIntParam(r, "limit", 100), maxLedgerLimit)

	records, err := s.pipeline.Records(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}

// handleContracts lists the registered contracts.
func (s *Server) handleContracts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, application.Contracts())
}

// handleHealth checks the database with a short deadline.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.pipeline.Ping(ctx); err != nil {
		logging.FromContext(r.Context()).Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
