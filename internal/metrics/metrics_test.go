package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/JonMunkholm/silverload/internal/core"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderFileProcessed(t *testing.T) {
	const table = "metrics_test_table"
	r := Recorder{}

	loadedBefore := testutil.ToFloat64(CounterFilesProcessed.WithLabelValues(table, string(core.StateLoaded)))
	rowsBefore := testutil.ToFloat64(CounterRowsLoaded.WithLabelValues(table))
	quarantinedBefore := testutil.ToFloat64(CounterRowsQuarantined.WithLabelValues(table))
	createdBefore := testutil.ToFloat64(CounterTablesCreated)

	r.FileProcessed(core.FileResult{Table: table, State: core.StateLoaded, ValidRows: 2, InvalidRows: 1, Created: true})
	r.FileProcessed(core.FileResult{Table: table, State: core.StateSkippedAllInvalid, InvalidRows: 4})

	if got := testutil.ToFloat64(CounterFilesProcessed.WithLabelValues(table, string(core.StateLoaded))) - loadedBefore; got != 1 {
		t.Errorf("loaded files delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(CounterRowsLoaded.WithLabelValues(table)) - rowsBefore; got != 2 {
		t.Errorf("rows loaded delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(CounterRowsQuarantined.WithLabelValues(table)) - quarantinedBefore; got != 5 {
		t.Errorf("rows quarantined delta = %v, want 5", got)
	}
	if got := testutil.ToFloat64(CounterTablesCreated) - createdBefore; got != 1 {
		t.Errorf("tables created delta = %v, want 1", got)
	}
}

func TestRecorderRunFinished(t *testing.T) {
	r := Recorder{}

	tests := []struct {
		name   string
		err    error
		result string
	}{
		{"success", nil, "ok"},
		{"failure", errors.New("ledger down"), "error"},
		{"busy", core.ErrRunInProgress, "rejected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(CounterRuns.WithLabelValues(tt.result))
			r.RunFinished(&core.RunReport{Duration: 10 * time.Millisecond}, tt.err)
			if got := testutil.ToFloat64(CounterRuns.WithLabelValues(tt.result)) - before; got != 1 {
				t.Errorf("runs{result=%q} delta = %v, want 1", tt.result, got)
			}
		})
	}
}
