// Package metrics exposes load outcomes as Prometheus metrics.
package metrics

import (
	"errors"

	"github.com/JonMunkholm/silverload/internal/core"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "silverload"

const (
	MetricFilesProcessed  = "files_processed_total"
	MetricRowsLoaded      = "rows_loaded_total"
	MetricRowsQuarantined = "rows_quarantined_total"
	MetricTablesCreated   = "tables_created_total"
	MetricRuns            = "runs_total"
	MetricRunDuration     = "run_duration_seconds"
)

var CounterFilesProcessed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricFilesProcessed,
		Help:      "Sheet files processed, by table and final state.",
	},
	[]string{"table", "state"},
)

var CounterRowsLoaded = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricRowsLoaded,
		Help:      "Valid rows inserted into silver tables.",
	},
	[]string{"table"},
)

var CounterRowsQuarantined = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricRowsQuarantined,
		Help:      "Rows that failed validation.",
	},
	[]string{"table"},
)

var CounterTablesCreated = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricTablesCreated,
		Help:      "Silver tables created on first load.",
	},
)

var CounterRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricRuns,
		Help:      "Incremental runs, by result.",
	},
	[]string{"result"},
)

var HistogramRunDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      MetricRunDuration,
		Help:      "Wall time of incremental runs.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	},
)

func init() {
	prometheus.MustRegister(CounterFilesProcessed)
	prometheus.MustRegister(CounterRowsLoaded)
	prometheus.MustRegister(CounterRowsQuarantined)
	prometheus.MustRegister(CounterTablesCreated)
	prometheus.MustRegister(CounterRuns)
	prometheus.MustRegister(HistogramRunDuration)
}

// Recorder feeds file and run outcomes into the package counters.
type Recorder struct{}

var _ core.Observer = Recorder{}

// FileProcessed implements core.Observer.
func (Recorder) FileProcessed(res core.FileResult) {
	table := res.Table
	if table == "" {
		table = "unknown"
	}

	CounterFilesProcessed.WithLabelValues(table, string(res.State)).Inc()
	if res.InvalidRows > 0 {
		CounterRowsQuarantined.WithLabelValues(table).Add(float64(res.InvalidRows))
	}
	if res.State == core.StateLoaded {
		CounterRowsLoaded.WithLabelValues(table).Add(float64(res.ValidRows))
		if res.Created {
			CounterTablesCreated.Inc()
		}
	}
}

// RunFinished records a completed or aborted run.
func (Recorder) RunFinished(report *core.RunReport, err error) {
	result := "ok"
	switch {
	case errors.Is(err, core.ErrRunInProgress):
		result = "rejected"
	case err != nil:
		result = "error"
	}
	CounterRuns.WithLabelValues(result).Inc()
	if report != nil {
		HistogramRunDuration.Observe(report.Duration.Seconds())
	}
}
