// Package metrics exposes per-run gauges for the node_exporter textfile
// collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "portfolio_sync"

// Outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeDegraded = "degraded"
	OutcomeSkipped  = "skipped"
)

// Kind label values.
const (
	KindCV      = "cv"
	KindImage   = "image"
	KindSkills  = "skills"
	KindProject = "project"
)

// RunStatuses are the status label values of LastRunStatus.
var RunStatuses = []string{"success", "failed", "locked"}

// Metrics holds the collectors of one run on a private registry. Each
// process performs a single run, so every value describes that run; the
// textfile is replaced after each one.
type Metrics struct {
	reg *prometheus.Registry

	LastRunStatus *prometheus.GaugeVec
	Downloads     *prometheus.GaugeVec
	AIRequests    *prometheus.GaugeVec
	ProjectsAdded prometheus.Gauge
	LastRun       prometheus.Gauge
	LastSuccess   prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		LastRunStatus: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_status",
			Help:      "1 for the final status of the last run, 0 for the others.",
		}, []string{"status"}),
		Downloads: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_downloads",
			Help:      "File downloads in the last run by kind and outcome.",
		}, []string{"kind", "outcome"}),
		AIRequests: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_ai_requests",
			Help:      "Completion API analyses in the last run by kind and outcome.",
		}, []string{"kind", "outcome"}),
		ProjectsAdded: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_projects_added",
			Help:      "Projects appended to the project list by the last run.",
		}),
		LastRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		LastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time the last successful run finished.",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ObserveRun records the final status of a run finished at t.
func (m *Metrics) ObserveRun(status string, t time.Time) {
	for _, s := range RunStatuses {
		m.LastRunStatus.WithLabelValues(s).Set(0)
	}
	m.LastRunStatus.WithLabelValues(status).Set(1)
	m.LastRun.Set(float64(t.Unix()))
	if status == OutcomeSuccess {
		m.LastSuccess.Set(float64(t.Unix()))
	}
}

// WriteTextfile writes the registry to path in the text exposition format.
// The write is atomic so the collector never reads a partial file.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
