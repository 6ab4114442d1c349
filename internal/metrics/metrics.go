// Package metrics records pipeline execution in Prometheus form.
//
// recset runs as a batch job, so metrics are not scraped. The collector
// writes its registry to a node_exporter textfile after each run.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements pipeline.Observer on a private registry.
type Collector struct {
	registry *prometheus.Registry

	stageRuns     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageRows     *prometheus.GaugeVec
	events        *prometheus.CounterVec
	lastRun       prometheus.Gauge
}

// New returns a collector with all recset metrics registered.
func New() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Collector{
		registry: reg,
		stageRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recset_stage_runs_total",
				Help: "Stage executions by outcome",
			},
			[]string{"stage", "status"},
		),
		stageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recset_stage_duration_seconds",
				Help:    "Stage execution time in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"stage"},
		),
		stageRows: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "recset_stage_output_rows",
				Help: "Rows committed by the last execution of a stage",
			},
			[]string{"stage"},
		),
		events: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recset_stage_events_total",
				Help: "Counted data events (rows imputed, values clipped, rows dropped)",
			},
			[]string{"stage", "event"},
		),
		lastRun: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "recset_last_run_timestamp_seconds",
				Help: "Unix time the last run finished",
			},
		),
	}
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) StageStarted(string) {}

func (c *Collector) StageFinished(stage string, rows int, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.stageRuns.WithLabelValues(stage, status).Inc()
	c.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	if err == nil {
		c.stageRows.WithLabelValues(stage).Set(float64(rows))
	}
}

func (c *Collector) Count(stage, event string, n int) {
	c.events.WithLabelValues(stage, event).Add(float64(n))
}

// RunFinished stamps the completion time.
func (c *Collector) RunFinished(at time.Time) {
	c.lastRun.Set(float64(at.Unix()))
}

// WriteTextfile writes the registry in Prometheus text format. The file is
// replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
