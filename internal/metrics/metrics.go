// Package metrics exposes prometheus collectors for suite runs.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector groups the checker's metrics on a private registry
type Collector struct {
	registry *prometheus.Registry

	intercepts       *prometheus.CounterVec
	interceptLatency prometheus.Histogram
	pagesWalked      prometheus.Counter
	valuesExtracted  *prometheus.CounterVec
	rowsSkipped      *prometheus.CounterVec
	overlayCycles    prometheus.Counter
	scenarios        *prometheus.CounterVec
	scenarioDuration *prometheus.HistogramVec
	lastRunTime      prometheus.Gauge
	lastRunFailures  prometheus.Gauge
}

// New creates a collector with all metrics registered
func New() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Collector{
		registry: reg,
		intercepts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rtdcheck_intercepts_total",
			Help: "Network interceptions by outcome",
		}, []string{"outcome"}),
		interceptLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rtdcheck_intercept_duration_seconds",
			Help:    "Time from trigger to matching response",
			Buckets: prometheus.DefBuckets,
		}),
		pagesWalked: f.NewCounter(prometheus.CounterOpts{
			Name: "rtdcheck_pages_walked_total",
			Help: "Table pages visited by the walker",
		}),
		valuesExtracted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rtdcheck_values_extracted_total",
			Help: "Values extracted per source and column",
		}, []string{"source", "column"}),
		rowsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rtdcheck_rows_skipped_total",
			Help: "Rendered rows that decoded to no value",
		}, []string{"column"}),
		overlayCycles: f.NewCounter(prometheus.CounterOpts{
			Name: "rtdcheck_overlay_cycles_total",
			Help: "Risk overlay open/close cycles",
		}),
		scenarios: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rtdcheck_scenarios_total",
			Help: "Scenario executions by kind and result",
		}, []string{"kind", "result"}),
		scenarioDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rtdcheck_scenario_duration_seconds",
			Help:    "Scenario wall time",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"kind"}),
		lastRunTime: f.NewGauge(prometheus.GaugeOpts{
			Name: "rtdcheck_last_run_timestamp_seconds",
			Help: "Unix time the last suite run finished",
		}),
		lastRunFailures: f.NewGauge(prometheus.GaugeOpts{
			Name: "rtdcheck_last_run_failures",
			Help: "Failed scenarios in the last suite run",
		}),
	}
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry for node_exporter's textfile collector
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

func (c *Collector) ObserveIntercept(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.intercepts.WithLabelValues(outcome).Inc()
	if outcome == "matched" {
		c.interceptLatency.Observe(d.Seconds())
	}
}

func (c *Collector) PageWalked() {
	if c == nil {
		return
	}
	c.pagesWalked.Inc()
}

func (c *Collector) ValuesExtracted(source, column string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.valuesExtracted.WithLabelValues(source, column).Add(float64(n))
}

func (c *Collector) RowSkipped(column string) {
	if c == nil {
		return
	}
	c.rowsSkipped.WithLabelValues(column).Inc()
}

func (c *Collector) OverlayCycle() {
	if c == nil {
		return
	}
	c.overlayCycles.Inc()
}

func (c *Collector) ScenarioFinished(kind string, passed bool, d time.Duration) {
	if c == nil {
		return
	}
	result := "pass"
	if !passed {
		result = "fail"
	}
	c.scenarios.WithLabelValues(kind, result).Inc()
	c.scenarioDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (c *Collector) RunFinished(at time.Time, failures int) {
	if c == nil {
		return
	}
	c.lastRunTime.Set(float64(at.Unix()))
	c.lastRunFailures.Set(float64(failures))
}
