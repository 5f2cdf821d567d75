package observability

import (
	"fmt"

	"github.com/platinummonkey/plugingate/pkg/verdict"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the gate's Prometheus metrics
type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	StageVerdictsTotal *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec
	LastRunTimestamp   prometheus.Gauge
}

// NewMetrics creates and registers the gate metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugingate_runs_total",
				Help: "Total number of gate runs by result",
			},
			[]string{"result"},
		),
		StageVerdictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugingate_stage_verdicts_total",
				Help: "Total number of stage verdicts",
			},
			[]string{"stage", "status", "reason"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plugingate_stage_duration_seconds",
				Help:    "Stage duration in seconds",
				Buckets: []float64{.001, .01, .05, .1, .5, 1, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		LastRunTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "plugingate_last_run_timestamp_seconds",
				Help: "Unix time the last gate run finished",
			},
		),
	}

	registry.MustRegister(
		m.RunsTotal,
		m.StageVerdictsTotal,
		m.StageDuration,
		m.LastRunTimestamp,
	)

	return m
}

// ObserveVerdict records one stage verdict
func (m *Metrics) ObserveVerdict(v verdict.Verdict) {
	m.StageVerdictsTotal.WithLabelValues(string(v.Stage), string(v.Status), v.Reason).Inc()
	m.StageDuration.WithLabelValues(string(v.Stage)).Observe(v.Duration.Seconds())
}

// ObserveReport records a finished run
func (m *Metrics) ObserveReport(report *verdict.Report) {
	result := "pass"
	if !report.Passed() {
		result = "fail"
	}
	m.RunsTotal.WithLabelValues(result).Inc()
	m.LastRunTimestamp.SetToCurrentTime()
}

// WriteTextfile writes everything registered in g to path in the text
// exposition format, for node-exporter's textfile collector
func (m *Metrics) WriteTextfile(g prometheus.Gatherer, path string) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
