// Package observability provides the gate's logging, Prometheus metrics and
// OpenTelemetry tracing.
//
// # Logging
//
//	logger := observability.NewLogger("debug", "text", os.Stderr)
//	logger.WithField("stage", "sandbox").Warn("No sandbox primitive available")
//
// # Metrics
//
// The gate is a short-lived process, so metrics are not scraped. They are
// written to a node-exporter textfile after each run:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.ObserveReport(report)
//	metrics.WriteTextfile(registry, "/var/lib/node_exporter/plugingate.prom")
//
// # Tracing
//
// Each run is a span with one child span per stage. Without an OTLP endpoint
// spans are recorded but not exported.
package observability
