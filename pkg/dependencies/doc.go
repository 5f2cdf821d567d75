// Package dependencies audits a plugin's resolved dependency graph.
//
// The graph comes from the plugin's own build tool through a
// DependencyInspector (`cargo tree --no-dedupe` or `go mod graph`). The
// listing is never deduplicated: a denylisted crate pulled in by three parents
// shows up three times in the evidence.
//
// A missing build tool is an environment problem, not a plugin property, so
// the stage is reported as skipped rather than failed.
package dependencies
