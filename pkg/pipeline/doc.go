// Package pipeline runs the gate stages against one plugin and aggregates
// their verdicts.
//
// The static stages (manifest, dependencies, source) do not depend on each
// other and run concurrently; every one of them is reported even when a
// sibling fails. The dynamic stages (sandbox, output) execute the plugin and
// only run once the static stages have passed, stopping at the first
// failure:
//
//	start -> manifest_checked -> deps_checked -> source_checked
//	      -> sandbox_checked -> output_checked -> done
//
// Any failing static stage moves the run straight to done.
package pipeline
