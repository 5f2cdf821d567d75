// Package cli implements the plugingate command line.
//
//	plugingate check --binary target/release/gongwen --source .
//	plugingate check --binary ./gongwen --stages manifest,output --format json
//	plugingate watch --binary target/release/gongwen --source .
//	plugingate policy --format yaml
//	plugingate history --history gate.db --plugin gongwen
//
// check exits 0 when every selected stage passed or was skipped, 1 when any
// stage failed and 2 when the gate itself could not run.
package cli
