// Package scanner greps a plugin's own source tree for APIs that open
// sockets, listen for connections or spawn processes.
//
// The scan is deliberately lexical: each line of each source file is matched
// against the source denylist on identifier boundaries. Build output and
// vendored trees are skipped since they are not the plugin author's code.
package scanner
