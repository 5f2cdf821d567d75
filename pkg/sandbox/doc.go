// Package sandbox executes a plugin binary with network access denied.
//
// Isolation primitives differ per host, so each is a SandboxRunner and the
// Harness uses the first one that works: sandbox-exec on macOS, an
// unprivileged network namespace on Linux, then a Docker container with
// networking disabled. A host with none of them skips the stage instead of
// failing it.
package sandbox
