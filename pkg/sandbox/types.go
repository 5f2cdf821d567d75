package sandbox

import (
	"context"
	"time"
)

// Strategy names, in default preference order
const (
	StrategySandboxExec = "sandbox-exec"
	StrategyUnshare     = "unshare"
	StrategyDocker      = "docker"
)

// DefaultStrategies is the order strategies are probed in
var DefaultStrategies = []string{StrategySandboxExec, StrategyUnshare, StrategyDocker}

// DefaultTimeout bounds one sandboxed invocation
const DefaultTimeout = 10 * time.Second

// SandboxRunner runs a plugin binary with network access denied
type SandboxRunner interface {
	// Name returns the strategy name
	Name() string

	// Available reports whether the isolation primitive works on this host
	Available(ctx context.Context) bool

	// Run executes the binary's default invocation with req.Input on stdin.
	// A nonzero exit or timeout returns the result together with an error.
	Run(ctx context.Context, req *Request) (*Result, error)
}

// Request is one sandboxed invocation
type Request struct {
	BinaryPath string
	Input      []byte
	Timeout    time.Duration
}

// Result is what the sandboxed binary did
type Result struct {
	Strategy string
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}
