package sandbox

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/platinummonkey/plugingate/pkg/process"
)

// sandboxProfile allows everything except network access
const sandboxProfile = "(version 1)(allow default)(deny network*)"

// SandboxExecRunner isolates the binary with the macOS sandbox-exec tool
type SandboxExecRunner struct {
	Path string
}

// NewSandboxExecRunner creates a runner using sandbox-exec on PATH
func NewSandboxExecRunner() *SandboxExecRunner {
	return &SandboxExecRunner{Path: "sandbox-exec"}
}

func (r *SandboxExecRunner) Name() string { return StrategySandboxExec }

func (r *SandboxExecRunner) Available(ctx context.Context) bool {
	return runtime.GOOS == "darwin" && process.LookPath(r.Path) != ""
}

func (r *SandboxExecRunner) Run(ctx context.Context, req *Request) (*Result, error) {
	return runLocal(ctx, r.Name(), r.Path, r.Args(req.BinaryPath), req)
}

// Args returns the sandbox-exec arguments wrapping binary
func (r *SandboxExecRunner) Args(binary string) []string {
	return []string{"-p", sandboxProfile, binary}
}

// UnshareRunner isolates the binary in a fresh Linux network namespace
// owned by an unprivileged user namespace. The new namespace only has a
// loopback interface, which is down.
type UnshareRunner struct {
	Path string

	once      sync.Once
	available bool
}

// NewUnshareRunner creates a runner using unshare on PATH
func NewUnshareRunner() *UnshareRunner {
	return &UnshareRunner{Path: "unshare"}
}

func (r *UnshareRunner) Name() string { return StrategyUnshare }

// Available probes the primitive once by running `true` inside it, since
// unprivileged user namespaces are often disabled by the kernel or seccomp.
// The cached answer outlives the caller, so the check ignores ctx
// cancellation and is bounded by its own timeout.
func (r *UnshareRunner) Available(ctx context.Context) bool {
	if runtime.GOOS != "linux" {
		return false
	}
	r.once.Do(func() {
		_, err := process.Run(context.WithoutCancel(ctx), process.Command{
			Path:    r.Path,
			Args:    r.Args("true"),
			Timeout: 5 * time.Second,
		})
		r.available = err == nil
	})
	return r.available
}

func (r *UnshareRunner) Run(ctx context.Context, req *Request) (*Result, error) {
	return runLocal(ctx, r.Name(), r.Path, r.Args(req.BinaryPath), req)
}

// Args returns the unshare arguments wrapping binary
func (r *UnshareRunner) Args(binary string) []string {
	return []string{"--user", "--map-root-user", "--net", binary}
}

func runLocal(ctx context.Context, strategy, path string, args []string, req *Request) (*Result, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	input := req.Input
	if input == nil {
		input = []byte{}
	}

	res, err := process.Run(ctx, process.Command{
		Path:    path,
		Args:    args,
		Stdin:   input,
		Timeout: timeout,
	})
	if res == nil {
		return nil, err
	}
	return &Result{
		Strategy: strategy,
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		Duration: res.Duration,
	}, err
}
