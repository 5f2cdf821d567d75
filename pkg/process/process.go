package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

var (
	// ErrToolUnavailable is returned when the executable cannot be found
	ErrToolUnavailable = errors.New("tool not available")

	// ErrTimeout is returned when the process outlives its deadline
	ErrTimeout = errors.New("execution timeout")

	// ErrNonZeroExit is returned when the process exits with a nonzero status
	ErrNonZeroExit = errors.New("non-zero exit status")

	// ErrOutputLimit is returned when the process writes more than the
	// capture limit to stdout or stderr
	ErrOutputLimit = errors.New("output limit exceeded")
)

const (
	// DefaultTimeout bounds a command that does not set its own timeout
	DefaultTimeout = 30 * time.Second

	// DefaultOutputLimit bounds each captured stream of a command that does
	// not set its own limit
	DefaultOutputLimit = 8 << 20
)

// Command describes one bounded subprocess invocation
type Command struct {
	Path    string
	Args    []string
	Dir     string
	Env     []string // appended to the inherited environment when non-empty
	Stdin   []byte
	Timeout time.Duration

	// OutputLimit caps the bytes kept per stream; the process is killed
	// once either stream passes it
	OutputLimit int
}

// Result captures what the subprocess did
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Run executes cmd and waits for it. A nonzero exit returns both the result
// and an error wrapping ErrNonZeroExit so callers can still inspect output.
func Run(ctx context.Context, cmd Command) (*Result, error) {
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	path, err := exec.LookPath(cmd.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrToolUnavailable, cmd.Path, err)
	}

	limit := cmd.OutputLimit
	if limit <= 0 {
		limit = DefaultOutputLimit
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := exec.CommandContext(execCtx, path, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(c.Environ(), cmd.Env...)
	}
	if cmd.Stdin != nil {
		c.Stdin = bytes.NewReader(cmd.Stdin)
	}
	// Children that inherit stdout must not keep Wait blocked past the deadline
	c.WaitDelay = time.Second

	stdout := NewLimitedBuffer(limit, cancel)
	stderr := NewLimitedBuffer(limit, cancel)
	c.Stdout = stdout
	c.Stderr = stderr

	start := time.Now()
	runErr := c.Run()

	result := &Result{
		ExitCode: c.ProcessState.ExitCode(),
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if stdout.Exceeded() || stderr.Exceeded() {
		return result, fmt.Errorf("%w: %s wrote more than %d bytes", ErrOutputLimit, cmd.Path, limit)
	}
	if execCtx.Err() == context.DeadlineExceeded {
		return result, fmt.Errorf("%w: %s after %v", ErrTimeout, cmd.Path, timeout)
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return result, fmt.Errorf("%w: %s exited %d", ErrNonZeroExit, cmd.Path, exitErr.ExitCode())
		}
		return result, fmt.Errorf("failed to run %s: %w", cmd.Path, runErr)
	}

	return result, nil
}

// LimitedBuffer keeps at most limit bytes and discards the rest. Writes never
// fail, so a child writing into a pipe is not left blocked; onOverflow is
// called once, the first time the limit is passed. A LimitedBuffer must not
// be written from several goroutines.
type LimitedBuffer struct {
	buf        bytes.Buffer
	limit      int
	exceeded   bool
	onOverflow func()
}

// NewLimitedBuffer creates a buffer capped at limit bytes. onOverflow may be nil.
func NewLimitedBuffer(limit int, onOverflow func()) *LimitedBuffer {
	return &LimitedBuffer{limit: limit, onOverflow: onOverflow}
}

func (b *LimitedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if len(p) <= room {
		return b.buf.Write(p)
	}
	if room > 0 {
		b.buf.Write(p[:room])
	}
	if !b.exceeded {
		b.exceeded = true
		if b.onOverflow != nil {
			b.onOverflow()
		}
	}
	return len(p), nil
}

// Bytes returns the captured prefix
func (b *LimitedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}

// Exceeded reports whether anything was discarded
func (b *LimitedBuffer) Exceeded() bool {
	return b.exceeded
}

// LookPath finds an executable in PATH, falling back to well-known install
// locations. It returns an empty string when nothing is found.
func LookPath(name string, fallbacks ...string) string {
	if path, err := exec.LookPath(name); err == nil {
		return path
	}
	for _, p := range fallbacks {
		if path, err := exec.LookPath(p); err == nil {
			return path
		}
	}
	return ""
}

// Excerpt trims output to at most limit bytes for use as evidence
func Excerpt(output []byte, limit int) string {
	out := bytes.TrimSpace(output)
	if len(out) <= limit {
		return string(out)
	}
	return string(out[:limit]) + "..."
}
