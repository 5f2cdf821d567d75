package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/platinummonkey/plugingate/pkg/policy"
	"github.com/platinummonkey/plugingate/pkg/process"
	"github.com/platinummonkey/plugingate/pkg/verdict"
	"github.com/sirupsen/logrus"
)

// Sandbox stage reason codes
const (
	ReasonSandboxUnavailable = "sandbox-unavailable"
	ReasonExecutionFailed    = "sandbox-execution-failed"
)

// stderrExcerpt bounds the stderr carried as evidence
const stderrExcerpt = 512

// Harness runs a plugin under the first available isolation strategy
type Harness struct {
	policy  *policy.Policy
	runners []SandboxRunner
	timeout time.Duration
	logger  logrus.FieldLogger
}

// NewHarness creates a harness probing runners in order
func NewHarness(p *policy.Policy, runners []SandboxRunner, timeout time.Duration, logger logrus.FieldLogger) *Harness {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Harness{
		policy:  p,
		runners: runners,
		timeout: timeout,
		logger:  logger,
	}
}

// Select returns the first runner whose primitive is available, or nil
func (h *Harness) Select(ctx context.Context) SandboxRunner {
	for _, r := range h.runners {
		if r.Available(ctx) {
			return r
		}
		h.logger.Debugf("Sandbox strategy %s not available", r.Name())
	}
	return nil
}

// Check runs the binary's default invocation on the probe document with
// network access denied
func (h *Harness) Check(ctx context.Context, binaryPath string) verdict.Verdict {
	start := time.Now()

	runner := h.Select(ctx)
	if runner == nil {
		h.logger.Warn("No sandbox primitive available, skipping sandboxed execution")
		return verdict.Skip(verdict.StageSandbox, ReasonSandboxUnavailable,
			fmt.Sprintf("none of %s is available on this host", h.strategyNames())).
			WithDuration(time.Since(start))
	}

	h.logger.Debugf("Running %s under %s", binaryPath, runner.Name())
	result, err := runner.Run(ctx, &Request{
		BinaryPath: binaryPath,
		Input:      []byte(h.policy.SandboxProbeInput),
		Timeout:    h.timeout,
	})
	if err != nil {
		return h.failure(runner.Name(), result, err).WithDuration(time.Since(start))
	}

	return verdict.Pass(verdict.StageSandbox,
		fmt.Sprintf("exited cleanly under %s with network denied", runner.Name()),
		"strategy="+runner.Name()).WithDuration(time.Since(start))
}

func (h *Harness) failure(strategy string, result *Result, err error) verdict.Verdict {
	evidence := []string{"strategy=" + strategy}
	if result != nil {
		evidence = append(evidence, fmt.Sprintf("exit_code=%d", result.ExitCode))
		if excerpt := process.Excerpt(result.Stderr, stderrExcerpt); excerpt != "" {
			evidence = append(evidence, "stderr="+excerpt)
		}
	}

	var message string
	switch {
	case errors.Is(err, ErrTimeout):
		message = fmt.Sprintf("did not finish within %s under %s", h.timeout, strategy)
	case errors.Is(err, ErrOutputLimit):
		message = fmt.Sprintf("output exceeded the capture limit under %s", strategy)
	case errors.Is(err, ErrNonZeroExit):
		message = fmt.Sprintf("exited with status %d under %s", result.ExitCode, strategy)
	default:
		message = fmt.Sprintf("could not run under %s: %v", strategy, err)
	}

	return verdict.Fail(verdict.StageSandbox, verdict.KindExecutionFailure, ReasonExecutionFailed, message, evidence...)
}

// Close releases runners holding connections, such as the Docker client
func (h *Harness) Close() error {
	var errs []error
	for _, r := range h.runners {
		if c, ok := r.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

func (h *Harness) strategyNames() string {
	if len(h.runners) == 0 {
		return "no configured strategy"
	}
	names := make([]string, 0, len(h.runners))
	for _, r := range h.runners {
		names = append(names, r.Name())
	}
	return strings.Join(names, ", ")
}

// NewRunners builds runners for the named strategies, in the given order
func NewRunners(strategies []string, dockerImage string, logger logrus.FieldLogger) ([]SandboxRunner, error) {
	runners := make([]SandboxRunner, 0, len(strategies))
	for _, name := range strategies {
		switch name {
		case StrategySandboxExec:
			runners = append(runners, NewSandboxExecRunner())
		case StrategyUnshare:
			runners = append(runners, NewUnshareRunner())
		case StrategyDocker:
			runners = append(runners, NewDockerRunner(dockerImage, logger))
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
		}
	}
	return runners, nil
}
