package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/platinummonkey/plugingate/pkg/config"
	"github.com/platinummonkey/plugingate/pkg/dependencies"
	"github.com/platinummonkey/plugingate/pkg/output"
	"github.com/platinummonkey/plugingate/pkg/plugins"
	"github.com/platinummonkey/plugingate/pkg/policy"
	"github.com/platinummonkey/plugingate/pkg/sandbox"
	"github.com/platinummonkey/plugingate/pkg/scanner"
	"github.com/platinummonkey/plugingate/pkg/verdict"
	"github.com/sirupsen/logrus"
)

// ManifestChecker validates a plugin's manifest
type ManifestChecker interface {
	Check(ctx context.Context, plugin plugins.Contract) verdict.Verdict
}

// DependencyChecker audits the dependency graph of a source tree
type DependencyChecker interface {
	Audit(ctx context.Context, sourceDir string) verdict.Verdict
}

// SourceChecker scans a source tree for forbidden APIs
type SourceChecker interface {
	Check(ctx context.Context, root string) verdict.Verdict
}

// SandboxChecker executes a binary with network access denied
type SandboxChecker interface {
	Check(ctx context.Context, binaryPath string) verdict.Verdict
}

// OutputChecker round-trips a plugin's example and validates the output
type OutputChecker interface {
	Check(ctx context.Context, plugin plugins.Contract) verdict.Verdict
}

// Checkers holds one checker per stage
type Checkers struct {
	Manifest     ManifestChecker
	Dependencies DependencyChecker
	Source       SourceChecker
	Sandbox      SandboxChecker
	Output       OutputChecker
}

// Close releases checkers that hold resources
func (c Checkers) Close() error {
	var errs []error
	for _, checker := range []interface{}{c.Manifest, c.Dependencies, c.Source, c.Sandbox, c.Output} {
		if closer, ok := checker.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// DefaultCheckers builds the production checkers for a policy and config
func DefaultCheckers(p *policy.Policy, cfg *config.Config, logger logrus.FieldLogger) (Checkers, error) {
	runners, err := sandbox.NewRunners(cfg.Sandbox.Strategies, cfg.Sandbox.DockerImage, logger.WithField("stage", verdict.StageSandbox))
	if err != nil {
		return Checkers{}, fmt.Errorf("failed to configure sandbox: %w", err)
	}

	return Checkers{
		Manifest: plugins.NewManifestValidator(p, logger.WithField("stage", verdict.StageManifest)),
		Dependencies: dependencies.NewAuditor(p,
			dependencies.CachedInspectors(dependencies.DefaultInspectors(cfg.Timeouts.Inspect),
				dependencies.DefaultCacheEntries, dependencies.DefaultCacheTTL),
			logger.WithField("stage", verdict.StageDependencies)),
		Source:  scanner.NewSourceScanner(p, logger.WithField("stage", verdict.StageSource)),
		Sandbox: sandbox.NewHarness(p, runners, cfg.Timeouts.Sandbox, logger.WithField("stage", verdict.StageSandbox)),
		Output:  output.NewGrammarValidator(p, logger.WithField("stage", verdict.StageOutput)),
	}, nil
}
