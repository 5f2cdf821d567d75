package dependencies

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/platinummonkey/plugingate/pkg/policy"
	"github.com/platinummonkey/plugingate/pkg/process"
	"github.com/platinummonkey/plugingate/pkg/verdict"
	"github.com/sirupsen/logrus"
)

// Dependency stage reason codes
const (
	ReasonForbiddenDependency = "forbidden-dependency"
	ReasonQueryFailed         = "dependency-query-failed"
	ReasonToolUnavailable     = "tool-unavailable"
	ReasonNoBuildManifest     = "no-build-manifest"
)

// Auditor checks a plugin's resolved dependency listing against the
// dependency denylist
type Auditor struct {
	policy     *policy.Policy
	inspectors []DependencyInspector
	logger     logrus.FieldLogger
}

// NewAuditor creates an auditor trying inspectors in order
func NewAuditor(p *policy.Policy, inspectors []DependencyInspector, logger logrus.FieldLogger) *Auditor {
	return &Auditor{
		policy:     p,
		inspectors: inspectors,
		logger:     logger,
	}
}

// Audit inspects the project at sourceDir. Every matching edge is reported
// by its verbatim line, including repeated transitive occurrences.
func (a *Auditor) Audit(ctx context.Context, sourceDir string) verdict.Verdict {
	start := time.Now()

	inspector := a.detect(sourceDir)
	if inspector == nil {
		a.logger.Warnf("No recognised build manifest in %s, skipping dependency audit", sourceDir)
		return verdict.Skip(verdict.StageDependencies, ReasonNoBuildManifest,
			fmt.Sprintf("no build manifest understood by %s found in %s", a.inspectorNames(), sourceDir)).
			WithDuration(time.Since(start))
	}

	graph, err := inspector.Inspect(ctx, sourceDir)
	if err != nil {
		if errors.Is(err, process.ErrToolUnavailable) {
			a.logger.Warnf("%s not found, dependency audit skipped", inspector.Name())
			return verdict.Skip(verdict.StageDependencies, ReasonToolUnavailable,
				fmt.Sprintf("%s is not installed; dependency audit incomplete", inspector.Name())).
				WithDuration(time.Since(start))
		}
		return verdict.Fail(verdict.StageDependencies, verdict.KindExecutionFailure, ReasonQueryFailed,
			"could not resolve the dependency graph", err.Error()).WithDuration(time.Since(start))
	}

	a.logger.Debugf("%s reported %d dependency edges", inspector.Name(), graph.Len())
	return a.Evaluate(graph).WithDuration(time.Since(start))
}

// Evaluate matches a dependency graph against the denylist. Patterns see
// each edge's identifier; the verbatim listing line is kept as evidence.
func (a *Auditor) Evaluate(graph *DependencyGraph) verdict.Verdict {
	var evidence []string
	hits := make(map[string]int)

	for _, dep := range graph.Dependencies {
		matched := a.policy.MatchDependency(dep.Identifier())
		if len(matched) == 0 {
			continue
		}
		evidence = append(evidence, dep.Line)
		for _, pat := range matched {
			hits[pat.Name+" ("+pat.Category+")"]++
		}
	}

	if len(evidence) > 0 {
		return verdict.Fail(verdict.StageDependencies, verdict.KindPolicyViolation, ReasonForbiddenDependency,
			fmt.Sprintf("%d dependency edge(s) match the denylist: %s", len(evidence), summarize(hits)),
			evidence...)
	}

	return verdict.Pass(verdict.StageDependencies,
		fmt.Sprintf("%d dependency edge(s) from %s, none denylisted", graph.Len(), graph.Tool))
}

func (a *Auditor) detect(dir string) DependencyInspector {
	for _, inspector := range a.inspectors {
		if inspector.Detect(dir) {
			return inspector
		}
	}
	return nil
}

func (a *Auditor) inspectorNames() string {
	names := make([]string, 0, len(a.inspectors))
	for _, inspector := range a.inspectors {
		names = append(names, inspector.Name())
	}
	return strings.Join(names, "/")
}

func summarize(hits map[string]int) string {
	keys := make([]string, 0, len(hits))
	for k := range hits {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s x%d", k, hits[k]))
	}
	return strings.Join(parts, ", ")
}
