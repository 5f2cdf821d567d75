package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/plugingate/pkg/observability"
	"github.com/platinummonkey/plugingate/pkg/plugins"
	"github.com/platinummonkey/plugingate/pkg/verdict"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// State is a pipeline state
type State string

const (
	StateStart           State = "start"
	StateManifestChecked State = "manifest_checked"
	StateDepsChecked     State = "deps_checked"
	StateSourceChecked   State = "source_checked"
	StateSandboxChecked  State = "sandbox_checked"
	StateOutputChecked   State = "output_checked"
	StateDone            State = "done"
)

// Orchestrator-level reason codes
const (
	ReasonArtifactMissing = "artifact-missing"
	ReasonNoSourceTree    = "no-source-tree"
	ReasonStagePanicked   = "stage-panicked"
)

// ErrNoBinary is returned when a request names no plugin binary
var ErrNoBinary = errors.New("no plugin binary given")

// Artifact is a plugin binary the gate can invoke and stat
type Artifact interface {
	plugins.Contract
	Stat() error
}

// Request selects what a run checks
type Request struct {
	Binary    string
	SourceDir string          // empty skips the dependency and source stages
	Stages    []verdict.Stage // empty runs every stage
}

// Options tunes an Orchestrator. Zero values select defaults.
type Options struct {
	InvokeTimeout time.Duration
	Tracer        trace.Tracer
	Metrics       *observability.Metrics
	NewArtifact   func(path string) Artifact
}

// Orchestrator sequences the gate stages for a plugin
type Orchestrator struct {
	checkers    Checkers
	tracer      trace.Tracer
	metrics     *observability.Metrics
	newArtifact func(path string) Artifact
	logger      logrus.FieldLogger
}

// NewOrchestrator creates an orchestrator over the given checkers
func NewOrchestrator(checkers Checkers, opts Options, logger logrus.FieldLogger) *Orchestrator {
	o := &Orchestrator{
		checkers:    checkers,
		tracer:      opts.Tracer,
		metrics:     opts.Metrics,
		newArtifact: opts.NewArtifact,
		logger:      logger,
	}
	if o.tracer == nil {
		o.tracer = observability.Tracer(nil)
	}
	if o.newArtifact == nil {
		timeout := opts.InvokeTimeout
		o.newArtifact = func(path string) Artifact {
			return plugins.NewBinary(path, timeout)
		}
	}
	return o
}

// run carries the state of one pipeline execution
type run struct {
	report   *verdict.Report
	selected map[verdict.Stage]bool
	state    State
	logger   logrus.FieldLogger
}

func (r *run) transition(to State) {
	r.logger.Debugf("State %s -> %s", r.state, to)
	r.state = to
}

// Run executes the selected stages against req.Binary. The returned error
// only reports an unusable request; plugin findings are in the report.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*verdict.Report, error) {
	if req.Binary == "" {
		return nil, ErrNoBinary
	}

	r := &run{
		report: &verdict.Report{
			RunID:     uuid.New().String(),
			Binary:    req.Binary,
			StartedAt: time.Now().UTC(),
		},
		selected: selectStages(req.Stages),
		state:    StateStart,
	}

	ctx, span := o.tracer.Start(ctx, "plugingate.run", trace.WithAttributes(
		attribute.String("plugingate.run_id", r.report.RunID),
		attribute.String("plugingate.binary", req.Binary),
	))
	defer span.End()

	r.logger = observability.WithTraceContext(ctx, o.logger.WithField("run_id", r.report.RunID))
	r.logger.Infof("Checking plugin %s", req.Binary)

	artifact := o.newArtifact(req.Binary)

	if o.runStatic(ctx, r, artifact, req.SourceDir) {
		o.runDynamic(ctx, r, artifact)
	}

	r.transition(StateDone)
	r.report.State = string(r.state)

	if o.metrics != nil {
		o.metrics.ObserveReport(r.report)
	}

	span.SetAttributes(
		attribute.String("plugingate.plugin", r.report.Plugin),
		attribute.Bool("plugingate.passed", r.report.Passed()),
	)
	if !r.report.Passed() {
		span.SetStatus(codes.Error, failedStages(r.report))
	}

	r.logger.WithField("passed", r.report.Passed()).Infof("Finished checking %s", req.Binary)
	return r.report, nil
}

// runStatic runs the selected static stages concurrently and reports whether
// the dynamic stages may run
func (o *Orchestrator) runStatic(ctx context.Context, r *run, artifact Artifact, sourceDir string) bool {
	stages := []struct {
		stage verdict.Stage
		next  State
		check func(ctx context.Context) verdict.Verdict
	}{
		{verdict.StageManifest, StateManifestChecked, func(ctx context.Context) verdict.Verdict {
			return o.checkers.Manifest.Check(ctx, artifact)
		}},
		{verdict.StageDependencies, StateDepsChecked, func(ctx context.Context) verdict.Verdict {
			if sourceDir == "" {
				return noSourceTree(verdict.StageDependencies)
			}
			return o.checkers.Dependencies.Audit(ctx, sourceDir)
		}},
		{verdict.StageSource, StateSourceChecked, func(ctx context.Context) verdict.Verdict {
			if sourceDir == "" {
				return noSourceTree(verdict.StageSource)
			}
			return o.checkers.Source.Check(ctx, sourceDir)
		}},
	}

	results := make([]*verdict.Verdict, len(stages))
	var mu sync.Mutex

	// Stage functions never return errors, so no sibling is ever cancelled
	var g errgroup.Group
	for i, s := range stages {
		if !r.selected[s.stage] {
			continue
		}
		i, s := i, s
		g.Go(func() error {
			v := o.runStage(ctx, r, s.stage, s.check)
			mu.Lock()
			results[i] = &v
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	passed := true
	for i, s := range stages {
		if v := results[i]; v != nil {
			r.report.Add(*v)
			if v.Failed() {
				passed = false
			}
			if s.stage == verdict.StageManifest {
				r.report.Plugin = evidenceValue(*v, "name")
			}
		}
		r.transition(s.next)
	}
	return passed
}

// runDynamic runs the sandbox and output stages in order, stopping at the
// first failure
func (o *Orchestrator) runDynamic(ctx context.Context, r *run, artifact Artifact) {
	if !r.selected[verdict.StageSandbox] && !r.selected[verdict.StageOutput] {
		return
	}

	if err := artifact.Stat(); err != nil {
		stage := verdict.StageSandbox
		if !r.selected[stage] {
			stage = verdict.StageOutput
		}
		v := verdict.Fail(stage, verdict.KindExecutionFailure, ReasonArtifactMissing,
			"plugin binary is not an executable regular file", err.Error())
		o.observe(r, v)
		r.report.Add(v)
		return
	}

	if r.selected[verdict.StageSandbox] {
		v := o.runStage(ctx, r, verdict.StageSandbox, func(ctx context.Context) verdict.Verdict {
			return o.checkers.Sandbox.Check(ctx, r.report.Binary)
		})
		r.report.Add(v)
		if v.Failed() {
			return
		}
	}
	r.transition(StateSandboxChecked)

	if r.selected[verdict.StageOutput] {
		v := o.runStage(ctx, r, verdict.StageOutput, func(ctx context.Context) verdict.Verdict {
			return o.checkers.Output.Check(ctx, artifact)
		})
		r.report.Add(v)
		if v.Failed() {
			return
		}
	}
	r.transition(StateOutputChecked)
}

// runStage wraps one check in a span, converts a panic into an execution
// failure and records the verdict
func (o *Orchestrator) runStage(ctx context.Context, r *run, stage verdict.Stage, check func(context.Context) verdict.Verdict) (v verdict.Verdict) {
	ctx, span := o.tracer.Start(ctx, "plugingate.stage."+string(stage),
		trace.WithAttributes(attribute.String("plugingate.stage", string(stage))))
	defer span.End()

	start := time.Now()
	logger := r.logger.WithField("stage", stage)
	logger.Debug("Stage started")

	defer func() {
		if err := observability.MustRecover(recover()); err != nil {
			logger.WithError(err).Error("Stage panicked")
			v = verdict.Fail(stage, verdict.KindExecutionFailure, ReasonStagePanicked,
				"the checker crashed", err.Error()).WithDuration(time.Since(start))
		}

		span.SetAttributes(
			attribute.String("plugingate.status", string(v.Status)),
			attribute.String("plugingate.reason", v.Reason),
		)
		if v.Failed() {
			span.SetStatus(codes.Error, v.Reason)
		}
		o.observe(r, v)
	}()

	return check(ctx)
}

func (o *Orchestrator) observe(r *run, v verdict.Verdict) {
	entry := r.logger.WithFields(logrus.Fields{
		"stage":  v.Stage,
		"status": v.Status,
	})
	switch v.Status {
	case verdict.StatusFail:
		entry.WithField("reason", v.Reason).Infof("Stage failed: %s", v.Message)
	case verdict.StatusSkipped:
		entry.WithField("reason", v.Reason).Warnf("Stage skipped: %s", v.Message)
	default:
		entry.Infof("Stage passed: %s", v.Message)
	}

	if o.metrics != nil {
		o.metrics.ObserveVerdict(v)
	}
}

func selectStages(stages []verdict.Stage) map[verdict.Stage]bool {
	if len(stages) == 0 {
		stages = verdict.AllStages
	}
	selected := make(map[verdict.Stage]bool, len(stages))
	for _, s := range stages {
		selected[s] = true
	}
	return selected
}

func noSourceTree(stage verdict.Stage) verdict.Verdict {
	return verdict.Skip(stage, ReasonNoSourceTree, "no plugin source tree given")
}

// evidenceValue finds a key=value evidence item
func evidenceValue(v verdict.Verdict, key string) string {
	for _, e := range v.Evidence {
		if value, ok := strings.CutPrefix(e, key+"="); ok {
			return value
		}
	}
	return ""
}

func failedStages(report *verdict.Report) string {
	var names []string
	for _, v := range report.Failures() {
		names = append(names, fmt.Sprintf("%s(%s)", v.Stage, v.Reason))
	}
	return strings.Join(names, ", ")
}
