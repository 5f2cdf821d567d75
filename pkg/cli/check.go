package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/platinummonkey/plugingate/pkg/config"
	"github.com/platinummonkey/plugingate/pkg/history"
	"github.com/platinummonkey/plugingate/pkg/observability"
	"github.com/platinummonkey/plugingate/pkg/pipeline"
	"github.com/platinummonkey/plugingate/pkg/policy"
	"github.com/platinummonkey/plugingate/pkg/report"
	"github.com/platinummonkey/plugingate/pkg/verdict"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// checkOptions are the flags of check and watch
type checkOptions struct {
	binary          string
	source          string
	stages          string
	format          string
	historyPath     string
	metricsTextfile string
}

func (o *checkOptions) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&o.binary, "binary", "b", "", "path to the compiled plugin (required)")
	flags.StringVarP(&o.source, "source", "s", "", "plugin source tree; dependency and source stages are skipped without it")
	flags.StringVar(&o.stages, "stages", "", "comma separated stages to run (default all: "+stageNames()+")")
	flags.StringVarP(&o.format, "format", "f", report.FormatText, "report format (text, json, yaml)")
	flags.StringVar(&o.historyPath, "history", "", "record the run in this SQLite file or postgres:// database")
	flags.StringVar(&o.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file")
	_ = cmd.MarkFlagRequired("binary")
}

func (o *checkOptions) request() (pipeline.Request, error) {
	if err := report.ValidateFormat(o.format); err != nil {
		return pipeline.Request{}, usageError("%v", err)
	}
	stages, err := parseStages(o.stages)
	if err != nil {
		return pipeline.Request{}, usageError("%v", err)
	}
	return pipeline.Request{
		Binary:    o.binary,
		SourceDir: o.source,
		Stages:    stages,
	}, nil
}

func newCheckCommand(root *rootOptions) *cobra.Command {
	opts := &checkOptions{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run the gate against a plugin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request()
			if err != nil {
				return err
			}

			g, err := newGate(cmd.Context(), root, opts, cmd)
			if err != nil {
				return err
			}
			defer g.Close()

			rep, err := g.check(cmd.Context(), req, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if !rep.Passed() {
				return ErrGateFailed
			}
			return nil
		},
	}

	opts.register(cmd)
	return cmd
}

// gate wires configuration, checkers and sinks for one or more runs
type gate struct {
	cfg          *config.Config
	format       string
	logger       logrus.FieldLogger
	orchestrator *pipeline.Orchestrator
	checkers     pipeline.Checkers
	registry     *prometheus.Registry
	metrics      *observability.Metrics
	textfile     string
	store        *history.Store
	tp           *sdktrace.TracerProvider
}

func newGate(ctx context.Context, root *rootOptions, opts *checkOptions, cmd *cobra.Command) (*gate, error) {
	cfg, logger, err := root.load(cmd)
	if err != nil {
		return nil, err
	}
	if opts.historyPath != "" {
		cfg.History.Path = opts.historyPath
	}
	if opts.metricsTextfile != "" {
		cfg.Metrics.Textfile = opts.metricsTextfile
	}

	g := &gate{
		cfg:      cfg,
		format:   opts.format,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		textfile: cfg.Metrics.Textfile,
	}
	g.metrics = observability.NewMetrics(g.registry)

	g.tp, err = observability.InitTracing(ctx, cfg.Tracing)
	if err != nil {
		return nil, err
	}

	g.checkers, err = pipeline.DefaultCheckers(policy.Default(), cfg, logger)
	if err != nil {
		g.Close()
		return nil, err
	}

	g.orchestrator = pipeline.NewOrchestrator(g.checkers, pipeline.Options{
		InvokeTimeout: cfg.Timeouts.Invoke,
		Tracer:        observability.Tracer(g.tp),
		Metrics:       g.metrics,
	}, logger)

	if cfg.History.Path != "" {
		g.store, err = history.Open(ctx, cfg.History.Path)
		if err != nil {
			g.Close()
			return nil, err
		}
	}

	return g, nil
}

// check runs the pipeline once, prints the report to out and failing
// evidence to errOut, then records history and metrics
func (g *gate) check(ctx context.Context, req pipeline.Request, out, errOut io.Writer) (*verdict.Report, error) {
	rep, err := g.orchestrator.Run(ctx, req)
	if err != nil {
		return nil, usageError("%v", err)
	}

	if err := report.Write(out, g.format, rep); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}
	if err := report.WriteEvidence(errOut, rep); err != nil {
		return nil, fmt.Errorf("failed to write evidence: %w", err)
	}

	if g.store != nil {
		if err := g.store.Record(ctx, rep); err != nil {
			g.logger.Errorf("Failed to record run %s: %v", rep.RunID, err)
		}
	}
	if g.textfile != "" {
		if err := g.metrics.WriteTextfile(g.registry, g.textfile); err != nil {
			g.logger.Errorf("Failed to write metrics: %v", err)
		}
	}

	return rep, nil
}

// Close releases the history database and sandbox clients and flushes spans
func (g *gate) Close() {
	if err := g.checkers.Close(); err != nil {
		g.logger.Warnf("Failed to release checkers: %v", err)
	}
	if g.store != nil {
		if err := g.store.Close(); err != nil {
			g.logger.Warnf("Failed to close history database: %v", err)
		}
	}
	if err := observability.ShutdownTracing(context.Background(), g.tp); err != nil {
		g.logger.Warnf("Failed to flush traces: %v", err)
	}
}

func parseStages(list string) ([]verdict.Stage, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}

	var stages []verdict.Stage
	seen := make(map[verdict.Stage]bool)
	for _, name := range strings.Split(list, ",") {
		stage, err := verdict.ParseStage(name)
		if err != nil {
			return nil, err
		}
		if !seen[stage] {
			seen[stage] = true
			stages = append(stages, stage)
		}
	}
	return stages, nil
}

func stageNames() string {
	names := make([]string, 0, len(verdict.AllStages))
	for _, s := range verdict.AllStages {
		names = append(names, string(s))
	}
	return strings.Join(names, ",")
}
