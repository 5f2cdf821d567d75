package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/platinummonkey/plugingate/pkg/observability"
	"github.com/platinummonkey/plugingate/pkg/policy"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// DefaultDebounce is how long the tree must stay quiet before a rerun
const DefaultDebounce = 500 * time.Millisecond

func newWatchCommand(root *rootOptions) *cobra.Command {
	opts := &checkOptions{}
	var (
		debounce time.Duration
		schedule string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rerun check whenever the plugin binary or source tree changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, err := newGate(ctx, root, opts, cmd)
			if err != nil {
				return err
			}
			defer g.Close()

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("failed to create watcher: %w", err)
			}
			defer watcher.Close()

			binary, err := filepath.Abs(opts.binary)
			if err != nil {
				return err
			}
			// Build tools replace binaries by rename, so watch the directory
			if err := watcher.Add(filepath.Dir(binary)); err != nil {
				return fmt.Errorf("failed to watch %s: %w", filepath.Dir(binary), err)
			}
			if opts.source != "" {
				if err := setupWatcher(watcher, opts.source, policy.Default()); err != nil {
					return fmt.Errorf("failed to watch %s: %w", opts.source, err)
				}
			}

			// File events and the schedule may fire together
			var mu sync.Mutex
			run := func() {
				mu.Lock()
				defer mu.Unlock()
				defer observability.RecoverPanic(g.logger, "watch run")
				if _, err := g.check(ctx, req, cmd.OutOrStdout(), cmd.ErrOrStderr()); err != nil {
					g.logger.Errorf("Check failed to run: %v", err)
				}
			}

			if schedule != "" {
				c, err := startSchedule(schedule, run, g.logger)
				if err != nil {
					return usageError("%v", err)
				}
				defer c.Stop()
			}

			run()
			g.logger.Infof("Watching %s for changes", describeTargets(binary, opts.source))
			return watchLoop(ctx, watcher, debounce, binary, run, g.logger)
		},
	}

	opts.register(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", DefaultDebounce, "quiet period before rerunning")
	cmd.Flags().StringVar(&schedule, "schedule", "", "also rerun on a cron schedule, e.g. \"@daily\" or \"0 3 * * *\"")
	return cmd
}

// startSchedule reruns the gate on a cron schedule in addition to file events
func startSchedule(spec string, run func(), logger logrus.FieldLogger) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		logger.Info("Running scheduled check")
		run()
	}); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	c.Start()
	logger.Infof("Scheduled checks: %s", spec)
	return c, nil
}

// setupWatcher recursively adds the source directories, skipping build output
func setupWatcher(watcher *fsnotify.Watcher, root string, p *policy.Policy) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && p.IsSkippedDir(info.Name()) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// watchLoop calls run once events have been quiet for debounce. Events in
// the binary's directory only count when they name the binary itself.
func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, debounce time.Duration, binary string, run func(), logger logrus.FieldLogger) error {
	return debounceEvents(ctx, watcher.Events, watcher.Errors, debounce, func(event fsnotify.Event) bool {
		if filepath.Dir(event.Name) == filepath.Dir(binary) && event.Name != binary {
			return false
		}
		// New directories in the source tree need watching too
		if event.Op&fsnotify.Create != 0 {
			if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
				if err := watcher.Add(event.Name); err != nil {
					logger.Warnf("Error watching new directory %s: %v", event.Name, err)
				}
			}
		}
		return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Chmod) != 0
	}, run, logger)
}

// debounceEvents coalesces relevant events and calls run after each quiet
// period. It returns when ctx is done or the event channel closes.
func debounceEvents(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, debounce time.Duration,
	relevant func(fsnotify.Event) bool, run func(), logger logrus.FieldLogger) error {

	// Reset never delivers a stale tick on Go 1.23+ timers
	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			logger.Debugf("Modified: %s", event.Name)
			timer.Reset(debounce)
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			logger.Warnf("Watcher error: %v", err)
		case <-timer.C:
			run()
		}
	}
}

func describeTargets(binary, source string) string {
	if source == "" {
		return binary
	}
	return binary + " and " + source
}
