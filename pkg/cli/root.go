package cli

import (
	"github.com/platinummonkey/plugingate/pkg/config"
	"github.com/platinummonkey/plugingate/pkg/observability"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// rootOptions are the flags shared by every subcommand
type rootOptions struct {
	configFile string
	logLevel   string
	logFormat  string
	version    string
}

// NewRootCommand creates the root command
func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{version: version}

	rootCmd := &cobra.Command{
		Use:           "plugingate",
		Short:         "Security gate for document converter plugins",
		Long:          "plugingate checks a converter plugin's manifest, dependencies and source, then runs it with network access denied and validates what it renders.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "config file path (YAML)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format (text, json)")

	rootCmd.AddCommand(
		newCheckCommand(opts),
		newWatchCommand(opts),
		newPolicyCommand(),
		newHistoryCommand(opts),
		newVersionCommand(opts),
	)

	return rootCmd
}

// load reads configuration and applies flag overrides
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadConfig(o.configFile)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
		if err := cfg.Validate(); err != nil {
			return nil, nil, usageError("%v", err)
		}
	}
	cfg.Tracing.ServiceVersion = o.version

	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	return cfg, logger, nil
}
