package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/plugingate/pkg/observability"
	"github.com/platinummonkey/plugingate/pkg/sandbox"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable
const EnvPrefix = "PLUGINGATE"

// Config holds all gate configuration
type Config struct {
	Log      LogConfig
	Timeouts TimeoutConfig
	Sandbox  SandboxConfig
	History  HistoryConfig
	Metrics  MetricsConfig
	Tracing  observability.TracingConfig
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string
	Format string
}

// TimeoutConfig bounds every subprocess the gate starts
type TimeoutConfig struct {
	Invoke  time.Duration // --manifest, --example, --version and the render round trip
	Inspect time.Duration // dependency listing
	Sandbox time.Duration // sandboxed execution
}

// SandboxConfig selects isolation strategies
type SandboxConfig struct {
	Strategies  []string
	DockerImage string
}

// HistoryConfig locates the run history database, a SQLite file path or a
// postgres:// URL; empty disables recording
type HistoryConfig struct {
	Path string
}

// MetricsConfig locates the node-exporter textfile; empty disables writing
type MetricsConfig struct {
	Textfile string
}

// Default values
const (
	DefaultLogLevel       = "info"
	DefaultInvokeTimeout  = 10 * time.Second
	DefaultInspectTimeout = 2 * time.Minute
	DefaultSandboxTimeout = 10 * time.Second
)

// LoadConfig reads configPath when given, then applies environment
// overrides and validates the result
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Timeouts: TimeoutConfig{
			Invoke:  v.GetDuration("timeouts.invoke"),
			Inspect: v.GetDuration("timeouts.inspect"),
			Sandbox: v.GetDuration("timeouts.sandbox"),
		},
		Sandbox: SandboxConfig{
			Strategies:  getStringList(v, "sandbox.strategies"),
			DockerImage: v.GetString("sandbox.docker_image"),
		},
		History: HistoryConfig{
			Path: v.GetString("history.path"),
		},
		Metrics: MetricsConfig{
			Textfile: v.GetString("metrics.textfile"),
		},
		Tracing: observability.TracingConfig{
			Endpoint: v.GetString("tracing.endpoint"),
			Insecure: v.GetBool("tracing.insecure"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration, ignoring files and environment
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: observability.FormatText,
		},
		Timeouts: TimeoutConfig{
			Invoke:  DefaultInvokeTimeout,
			Inspect: DefaultInspectTimeout,
			Sandbox: DefaultSandboxTimeout,
		},
		Sandbox: SandboxConfig{
			Strategies:  append([]string(nil), sandbox.DefaultStrategies...),
			DockerImage: sandbox.DefaultDockerImage,
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", observability.FormatText)
	v.SetDefault("timeouts.invoke", DefaultInvokeTimeout)
	v.SetDefault("timeouts.inspect", DefaultInspectTimeout)
	v.SetDefault("timeouts.sandbox", DefaultSandboxTimeout)
	v.SetDefault("sandbox.strategies", sandbox.DefaultStrategies)
	v.SetDefault("sandbox.docker_image", sandbox.DefaultDockerImage)
	v.SetDefault("history.path", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", false)
}

// getStringList accepts a YAML list or a comma separated string, the form
// lists take in environment variables
func getStringList(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Timeouts.Invoke <= 0 {
		return fmt.Errorf("timeouts.invoke must be positive, got %s", c.Timeouts.Invoke)
	}
	if c.Timeouts.Inspect <= 0 {
		return fmt.Errorf("timeouts.inspect must be positive, got %s", c.Timeouts.Inspect)
	}
	if c.Timeouts.Sandbox <= 0 {
		return fmt.Errorf("timeouts.sandbox must be positive, got %s", c.Timeouts.Sandbox)
	}

	switch c.Log.Format {
	case observability.FormatText, observability.FormatJSON:
	default:
		return fmt.Errorf("log.format must be %q or %q, got %q", observability.FormatText, observability.FormatJSON, c.Log.Format)
	}

	seen := make(map[string]bool)
	for _, s := range c.Sandbox.Strategies {
		switch s {
		case sandbox.StrategySandboxExec, sandbox.StrategyUnshare, sandbox.StrategyDocker:
		default:
			return fmt.Errorf("%w: %q", sandbox.ErrUnknownStrategy, s)
		}
		if seen[s] {
			return fmt.Errorf("sandbox strategy %q listed twice", s)
		}
		seen[s] = true
	}

	return nil
}
