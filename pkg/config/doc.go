// Package config loads gate settings from an optional YAML file and
// PLUGINGATE_ environment variables.
//
// Only operational settings live here: timeouts, sandbox strategy order,
// logging, history and metrics destinations. The denylists are compiled
// into the policy package and cannot be changed by configuration.
//
// Environment variables map onto keys with dots replaced by underscores,
// e.g. PLUGINGATE_TIMEOUTS_SANDBOX=20s or PLUGINGATE_SANDBOX_STRATEGIES=unshare,docker.
package config
