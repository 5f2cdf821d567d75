package sandbox

import (
	"errors"

	"github.com/platinummonkey/plugingate/pkg/process"
)

var (
	// ErrDockerNotAvailable is returned when no Docker daemon answers
	ErrDockerNotAvailable = errors.New("docker is not available")

	// ErrImagePullFailed is returned when the sandbox image cannot be pulled
	ErrImagePullFailed = errors.New("failed to pull docker image")

	// ErrContainerFailed is returned when the container cannot be run
	ErrContainerFailed = errors.New("container execution failed")

	// ErrUnknownStrategy is returned for a strategy name with no runner
	ErrUnknownStrategy = errors.New("unknown sandbox strategy")

	// ErrTimeout, ErrNonZeroExit and ErrOutputLimit are shared with local
	// subprocess runs so callers can test any strategy's error with errors.Is
	ErrTimeout     = process.ErrTimeout
	ErrNonZeroExit = process.ErrNonZeroExit
	ErrOutputLimit = process.ErrOutputLimit
)
