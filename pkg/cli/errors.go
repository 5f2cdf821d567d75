package cli

import (
	"errors"
	"fmt"
)

// Exit codes
const (
	ExitPass  = 0
	ExitFail  = 1
	ExitError = 2
)

// ErrGateFailed is returned when a checked plugin failed at least one stage.
// The failure has already been reported.
var ErrGateFailed = errors.New("plugin failed the gate")

// ExitCode maps a command error onto the process exit status
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitPass
	case errors.Is(err, ErrGateFailed):
		return ExitFail
	default:
		return ExitError
	}
}

// usageError marks errors caused by bad flags or arguments
func usageError(format string, args ...interface{}) error {
	return fmt.Errorf("invalid usage: "+format, args...)
}
