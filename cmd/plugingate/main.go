package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/platinummonkey/plugingate/pkg/cli"
)

// Set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	rootCmd := cli.NewRootCommand(version)

	err := rootCmd.Execute()
	// Gate failures have already been reported with their evidence
	if err != nil && !errors.Is(err, cli.ErrGateFailed) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cli.ExitCode(err))
}
