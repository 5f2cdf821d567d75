package plugins

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/platinummonkey/plugingate/pkg/process"
)

// ErrArtifactMissing is returned when the plugin binary does not exist or is
// not an executable regular file
var ErrArtifactMissing = errors.New("plugin artifact missing")

// Binary invokes a compiled plugin through its CLI contract
type Binary struct {
	Path    string
	Timeout time.Duration
}

// NewBinary creates a contract client for the executable at path
func NewBinary(path string, timeout time.Duration) *Binary {
	return &Binary{Path: path, Timeout: timeout}
}

// Stat verifies the artifact exists and is executable
func (b *Binary) Stat() error {
	info, err := os.Stat(b.Path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArtifactMissing, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrArtifactMissing, b.Path)
	}
	if info.Mode().Perm()&0111 == 0 {
		return fmt.Errorf("%w: %s is not executable", ErrArtifactMissing, b.Path)
	}
	return nil
}

// Manifest runs the plugin with --manifest
func (b *Binary) Manifest(ctx context.Context) ([]byte, error) {
	return b.invoke(ctx, nil, FlagManifest)
}

// Example runs the plugin with --example
func (b *Binary) Example(ctx context.Context) ([]byte, error) {
	return b.invoke(ctx, nil, FlagExample)
}

// Version runs the plugin with --version
func (b *Binary) Version(ctx context.Context) (string, error) {
	out, err := b.invoke(ctx, nil, FlagVersion)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Render pipes input through the plugin's default invocation
func (b *Binary) Render(ctx context.Context, input []byte) ([]byte, error) {
	if input == nil {
		input = []byte{}
	}
	return b.invoke(ctx, input)
}

func (b *Binary) invoke(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	result, err := process.Run(ctx, process.Command{
		Path:    b.Path,
		Args:    args,
		Stdin:   stdin,
		Timeout: b.Timeout,
	})
	if err != nil {
		if result != nil && len(result.Stderr) > 0 {
			return nil, fmt.Errorf("%w: %s", err, process.Excerpt(result.Stderr, 512))
		}
		return nil, err
	}
	return result.Stdout, nil
}
