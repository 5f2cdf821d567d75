package dependencies

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/platinummonkey/plugingate/pkg/process"
)

// DependencyInspector queries a build tool for a plugin's fully resolved
// dependency listing. Implementations return an error wrapping
// process.ErrToolUnavailable when the tool is not installed.
type DependencyInspector interface {
	// Name identifies the build tool, e.g. "cargo"
	Name() string

	// Detect reports whether dir is a project this inspector understands
	Detect(dir string) bool

	// Inspect returns every dependency edge, repeats included
	Inspect(ctx context.Context, dir string) (*DependencyGraph, error)
}

// CargoInspector lists Rust dependencies through `cargo tree`
type CargoInspector struct {
	Path    string
	Timeout time.Duration
}

// NewCargoInspector creates an inspector using the cargo binary on PATH
func NewCargoInspector(timeout time.Duration) *CargoInspector {
	return &CargoInspector{Path: "cargo", Timeout: timeout}
}

func (c *CargoInspector) Name() string { return "cargo" }

func (c *CargoInspector) Detect(dir string) bool {
	return fileExists(filepath.Join(dir, "Cargo.toml"))
}

// Inspect runs `cargo tree` without deduplication so that a crate reachable
// through several parents is listed under each of them
func (c *CargoInspector) Inspect(ctx context.Context, dir string) (*DependencyGraph, error) {
	result, err := process.Run(ctx, process.Command{
		Path:    c.Path,
		Args:    []string{"tree", "--edges", "normal,build", "--prefix", "none", "--no-dedupe"},
		Dir:     dir,
		Timeout: c.Timeout,
	})
	if err != nil {
		return nil, queryError(c.Name(), result, err)
	}
	deps, err := parseCargoTree(result.Stdout)
	if err != nil {
		return nil, fmt.Errorf("%s dependency query failed: %w", c.Name(), err)
	}
	return &DependencyGraph{Tool: c.Name(), Dependencies: deps}, nil
}

// GoModInspector lists Go module dependencies through `go mod graph`, which
// prints every requirement edge of the build list
type GoModInspector struct {
	Path    string
	Timeout time.Duration
}

// NewGoModInspector creates an inspector using the go binary on PATH
func NewGoModInspector(timeout time.Duration) *GoModInspector {
	return &GoModInspector{Path: "go", Timeout: timeout}
}

func (g *GoModInspector) Name() string { return "go" }

func (g *GoModInspector) Detect(dir string) bool {
	return fileExists(filepath.Join(dir, "go.mod"))
}

func (g *GoModInspector) Inspect(ctx context.Context, dir string) (*DependencyGraph, error) {
	result, err := process.Run(ctx, process.Command{
		Path:    g.Path,
		Args:    []string{"mod", "graph"},
		Dir:     dir,
		Timeout: g.Timeout,
	})
	if err != nil {
		return nil, queryError(g.Name(), result, err)
	}
	deps, err := parseGoModGraph(result.Stdout)
	if err != nil {
		return nil, fmt.Errorf("%s dependency query failed: %w", g.Name(), err)
	}
	return &DependencyGraph{Tool: g.Name(), Dependencies: deps}, nil
}

// DefaultInspectors returns the built-in inspectors in detection order
func DefaultInspectors(timeout time.Duration) []DependencyInspector {
	return []DependencyInspector{
		NewCargoInspector(timeout),
		NewGoModInspector(timeout),
	}
}

func queryError(tool string, result *process.Result, err error) error {
	if result != nil && len(result.Stderr) > 0 {
		return fmt.Errorf("%s dependency query failed: %w: %s", tool, err, process.Excerpt(result.Stderr, 512))
	}
	return fmt.Errorf("%s dependency query failed: %w", tool, err)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
