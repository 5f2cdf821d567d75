package dependencies

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// maxListingLine bounds a single line of tool output
const maxListingLine = 1024 * 1024

// Dependency is one edge of a resolved dependency listing
type Dependency struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Line    string `json:"line"` // verbatim listing line, kept for evidence
}

// Identifier is the text matched against the dependency denylist: the name,
// followed by " v<version>" when the version is known
func (d Dependency) Identifier() string {
	if d.Version == "" {
		return d.Name
	}
	return d.Name + " v" + d.Version
}

// DependencyGraph is the ordered, non-deduplicated dependency listing of a
// plugin. A crate pulled in by several parents appears once per edge.
type DependencyGraph struct {
	Tool         string
	Dependencies []Dependency
}

// Len returns the number of edges in the graph
func (g *DependencyGraph) Len() int {
	return len(g.Dependencies)
}

// Occurrences counts how many edges lead to the named dependency
func (g *DependencyGraph) Occurrences(name string) int {
	n := 0
	for _, dep := range g.Dependencies {
		if dep.Name == name {
			n++
		}
	}
	return n
}

// parseCargoTree parses `cargo tree --prefix none` output, one crate per line:
//
//	reqwest v0.11.27
//	hyper v0.14.28 (*)
//	gongwen v0.1.0 (/src/gongwen)
func parseCargoTree(output []byte) ([]Dependency, error) {
	var deps []Dependency
	err := eachLine(output, func(line string) {
		fields := strings.Fields(line)
		dep := Dependency{Name: fields[0], Line: line}
		if len(fields) > 1 && strings.HasPrefix(fields[1], "v") {
			dep.Version = strings.TrimPrefix(fields[1], "v")
		}
		deps = append(deps, dep)
	})
	return deps, err
}

// parseGoModGraph parses `go mod graph` output, one edge per line:
//
//	example.com/plugin golang.org/x/net@v0.24.0
//
// The dependency is the right-hand module of the edge.
func parseGoModGraph(output []byte) ([]Dependency, error) {
	var deps []Dependency
	err := eachLine(output, func(line string) {
		fields := strings.Fields(line)
		target := fields[len(fields)-1]
		dep := Dependency{Name: target, Line: line}
		if i := strings.LastIndex(target, "@"); i > 0 {
			dep.Name = target[:i]
			dep.Version = strings.TrimPrefix(target[i+1:], "v")
		}
		deps = append(deps, dep)
	})
	return deps, err
}

// eachLine calls fn for every non-blank line. A truncated listing would hide
// edges, so an unreadable line is an error rather than the end of input.
func eachLine(output []byte, fn func(line string)) error {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 64*1024), maxListingLine)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fn(line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read dependency listing after line %d: %w", lineNo, err)
	}
	return nil
}
