package dependencies

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCargoTree(t *testing.T) {
	output := []byte(`gongwen v0.1.0 (/src/gongwen)
clap v4.5.4
clap_builder v4.5.2

pulldown-cmark v0.10.3
reqwest v0.11.27
hyper v0.14.28
hyper v0.14.28 (*)
`)

	deps, err := parseCargoTree(output)
	require.NoError(t, err)
	require.Len(t, deps, 7)

	assert.Equal(t, Dependency{Name: "gongwen", Version: "0.1.0", Line: "gongwen v0.1.0 (/src/gongwen)"}, deps[0])
	assert.Equal(t, "gongwen v0.1.0", deps[0].Identifier())
	assert.Equal(t, "reqwest", deps[4].Name)
	assert.Equal(t, "0.11.27", deps[4].Version)
	assert.Equal(t, "hyper v0.14.28 (*)", deps[6].Line)

	graph := &DependencyGraph{Tool: "cargo", Dependencies: deps}
	assert.Equal(t, 7, graph.Len())
	assert.Equal(t, 2, graph.Occurrences("hyper"), "repeated edges are kept")
	assert.Equal(t, 0, graph.Occurrences("tokio"))
}

func TestParseGoModGraph(t *testing.T) {
	output := []byte(`example.com/plugin github.com/yuin/goldmark@v1.7.4
example.com/plugin golang.org/x/net@v0.24.0
golang.org/x/net@v0.24.0 golang.org/x/text@v0.14.0
`)

	deps, err := parseGoModGraph(output)
	require.NoError(t, err)
	require.Len(t, deps, 3)

	assert.Equal(t, "github.com/yuin/goldmark", deps[0].Name)
	assert.Equal(t, "1.7.4", deps[0].Version)
	assert.Equal(t, "golang.org/x/text", deps[2].Name)
	assert.Equal(t, "golang.org/x/net@v0.24.0 golang.org/x/text@v0.14.0", deps[2].Line)
	assert.Equal(t, "golang.org/x/text v0.14.0", deps[2].Identifier())
}

func TestParseEmpty(t *testing.T) {
	deps, err := parseCargoTree(nil)
	require.NoError(t, err)
	assert.Empty(t, deps)

	deps, err = parseGoModGraph([]byte("\n\n"))
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestParse_OverlongLine(t *testing.T) {
	output := []byte("clap v4.5.4\n" + strings.Repeat("a", maxListingLine+1) + "\nreqwest v0.11.27\n")

	_, err := parseCargoTree(output)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after line 1")

	_, err = parseGoModGraph(output)
	require.Error(t, err)
}

func TestDependency_IdentifierWithoutVersion(t *testing.T) {
	assert.Equal(t, "example.com/plugin", Dependency{Name: "example.com/plugin"}.Identifier())
}
