package plugins

import "context"

// Manifest is the self-description a plugin prints for --manifest. Only the
// structural and security-relevant fields are modelled; anything else in the
// document is ignored.
type Manifest struct {
	Name        string `json:"name" yaml:"name" validate:"required,identifier"` // Install directory name, e.g. "gongwen"
	Category    string `json:"category" yaml:"category"`                         // Display category, at most 20 characters
	Version     string `json:"version" yaml:"version" validate:"required"`       // Reported again by --version
	Description string `json:"description" yaml:"description"`
}

// Contract is the fixed CLI surface every template plugin exposes
type Contract interface {
	// Manifest returns the raw --manifest output
	Manifest(ctx context.Context) ([]byte, error)

	// Example returns the raw --example output
	Example(ctx context.Context) ([]byte, error)

	// Version returns the --version output
	Version(ctx context.Context) (string, error)

	// Render feeds input on stdin to the default invocation and returns stdout
	Render(ctx context.Context, input []byte) ([]byte, error)
}

// Flags of the plugin CLI contract
const (
	FlagManifest = "--manifest"
	FlagExample  = "--example"
	FlagVersion  = "--version"
)
