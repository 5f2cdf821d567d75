package plugins

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrInvalidManifest is returned when the manifest is not a single JSON document
var ErrInvalidManifest = errors.New("invalid manifest document")

// ParseManifest decodes exactly one JSON document. Trailing data after the
// document is rejected.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrInvalidManifest)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	var manifest Manifest
	if err := dec.Decode(&manifest); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after document", ErrInvalidManifest)
	}

	return &manifest, nil
}
