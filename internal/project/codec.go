package project

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"pmt/internal/fileutil"
	"pmt/internal/services"
)

// FormatVersion is the serialized document version written by Marshal.
const FormatVersion = 1

type document struct {
	FormatVersion int `json:"format_version"`
	*Project
}

// Marshal validates p and encodes it as an indented JSON document.
func Marshal(p *Project) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(document{FormatVersion: FormatVersion, Project: p}); err != nil {
		return nil, services.Wrap(services.ErrSchema, "project", "serialize", "", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes and validates a serialized project. Unknown fields are rejected.
func Unmarshal(data []byte) (*Project, error) {
	doc := document{Project: &Project{}}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, services.Wrap(services.ErrSchema, "project", "deserialize", "", err)
	}
	if dec.More() {
		return nil, services.Wrap(services.ErrSchema, "project", "deserialize", "trailing data after document", nil)
	}
	if doc.FormatVersion != FormatVersion {
		return nil, services.Wrap(services.ErrSchema, "project", "deserialize",
			fmt.Sprintf("unsupported format_version %d (want %d)", doc.FormatVersion, FormatVersion), nil)
	}
	if err := doc.Project.Validate(); err != nil {
		return nil, err
	}
	return doc.Project, nil
}

// WriteFile serializes p to path atomically.
func WriteFile(path string, p *Project) error {
	data, err := Marshal(p)
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write project file %s: %w", path, err)
	}
	return nil
}

// ReadFile loads a serialized project. A missing file reports services.ErrSourceNotFound.
func ReadFile(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrSourceNotFound, "project", "read", path, err)
		}
		return nil, fmt.Errorf("read project file %s: %w", path, err)
	}
	return Unmarshal(data)
}
