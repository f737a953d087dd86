package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the on-disk catalog schema, accepted as YAML or JSON.
type File struct {
	Version   int        `json:"version" yaml:"version"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// LoadFile reads, parses, and validates a catalog file. Files ending in .json
// are parsed as JSON; everything else as YAML.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question catalog: %w", err)
	}
	file, err := decodeFile(path, data)
	if err != nil {
		return nil, err
	}
	switch file.Version {
	case 1:
	case 0:
		return nil, &ValidationError{Issues: []Issue{{Field: "version", Message: "is required"}}}
	default:
		return nil, &ValidationError{Issues: []Issue{{Field: "version", Message: fmt.Sprintf("unsupported version %d", file.Version)}}}
	}
	return New(file.Questions)
}

// strictDecoder is the part of the JSON and YAML decoders the loader needs.
type strictDecoder interface {
	Decode(v any) error
}

// decodeFile picks a decoder by extension, rejects unknown fields and
// requires the file to hold exactly one document.
func decodeFile(path string, data []byte) (File, error) {
	format := "yaml"
	var dec strictDecoder
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
		jd := json.NewDecoder(bytes.NewReader(data))
		jd.DisallowUnknownFields()
		dec = jd
	} else {
		yd := yaml.NewDecoder(bytes.NewReader(data))
		yd.KnownFields(true)
		dec = yd
	}

	var file File
	if err := dec.Decode(&file); err != nil {
		return File{}, fmt.Errorf("parse %s catalog: %w", format, err)
	}
	switch err := dec.Decode(&struct{}{}); {
	case err == nil:
		return File{}, fmt.Errorf("parse %s catalog: more than one document", format)
	case !errors.Is(err, io.EOF):
		return File{}, fmt.Errorf("parse %s catalog: trailing data: %w", format, err)
	}
	return file, nil
}
