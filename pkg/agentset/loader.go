package agentset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/harun/relay/pkg/orchestrator"
)

// Format is the encoding of an agent set document
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported agent set format: %s (supported: .json, .yaml, .yml)", filepath.Ext(path))
	}
}

// Loader reads and validates agent set definitions
type Loader struct {
	logger orchestrator.Logger
	schema *gojsonschema.Schema
}

// NewLoader creates a loader; logger may be nil
func NewLoader(logger orchestrator.Logger) (*Loader, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(Schema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile agent set schema: %w", err)
	}
	return &Loader{logger: logger, schema: schema}, nil
}

// LoadFile loads a definition from a JSON or YAML file
func (l *Loader) LoadFile(path string) (*Definition, error) {
	if path == "" {
		return nil, errors.New("agent set file path is required")
	}

	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("agent set file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read agent set file: %w", err)
	}

	def, err := l.Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if l.logger != nil {
		l.logger.Info("Loaded agent set",
			"path", path,
			"count", len(def.Agents))
	}
	return def, nil
}

// Parse decodes, schema-checks and validates a definition
func (l *Loader) Parse(data []byte, format Format) (*Definition, error) {
	var doc interface{}
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON agent set: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML agent set: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported agent set format: %s", format)
	}

	if err := l.validateSchema(doc); err != nil {
		return nil, err
	}

	var def Definition
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("failed to decode agent set: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("failed to decode agent set: %w", err)
		}
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}

	if l.logger != nil {
		l.logger.Debug("Validated agent set", "count", len(def.Agents))
	}
	return &def, nil
}

func (l *Loader) validateSchema(doc interface{}) error {
	result, err := l.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("schema validation errors: %s", strings.Join(msgs, "; "))
	}
	return nil
}
