package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadQuery reads a query document from disk and returns it as a JSON object.
// Files ending in .yaml or .yml are decoded as YAML; anything else as JSON.
// The document content is not altered beyond the format conversion.
func LoadQuery(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read query file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseQueryYAML(data)
	default:
		return ParseQueryJSON(data)
	}
}

// ParseQueryJSON checks that data is a single JSON object and returns it compacted.
func ParseQueryJSON(data []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("query must be a JSON object")
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, fmt.Errorf("invalid query JSON: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, fmt.Errorf("invalid query JSON: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseQueryYAML converts a YAML mapping into the equivalent JSON object.
func ParseQueryYAML(data []byte) (json.RawMessage, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid query YAML: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("query must be a mapping")
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("query YAML is not representable as JSON: %w", err)
	}
	return out, nil
}

// QueryDatasetID returns the "datasetId" field of a query document, if any.
func QueryDatasetID(query json.RawMessage) string {
	var probe struct {
		DatasetID string `json:"datasetId"`
	}
	if err := json.Unmarshal(query, &probe); err != nil {
		return ""
	}
	return probe.DatasetID
}
