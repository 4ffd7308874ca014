package conformance

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// documentSchema is the JSON Schema every conformance document must
// satisfy before it is unmarshalled.
const documentSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["expectation_type", "datasets"],
	"additionalProperties": false,
	"properties": {
		"expectation_type": {"type": "string", "minLength": 1},
		"datasets": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["data", "tests"],
				"additionalProperties": false,
				"properties": {
					"data": {
						"type": "object",
						"minProperties": 1,
						"additionalProperties": {"type": "array"}
					},
					"schemas": {
						"type": "object",
						"additionalProperties": {
							"type": "object",
							"additionalProperties": {"type": "string"}
						}
					},
					"tests": {
						"type": "array",
						"minItems": 1,
						"items": {
							"type": "object",
							"required": ["title", "in", "out"],
							"additionalProperties": false,
							"properties": {
								"title": {"type": "string", "minLength": 1},
								"in": {"type": "object"},
								"out": {"type": "object"},
								"exact_match_out": {"type": "boolean"},
								"only_for": {"type": "array", "items": {"type": "string"}},
								"suppress_test_for": {"type": "array", "items": {"type": "string"}}
							}
						}
					}
				}
			}
		}
	}
}`

var compiledSchema = jsonschema.MustCompileString("conformance-document.json", documentSchema)

// ParseDocument validates raw JSON against the document schema and
// unmarshals it.
func ParseDocument(data []byte) (*Document, error) {
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := compiledSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("schema violation: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	// Column lengths must agree within each dataset; the schema cannot
	// express this.
	for i, ds := range doc.Datasets {
		rows := -1
		for col, values := range ds.Data {
			if rows == -1 {
				rows = len(values)
				continue
			}
			if len(values) != rows {
				return nil, fmt.Errorf("dataset %d: column %q has %d rows, expected %d",
					i, col, len(values), rows)
			}
		}
	}
	return &doc, nil
}

// LoadFile reads and parses one conformance document.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		short := path
		if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
			short = path[idx+1:]
		}
		return nil, fmt.Errorf("%s: %w", short, err)
	}
	return doc, nil
}
