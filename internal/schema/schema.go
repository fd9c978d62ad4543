// Package schema validates tables against declarative schema descriptors.
//
// A descriptor declares typed fields with optional numeric bounds and date
// formats, the fields that must be present and non-null, and an ordered
// primary key. Descriptors are JSON or YAML documents of the form
//
//	{"fields": {"<name>": {"dtype": "int", "min": 1}}, "required": ["<name>"], "primaryKey": ["<name>"]}
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported field dtypes.
const (
	DTypeString = "string"
	DTypeInt    = "int"
	DTypeFloat  = "float"
	DTypeDate   = "date"
)

// Field describes one column's type and constraints.
type Field struct {
	DType  string   `json:"dtype" yaml:"dtype"`
	Min    *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max    *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Format string   `json:"format,omitempty" yaml:"format,omitempty"`
}

// NamedField pairs a field with its column name.
type NamedField struct {
	Name string
	Field
}

// Fields is an ordered field list. It decodes from a JSON or YAML mapping
// and keeps the document's key order so reports are deterministic.
type Fields []NamedField

// Schema is a parsed descriptor.
type Schema struct {
	Fields     Fields   `json:"fields" yaml:"fields"`
	Required   []string `json:"required" yaml:"required"`
	PrimaryKey []string `json:"primaryKey" yaml:"primaryKey"`
}

// Load reads a descriptor, choosing the decoder from the file extension:
// .yaml and .yml are YAML, everything else JSON.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrSchemaLoad, path, err)
	}

	var s Schema
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &s)
	default:
		err = json.Unmarshal(data, &s)
	}
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrSchemaLoad, path, err)
	}
	if len(s.Fields) == 0 {
		return nil, fmt.Errorf("%w %s: no fields declared", ErrSchemaLoad, path)
	}

	return &s, nil
}

// Lookup returns the field declared under name.
func (f Fields) Lookup(name string) (Field, bool) {
	for _, nf := range f {
		if nf.Name == name {
			return nf.Field, true
		}
	}
	return Field{}, false
}

// UnmarshalJSON decodes a JSON object into fields in key order.
func (f *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("fields must be an object")
	}

	out := make(Fields, 0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)

		var field Field
		if err := dec.Decode(&field); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		out = append(out, NamedField{Name: name, Field: field})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*f = out
	return nil
}

// UnmarshalYAML decodes a YAML mapping into fields in key order.
func (f *Fields) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: fields must be a mapping", node.Line)
	}

	out := make(Fields, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value

		var field Field
		if err := node.Content[i+1].Decode(&field); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		out = append(out, NamedField{Name: name, Field: field})
	}

	*f = out
	return nil
}
