// Package schema loads the declared entry types used for promotion
// scoring. The schema is an ordered YAML list of type declarations.
package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Type is one declared entry type.
type Type struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// Schema is the ordered list of declared types. Order matters:
// promotion scoring breaks ties in favor of earlier types.
type Schema struct {
	Types []Type `yaml:"types" json:"types"`
}

// Load reads a schema file. A missing file yields an empty schema.
func Load(path string) (*Schema, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Schema{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	var s Schema
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return &s, nil
}

// Save writes the schema back to disk.
func (s *Schema) Save(path string) error {
	b, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Has reports whether a type with the given name is declared.
func (s *Schema) Has(name string) bool {
	for _, t := range s.Types {
		if t.Name == name {
			return true
		}
	}
	return false
}
