package schema

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	content := `types:
  - name: recipe
    description: cooking instructions listing ingredients
  - name: contact
    description: a person with phone or email details
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write schema: %v", err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(s.Types) != 2 {
		t.Fatalf("expected 2 types, got %d", len(s.Types))
	}
	if s.Types[0].Name != "recipe" || s.Types[1].Name != "contact" {
		t.Errorf("types out of order: %+v", s.Types)
	}
	if s.Types[0].Description != "cooking instructions listing ingredients" {
		t.Errorf("unexpected description: %q", s.Types[0].Description)
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(s.Types) != 0 {
		t.Errorf("expected empty schema, got %+v", s.Types)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	if err := os.WriteFile(path, []byte("types: {not: [a, list"), 0o644); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	s := &Schema{Types: []Type{{Name: "decision", Description: "a choice made and why"}}}
	if err := s.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Types) != 1 || loaded.Types[0] != s.Types[0] {
		t.Errorf("round trip mismatch: %+v", loaded.Types)
	}
}

func TestHas(t *testing.T) {
	s := &Schema{Types: []Type{{Name: "recipe"}}}
	if !s.Has("recipe") {
		t.Error("expected Has(recipe)")
	}
	if s.Has("contact") {
		t.Error("unexpected Has(contact)")
	}
}
