// Package model defines the core context store data types.
package model

import "time"

// ContextEntry represents one stored memory unit.
type ContextEntry struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Tags      []string       `json:"tags,omitempty"`
	Source    string         `json:"source,omitempty"`
	BubbleID  string         `json:"bubble_id,omitempty"`
	Type      string         `json:"type,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Archived  bool           `json:"archived,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Bubble is a named grouping of context entries (project/workspace).
type Bubble struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ValidSources are the recognized provenance tags for entries.
var ValidSources = map[string]bool{
	"agent":  true,
	"user":   true,
	"import": true,
	"system": true,
}
