// Package store provides the context entry storage interface and SQLite implementation.
package store

import (
	"context"

	"github.com/rcliao/context-keeper/internal/model"
)

// SaveParams holds parameters for storing a new context entry.
type SaveParams struct {
	Content  string
	Tags     []string
	Source   string
	BubbleID string
	Type     string
	Data     map[string]any
}

// ListParams holds parameters for listing entries.
type ListParams struct {
	BubbleID        string
	Type            string
	Tags            []string
	IncludeArchived bool
	Limit           int // 0 means no limit
}

// UpdateParams holds a partial update of one entry. Nil fields are
// preserved; a non-nil BubbleID pointing at the empty string unassigns
// the bubble.
type UpdateParams struct {
	ID       string
	Content  *string
	Tags     *[]string
	Type     *string
	BubbleID *string
	Archived *bool
}

// Store defines the entry storage interface consumed by the
// self-improvement engine.
type Store interface {
	// Save stores a new entry and returns the canonical stored shape.
	Save(ctx context.Context, p SaveParams) (*model.ContextEntry, error)

	// Get retrieves one entry by id.
	Get(ctx context.Context, id string) (*model.ContextEntry, error)

	// List lists entries matching the given filters.
	List(ctx context.Context, p ListParams) ([]model.ContextEntry, error)

	// Update applies a partial update and returns the updated entry.
	Update(ctx context.Context, p UpdateParams) (*model.ContextEntry, error)

	// ContradictionPairs returns live contradicts-linked entry pairs,
	// newer side first by update time.
	ContradictionPairs(ctx context.Context) ([]model.ContradictionPair, error)

	// Close closes the store.
	Close() error
}
