package store

import (
	"context"
	"strings"

	"github.com/rcliao/context-keeper/internal/model"
)

// SearchParams holds parameters for searching entries.
type SearchParams struct {
	Query           string
	BubbleID        string
	IncludeArchived bool
	Limit           int
}

// Search finds entries whose content or tags contain the query,
// case-insensitively. The scan is linear over the candidate set.
func (s *SQLiteStore) Search(ctx context.Context, p SearchParams) ([]model.ContextEntry, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	entries, err := s.List(ctx, ListParams{
		BubbleID:        p.BubbleID,
		IncludeArchived: p.IncludeArchived,
	})
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(p.Query)
	var results []model.ContextEntry
	for _, e := range entries {
		if matchesQuery(e, query) {
			results = append(results, e)
			if len(results) >= limit {
				break
			}
		}
	}
	return results, nil
}

func matchesQuery(e model.ContextEntry, query string) bool {
	if query == "" {
		return true
	}
	if strings.Contains(strings.ToLower(e.Content), query) {
		return true
	}
	for _, tag := range e.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}
