package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath          string        `json:"db_path"`
	DBSizeBytes     int64         `json:"db_size_bytes"`
	TotalEntries    int           `json:"total_entries"`
	ActiveEntries   int           `json:"active_entries"`
	ArchivedEntries int           `json:"archived_entries"`
	UntaggedEntries int           `json:"untagged_entries"`
	UntypedEntries  int           `json:"untyped_entries"`
	Links           int           `json:"links"`
	Bubbles         []BubbleStats `json:"bubbles,omitempty"`
}

// BubbleStats holds per-bubble counts.
type BubbleStats struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&st.TotalEntries)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE archived = 0`).Scan(&st.ActiveEntries)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE archived = 1`).Scan(&st.ArchivedEntries)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE archived = 0 AND (tags IS NULL OR tags = '' OR tags = '[]')`).Scan(&st.UntaggedEntries)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE archived = 0 AND (type IS NULL OR type = '')`).Scan(&st.UntypedEntries)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entry_links`).Scan(&st.Links)

	rows, err := s.db.QueryContext(ctx, `
		SELECT b.name, COUNT(e.id) AS cnt
		FROM bubbles b
		LEFT JOIN entries e ON e.bubble_id = b.id AND e.archived = 0
		GROUP BY b.id ORDER BY cnt DESC`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var bs BubbleStats
		rows.Scan(&bs.Name, &bs.Count)
		st.Bubbles = append(st.Bubbles, bs)
	}
	return st, nil
}
