package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rcliao/context-keeper/internal/model"
)

// RelContradicts marks two entries as disagreeing with each other.
const RelContradicts = "contradicts"

var validRels = map[string]bool{
	RelContradicts: true,
	"relates_to":   true,
	"supersedes":   true,
}

// Link records a relation between two entries.
func (s *SQLiteStore) Link(ctx context.Context, fromID, toID, rel string) error {
	if !validRels[rel] {
		return fmt.Errorf("invalid relation %q (valid: contradicts, relates_to, supersedes)", rel)
	}
	if _, err := s.Get(ctx, fromID); err != nil {
		return fmt.Errorf("resolve from: %w", err)
	}
	if _, err := s.Get(ctx, toID); err != nil {
		return fmt.Errorf("resolve to: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO entry_links (from_id, to_id, rel, created_at) VALUES (?, ?, ?, ?)`,
		fromID, toID, rel, now)
	return err
}

// Unlink removes a relation between two entries.
func (s *SQLiteStore) Unlink(ctx context.Context, fromID, toID, rel string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM entry_links WHERE from_id = ? AND to_id = ? AND rel = ?`,
		fromID, toID, rel)
	return err
}

// ContradictionPairs returns contradicts-linked pairs where both sides
// are still unarchived, ordered so the newer entry (by update time)
// comes first in each pair.
func (s *SQLiteStore) ContradictionPairs(ctx context.Context) ([]model.ContradictionPair, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.updated_at, b.id, b.updated_at
		FROM entry_links l
		INNER JOIN entries a ON a.id = l.from_id
		INNER JOIN entries b ON b.id = l.to_id
		WHERE l.rel = ? AND a.archived = 0 AND b.archived = 0
		ORDER BY l.created_at ASC`, RelContradicts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []model.ContradictionPair
	for rows.Next() {
		var aID, aUpdated, bID, bUpdated string
		if err := rows.Scan(&aID, &aUpdated, &bID, &bUpdated); err != nil {
			return nil, err
		}
		at, _ := time.Parse(time.RFC3339, aUpdated)
		bt, _ := time.Parse(time.RFC3339, bUpdated)
		p := model.ContradictionPair{NewerID: aID, OlderID: bID}
		if bt.After(at) {
			p = model.ContradictionPair{NewerID: bID, OlderID: aID}
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}
