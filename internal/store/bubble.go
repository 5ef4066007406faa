package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rcliao/context-keeper/internal/model"
)

// CreateBubble creates a named grouping for entries.
func (s *SQLiteStore) CreateBubble(ctx context.Context, name, description string) (*model.Bubble, error) {
	if name == "" {
		return nil, fmt.Errorf("bubble name is required")
	}

	now := time.Now().UTC()
	id := s.newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bubbles (id, name, description, created_at) VALUES (?, ?, ?, ?)`,
		id, name, description, now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert bubble: %w", err)
	}

	return &model.Bubble{ID: id, Name: name, Description: description, CreatedAt: now}, nil
}

// GetBubbleByName resolves a bubble by its unique name.
func (s *SQLiteStore) GetBubbleByName(ctx context.Context, name string) (*model.Bubble, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM bubbles WHERE name = ?`, name)
	b, err := scanBubble(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("bubble not found: %s", name)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBubbles returns all bubbles in creation order.
func (s *SQLiteStore) ListBubbles(ctx context.Context) ([]model.Bubble, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, created_at FROM bubbles ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bubbles []model.Bubble
	for rows.Next() {
		b, err := scanBubble(rows)
		if err != nil {
			return nil, err
		}
		bubbles = append(bubbles, b)
	}
	return bubbles, rows.Err()
}

func scanBubble(row scanner) (model.Bubble, error) {
	var b model.Bubble
	var description sql.NullString
	var createdAt string
	if err := row.Scan(&b.ID, &b.Name, &description, &createdAt); err != nil {
		return b, err
	}
	if description.Valid {
		b.Description = description.String
	}
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return b, nil
}
