package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/context-keeper/internal/model"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS bubbles (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		description TEXT,
		created_at  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS entries (
		id          TEXT PRIMARY KEY,
		content     TEXT NOT NULL,
		tags        TEXT,
		source      TEXT NOT NULL DEFAULT 'agent',
		bubble_id   TEXT REFERENCES bubbles(id),
		type        TEXT,
		data        TEXT,
		archived    INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_entries_bubble ON entries(bubble_id);
	CREATE INDEX IF NOT EXISTS idx_entries_type ON entries(type);
	CREATE INDEX IF NOT EXISTS idx_entries_archived ON entries(archived);
	CREATE INDEX IF NOT EXISTS idx_entries_updated ON entries(updated_at DESC);

	CREATE TABLE IF NOT EXISTS entry_links (
		from_id    TEXT NOT NULL REFERENCES entries(id),
		to_id      TEXT NOT NULL REFERENCES entries(id),
		rel        TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (from_id, to_id, rel)
	);
	CREATE INDEX IF NOT EXISTS idx_links_to ON entry_links(to_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, p SaveParams) (*model.ContextEntry, error) {
	now := time.Now().UTC()
	id := s.newID()

	source := p.Source
	if source == "" {
		source = "agent"
	}

	var tagsJSON *string
	if len(p.Tags) > 0 {
		b, _ := json.Marshal(p.Tags)
		str := string(b)
		tagsJSON = &str
	}

	var dataJSON *string
	if len(p.Data) > 0 {
		b, err := json.Marshal(p.Data)
		if err != nil {
			return nil, fmt.Errorf("marshal data: %w", err)
		}
		str := string(b)
		dataJSON = &str
	}

	var bubbleID, typ *string
	if p.BubbleID != "" {
		bubbleID = &p.BubbleID
	}
	if p.Type != "" {
		typ = &p.Type
	}

	ts := now.Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (id, content, tags, source, bubble_id, type, data, archived, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		id, p.Content, tagsJSON, source, bubbleID, typ, dataJSON, ts, ts)
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	return &model.ContextEntry{
		ID:        id,
		Content:   p.Content,
		Tags:      p.Tags,
		Source:    source,
		BubbleID:  p.BubbleID,
		Type:      p.Type,
		Data:      p.Data,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

const entryColumns = `id, content, tags, source, bubble_id, type, data, archived, created_at, updated_at`

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.ContextEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("entry not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *SQLiteStore) List(ctx context.Context, p ListParams) ([]model.ContextEntry, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	if !p.IncludeArchived {
		where = append(where, "archived = 0")
	}
	if p.BubbleID != "" {
		where = append(where, "bubble_id = ?")
		args = append(args, p.BubbleID)
	}
	if p.Type != "" {
		where = append(where, "type = ?")
		args = append(args, p.Type)
	}
	for _, tag := range p.Tags {
		where = append(where, "tags LIKE ?")
		args = append(args, "%\""+tag+"\"%")
	}

	query := `SELECT ` + entryColumns + ` FROM entries WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY created_at ASC`
	if p.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, p.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.ContextEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Update performs a read-modify-write of one entry. Unset fields keep
// their stored values.
func (s *SQLiteStore) Update(ctx context.Context, p UpdateParams) (*model.ContextEntry, error) {
	e, err := s.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	if p.Content != nil {
		e.Content = *p.Content
	}
	if p.Tags != nil {
		e.Tags = *p.Tags
	}
	if p.Type != nil {
		e.Type = *p.Type
	}
	if p.BubbleID != nil {
		e.BubbleID = *p.BubbleID
	}
	if p.Archived != nil {
		e.Archived = *p.Archived
	}
	e.UpdatedAt = time.Now().UTC()

	var tagsJSON *string
	if len(e.Tags) > 0 {
		b, _ := json.Marshal(e.Tags)
		str := string(b)
		tagsJSON = &str
	}
	var dataJSON *string
	if len(e.Data) > 0 {
		b, _ := json.Marshal(e.Data)
		str := string(b)
		dataJSON = &str
	}
	var bubbleID, typ *string
	if e.BubbleID != "" {
		bubbleID = &e.BubbleID
	}
	if e.Type != "" {
		typ = &e.Type
	}
	archived := 0
	if e.Archived {
		archived = 1
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE entries SET content = ?, tags = ?, bubble_id = ?, type = ?, data = ?, archived = ?, updated_at = ?
		 WHERE id = ?`,
		e.Content, tagsJSON, bubbleID, typ, dataJSON, archived,
		e.UpdatedAt.Format(time.RFC3339), e.ID)
	if err != nil {
		return nil, fmt.Errorf("update entry: %w", err)
	}
	return e, nil
}

// Rm hard-deletes an entry and its links.
func (s *SQLiteStore) Rm(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	s.db.ExecContext(ctx, `DELETE FROM entry_links WHERE from_id = ? OR to_id = ?`, id, id)
	_, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (model.ContextEntry, error) {
	var e model.ContextEntry
	var tagsJSON, bubbleID, typ, dataJSON sql.NullString
	var archived int
	var createdAt, updatedAt string

	err := row.Scan(
		&e.ID, &e.Content, &tagsJSON, &e.Source, &bubbleID, &typ,
		&dataJSON, &archived, &createdAt, &updatedAt,
	)
	if err != nil {
		return e, err
	}

	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	e.Archived = archived != 0
	if tagsJSON.Valid {
		json.Unmarshal([]byte(tagsJSON.String), &e.Tags)
	}
	if bubbleID.Valid {
		e.BubbleID = bubbleID.String
	}
	if typ.Valid {
		e.Type = typ.String
	}
	if dataJSON.Valid {
		json.Unmarshal([]byte(dataJSON.String), &e.Data)
	}

	return e, nil
}
