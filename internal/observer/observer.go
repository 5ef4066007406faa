// Package observer provides usage telemetry and control-plane state
// persistence: a JSONL usage log with rotation, a self-improvement log,
// and a single whole-document state file holding pending actions and
// protections.
package observer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rcliao/context-keeper/internal/model"
)

// DefaultMaxLogSize is the usage log size that triggers rotation.
const DefaultMaxLogSize = 1 << 20

// Event is one usage log record.
type Event struct {
	Time  time.Time `json:"ts"`
	Event string    `json:"event"`
	Type  string    `json:"type,omitempty"`
	Query string    `json:"query,omitempty"`
}

// Usage log event names.
const (
	EventRead       = "read"
	EventSearchMiss = "search_miss"
)

// Summary aggregates the usage log: per-type read counts and
// missed-query counts.
type Summary struct {
	ReadsByType   map[string]int `json:"reads_by_type"`
	MissedQueries map[string]int `json:"missed_queries"`
}

// ExecutedAction is one auto-executed action note for the
// self-improvement log.
type ExecutedAction struct {
	Kind  model.ActionKind `json:"kind"`
	Count int              `json:"count"`
}

// ImprovementRecord is one self-improvement log record, appended once
// per tick that auto-executed anything.
type ImprovementRecord struct {
	Time     time.Time        `json:"ts"`
	Executed []ExecutedAction `json:"executed"`
}

// SelfModel is the derived freshness summary cached between ticks.
type SelfModel struct {
	TotalEntries int       `json:"total_entries"`
	Untagged     int       `json:"untagged"`
	Untyped      int       `json:"untyped"`
	Archived     int       `json:"archived"`
	Stale        int       `json:"stale"`
	LastTick     time.Time `json:"last_tick"`
}

// Observer owns the telemetry files for one store instance. All files
// live in a single directory next to the database.
type Observer struct {
	dir        string
	maxLogSize int64
}

// New creates an observer rooted at dir, creating it if needed.
func New(dir string) (*Observer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create observer dir: %w", err)
	}
	return &Observer{dir: dir, maxLogSize: DefaultMaxLogSize}, nil
}

func (o *Observer) usagePath() string   { return filepath.Join(o.dir, "usage.log") }
func (o *Observer) improvePath() string { return filepath.Join(o.dir, "improvements.log") }
func (o *Observer) statePath() string   { return filepath.Join(o.dir, "control.json") }

// Log appends one event to the usage log.
func (o *Observer) Log(ev Event) error {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	return appendLine(o.usagePath(), ev)
}

// LogSelfImprovement appends one record to the self-improvement log.
func (o *Observer) LogSelfImprovement(rec ImprovementRecord) error {
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}
	return appendLine(o.improvePath(), rec)
}

// RotateIfNeeded rotates the usage log once it exceeds the size cap,
// keeping a single .old generation.
func (o *Observer) RotateIfNeeded() error {
	info, err := os.Stat(o.usagePath())
	if err != nil || info.Size() <= o.maxLogSize {
		return nil
	}
	return os.Rename(o.usagePath(), o.usagePath()+".old")
}

// GetSummary scans the usage log (current and rotated generation) and
// aggregates read and miss counts.
func (o *Observer) GetSummary() (*Summary, error) {
	sum := &Summary{
		ReadsByType:   map[string]int{},
		MissedQueries: map[string]int{},
	}
	for _, path := range []string{o.usagePath() + ".old", o.usagePath()} {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			var ev Event
			if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
				continue
			}
			switch ev.Event {
			case EventRead:
				sum.ReadsByType[ev.Type]++
			case EventSearchMiss:
				sum.MissedQueries[ev.Query]++
			}
		}
		f.Close()
	}
	return sum, nil
}

func appendLine(path string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer f.Close()
	_, err = f.Write(append(b, '\n'))
	return err
}
