package observer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rcliao/context-keeper/internal/model"
)

func newTestObserver(t *testing.T) *Observer {
	t.Helper()
	obs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("create observer: %v", err)
	}
	return obs
}

func TestLogAndSummary(t *testing.T) {
	obs := newTestObserver(t)

	obs.Log(Event{Event: EventRead, Type: "note"})
	obs.Log(Event{Event: EventRead, Type: "note"})
	obs.Log(Event{Event: EventRead, Type: "task"})
	obs.Log(Event{Event: EventSearchMiss, Query: "budget template"})
	obs.Log(Event{Event: EventSearchMiss, Query: "budget template"})

	sum, err := obs.GetSummary()
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.ReadsByType["note"] != 2 || sum.ReadsByType["task"] != 1 {
		t.Errorf("read counts wrong: %v", sum.ReadsByType)
	}
	if sum.MissedQueries["budget template"] != 2 {
		t.Errorf("miss counts wrong: %v", sum.MissedQueries)
	}
}

func TestSummaryEmptyLog(t *testing.T) {
	obs := newTestObserver(t)

	sum, err := obs.GetSummary()
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(sum.ReadsByType) != 0 || len(sum.MissedQueries) != 0 {
		t.Errorf("expected empty summary, got %+v", sum)
	}
}

func TestRotation(t *testing.T) {
	obs := newTestObserver(t)
	obs.maxLogSize = 100

	for i := 0; i < 10; i++ {
		obs.Log(Event{Event: EventRead, Type: "note"})
	}
	if err := obs.RotateIfNeeded(); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if _, err := os.Stat(obs.usagePath() + ".old"); err != nil {
		t.Fatal("expected rotated log file")
	}

	// Rotated events still count in the summary.
	obs.Log(Event{Event: EventRead, Type: "note"})
	sum, _ := obs.GetSummary()
	if sum.ReadsByType["note"] != 11 {
		t.Errorf("expected 11 reads across generations, got %d", sum.ReadsByType["note"])
	}
}

func TestSelfImprovementLog(t *testing.T) {
	obs := newTestObserver(t)

	err := obs.LogSelfImprovement(ImprovementRecord{
		Executed: []ExecutedAction{{Kind: model.KindAutoTag, Count: 3}},
	})
	if err != nil {
		t.Fatalf("log: %v", err)
	}

	b, err := os.ReadFile(obs.improvePath())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), `"auto_tag"`) || !strings.Contains(string(b), `"count":3`) {
		t.Errorf("record not written: %s", b)
	}
}

func TestStateRoundTrip(t *testing.T) {
	obs := newTestObserver(t)

	state := &State{
		Pending: []model.PendingAction{{
			ID:        "p1",
			CreatedAt: time.Now().UTC().Truncate(time.Second),
			ExpiresAt: time.Now().UTC().Add(time.Hour).Truncate(time.Second),
			Action: model.ImprovementAction{
				Kind:    model.KindAutoTag,
				AutoTag: &model.AutoTagPayload{EntryIDs: []string{"e1", "e2"}},
			},
			Risk:        model.RiskLow,
			Description: "tag things",
			Reasoning:   "because",
			Status:      model.StatusPending,
		}},
		Protections: []model.Protection{{
			ID:            "pr1",
			EntryID:       "e9",
			ProtectedFrom: []model.ActionKind{model.KindArchiveStale},
			Reason:        "keep this",
			CreatedAt:     time.Now().UTC().Truncate(time.Second),
		}},
	}

	wantPending, _ := json.Marshal(state.Pending)
	wantProtections, _ := json.Marshal(state.Protections)

	if err := obs.PersistRaw(state); err != nil {
		t.Fatalf("persist: %v", err)
	}
	loaded, err := obs.LoadRaw()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	gotPending, _ := json.Marshal(loaded.Pending)
	gotProtections, _ := json.Marshal(loaded.Protections)
	if string(gotPending) != string(wantPending) {
		t.Errorf("pending not byte-equal:\n%s\n%s", wantPending, gotPending)
	}
	if string(gotProtections) != string(wantProtections) {
		t.Errorf("protections not byte-equal:\n%s\n%s", wantProtections, gotProtections)
	}
}

func TestStatePreservesUnknownFields(t *testing.T) {
	dir := t.TempDir()
	obs, _ := New(dir)

	doc := `{"pending_actions":null,"protections":null,"future_field":{"nested":true}}`
	if err := os.WriteFile(filepath.Join(dir, "control.json"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	state, err := obs.LoadRaw()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := obs.PersistRaw(state); err != nil {
		t.Fatalf("persist: %v", err)
	}

	b, _ := os.ReadFile(filepath.Join(dir, "control.json"))
	if !strings.Contains(string(b), `"future_field"`) || !strings.Contains(string(b), `"nested"`) {
		t.Errorf("unknown field dropped: %s", b)
	}
}

func TestLoadRawMissingFile(t *testing.T) {
	obs := newTestObserver(t)

	state, err := obs.LoadRaw()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(state.Pending) != 0 || len(state.Protections) != 0 {
		t.Errorf("expected empty state, got %+v", state)
	}
}
