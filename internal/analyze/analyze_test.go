package analyze

import (
	"fmt"
	"testing"
	"time"

	"github.com/rcliao/context-keeper/internal/model"
	"github.com/rcliao/context-keeper/internal/schema"
)

func TestSimilarity(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"buy milk and eggs", "buy eggs and milk", 1.0},
		{"hello world", "hello world", 1.0},
		{"completely different", "nothing shared", 0},
		{"", "", 0},
		{"one two three four", "one two", 0.5},
	}
	for _, tc := range cases {
		if got := Similarity(tc.a, tc.b); got != tc.want {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestSimilarityCaseInsensitive(t *testing.T) {
	if got := Similarity("Buy Milk", "buy milk"); got != 1.0 {
		t.Errorf("expected 1.0, got %v", got)
	}
}

func TestDuplicatePairs(t *testing.T) {
	entries := []model.ContextEntry{
		{ID: "e1", Type: "note", Content: "buy milk and eggs"},
		{ID: "e2", Type: "note", Content: "buy eggs and milk"},
		{ID: "e3", Type: "task", Content: "buy milk and eggs"},
		{ID: "e4", Type: "note", Content: "something else entirely"},
	}

	pairs := DuplicatePairs(entries)
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	if pairs[0].AID != "e1" || pairs[0].BID != "e2" {
		t.Errorf("expected e1/e2, got %s/%s", pairs[0].AID, pairs[0].BID)
	}
	if pairs[0].Similarity != 1.0 {
		t.Errorf("expected similarity 1.0, got %v", pairs[0].Similarity)
	}
}

func TestDuplicatePairsSkipArchived(t *testing.T) {
	entries := []model.ContextEntry{
		{ID: "e1", Type: "note", Content: "buy milk"},
		{ID: "e2", Type: "note", Content: "buy milk", Archived: true},
	}
	if pairs := DuplicatePairs(entries); len(pairs) != 0 {
		t.Errorf("expected no pairs with archived entry, got %d", len(pairs))
	}
}

func TestDuplicatePairsCap(t *testing.T) {
	var entries []model.ContextEntry
	for i := 0; i < 30; i++ {
		entries = append(entries, model.ContextEntry{
			ID:      fmt.Sprintf("e%d", i),
			Type:    "note",
			Content: "identical content every time",
		})
	}
	if pairs := DuplicatePairs(entries); len(pairs) != MaxDuplicatePairs {
		t.Errorf("expected cap at %d pairs, got %d", MaxDuplicatePairs, len(pairs))
	}
}

func TestPromotionCandidates(t *testing.T) {
	types := []schema.Type{
		{Name: "recipe", Description: "cooking instructions listing ingredients"},
		{Name: "contact", Description: "person phone email address"},
	}
	entries := []model.ContextEntry{
		{ID: "e1", Content: "Cooking pasta: instructions and ingredients below"},
		{ID: "e2", Content: "random thought about nothing in particular"},
		{ID: "e3", Content: "already typed", Type: "note"},
	}

	candidates := PromotionCandidates(entries, types)
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].EntryID != "e1" || candidates[0].Type != "recipe" {
		t.Errorf("expected e1/recipe, got %s/%s", candidates[0].EntryID, candidates[0].Type)
	}
	if candidates[0].Score < PromotionThreshold {
		t.Errorf("score below threshold: %v", candidates[0].Score)
	}
}

func TestPromotionTieKeepsFirstType(t *testing.T) {
	types := []schema.Type{
		{Name: "first", Description: "alpha beta gamma"},
		{Name: "second", Description: "alpha beta gamma"},
	}
	entries := []model.ContextEntry{
		{ID: "e1", Content: "alpha beta gamma content"},
	}
	candidates := PromotionCandidates(entries, types)
	if len(candidates) != 1 || candidates[0].Type != "first" {
		t.Fatalf("tie should keep first type in schema order, got %+v", candidates)
	}
}

func TestKeywords(t *testing.T) {
	got := Keywords("This is the deployment checklist for our staging environment setup today")
	want := []string{"deployment", "checklist", "staging", "environment", "setup"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("keyword %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestKeywordsDropsStopWordsAndShortTokens(t *testing.T) {
	got := Keywords("this that with the a an it do")
	if len(got) != 0 {
		t.Errorf("expected no keywords, got %v", got)
	}
}

func TestIsStale(t *testing.T) {
	now := time.Now().UTC()
	old := model.ContextEntry{Type: "note", UpdatedAt: now.AddDate(0, 0, -200)}
	fresh := model.ContextEntry{Type: "note", UpdatedAt: now.AddDate(0, 0, -10)}

	noReads := map[string]int{}
	if !IsStale(old, now, noReads) {
		t.Error("200-day-old entry with no type reads should be stale")
	}
	if IsStale(fresh, now, noReads) {
		t.Error("10-day-old entry should not be stale")
	}

	withReads := map[string]int{"note": 5}
	if IsStale(old, now, withReads) {
		t.Error("entry of a read type should not be stale")
	}
}
