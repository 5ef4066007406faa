package llm

import "testing"

func TestParseSuggestions(t *testing.T) {
	text := `[{"name": "recipe", "description": "cooking instructions"}, {"name": "contact", "description": "a person's details"}]`
	got, err := parseSuggestions(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 suggestions, got %d", len(got))
	}
	if got[0].Name != "recipe" || got[1].Name != "contact" {
		t.Errorf("unexpected suggestions: %+v", got)
	}
}

func TestParseSuggestionsFenced(t *testing.T) {
	text := "```json\n[{\"name\": \"decision\", \"description\": \"a choice and its rationale\"}]\n```"
	got, err := parseSuggestions(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 1 || got[0].Name != "decision" {
		t.Errorf("unexpected suggestions: %+v", got)
	}
}

func TestParseSuggestionsProseWrapped(t *testing.T) {
	text := `Here are some types that could help:

[{"name": "meeting_note", "description": "notes from a meeting"}]

Let me know if you want more.`
	got, err := parseSuggestions(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 1 || got[0].Name != "meeting_note" {
		t.Errorf("unexpected suggestions: %+v", got)
	}
}

func TestParseSuggestionsDropsIncomplete(t *testing.T) {
	text := `[{"name": "ok", "description": "has both"}, {"name": "missing_desc"}, {"description": "missing name"}]`
	got, err := parseSuggestions(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 1 || got[0].Name != "ok" {
		t.Errorf("expected only the complete suggestion, got %+v", got)
	}
}

func TestParseSuggestionsNoArray(t *testing.T) {
	if _, err := parseSuggestions("I could not come up with any types."); err == nil {
		t.Error("expected error for response without a JSON array")
	}
}

func TestParseSuggestionsInvalidJSON(t *testing.T) {
	if _, err := parseSuggestions(`[{"name": "broken"`); err == nil {
		t.Error("expected error for truncated JSON")
	}
}
