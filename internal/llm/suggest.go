// Package llm provides the optional text-understanding analyzer backed
// by Google's Gemini API. It is best-effort: callers tolerate failures
// and slow responses.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/rcliao/context-keeper/internal/model"
)

const defaultModel = "gemini-2.0-flash"

// requestTimeout bounds each API call independently of the tick deadline.
const requestTimeout = 15 * time.Second

// Analyzer suggests new schema types from untyped entry content.
type Analyzer struct {
	client *genai.Client
	model  string
}

// NewAnalyzer creates a Gemini-backed analyzer.
func NewAnalyzer(ctx context.Context, apiKey, modelName string) (*Analyzer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if modelName == "" {
		modelName = defaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Analyzer{client: client, model: modelName}, nil
}

// SuggestSchemaTypes asks the model to propose schema types covering
// the given untyped entries.
func (a *Analyzer) SuggestSchemaTypes(ctx context.Context, entries []model.ContextEntry) ([]model.SchemaSuggestion, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var sb strings.Builder
	sb.WriteString("These are untyped notes from a personal knowledge store. ")
	sb.WriteString("Propose up to 3 schema types that would organize them. ")
	sb.WriteString("Respond with only a JSON array of {\"name\", \"description\"} objects, ")
	sb.WriteString("names in snake_case, descriptions one sentence.\n\n")
	for i, e := range entries {
		content := e.Content
		if len(content) > 200 {
			content = content[:200]
		}
		fmt.Fprintf(&sb, "%d. %s\n", i+1, content)
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(sb.String()), nil)
	if err != nil {
		return nil, fmt.Errorf("generate suggestions: %w", err)
	}

	return parseSuggestions(resp.Text())
}

// parseSuggestions extracts the JSON array from a model response that
// may be wrapped in markdown fences or prose.
func parseSuggestions(text string) ([]model.SchemaSuggestion, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in response")
	}
	var suggestions []model.SchemaSuggestion
	if err := json.Unmarshal([]byte(text[start:end+1]), &suggestions); err != nil {
		return nil, fmt.Errorf("parse suggestions: %w", err)
	}
	var valid []model.SchemaSuggestion
	for _, s := range suggestions {
		if s.Name != "" && s.Description != "" {
			valid = append(valid, s)
		}
	}
	return valid, nil
}
