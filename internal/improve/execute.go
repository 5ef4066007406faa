package improve

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rcliao/context-keeper/internal/analyze"
	"github.com/rcliao/context-keeper/internal/model"
	"github.com/rcliao/context-keeper/internal/store"
)

// Execute applies an improvement action to the store and returns how
// many entries (or stubs, or suggestions) it touched. Shared by
// auto-execution during ticks and by approval-driven execution.
// Per-entry conditions are re-checked at execution time rather than
// trusted from proposal time.
func (e *Engine) Execute(ctx context.Context, action model.ImprovementAction) (int, error) {
	switch action.Kind {
	case model.KindAutoTag:
		return e.executeAutoTag(ctx, action.AutoTag)
	case model.KindMergeDuplicates:
		return e.executeMerge(ctx, action.MergeDuplicates)
	case model.KindPromoteToType:
		return e.executePromote(ctx, action.PromoteToType)
	case model.KindArchiveStale:
		return e.executeArchive(ctx, action.ArchiveStale)
	case model.KindCreateGapStubs:
		return e.executeGapStubs(ctx, action.CreateGapStubs)
	case model.KindResolveContradictions:
		return e.executeResolveContradictions(ctx, action.ResolveContradictions)
	case model.KindSuggestSchema:
		// Suggestions are surfaced for human action; no store mutation.
		if action.SuggestSchema == nil {
			return 0, nil
		}
		return len(action.SuggestSchema.Suggestions), nil
	default:
		return 0, fmt.Errorf("unknown action kind %q", action.Kind)
	}
}

func (e *Engine) executeAutoTag(ctx context.Context, p *model.AutoTagPayload) (int, error) {
	if p == nil {
		return 0, nil
	}
	tagged := 0
	for _, id := range p.EntryIDs {
		en, err := e.store.Get(ctx, id)
		if err != nil {
			continue
		}
		// Only tag entries that are still untagged.
		if en.Archived || len(en.Tags) > 0 {
			continue
		}
		keywords := analyze.Keywords(en.Content)
		if len(keywords) == 0 {
			continue
		}
		if _, err := e.store.Update(ctx, store.UpdateParams{ID: id, Tags: &keywords}); err != nil {
			return tagged, err
		}
		tagged++
	}
	return tagged, nil
}

func (e *Engine) executeMerge(ctx context.Context, p *model.MergeDuplicatesPayload) (int, error) {
	if p == nil {
		return 0, nil
	}
	merged := 0
	for _, pair := range p.Pairs {
		a, err := e.store.Get(ctx, pair.AID)
		if err != nil {
			continue
		}
		b, err := e.store.Get(ctx, pair.BID)
		if err != nil {
			continue
		}
		if a.Archived || b.Archived {
			continue
		}

		keeper, loser := a, b
		if b.UpdatedAt.After(a.UpdatedAt) {
			keeper, loser = b, a
		}
		content := keeper.Content
		if len(loser.Content) > len(content) {
			content = loser.Content
		}
		tags := unionTags(keeper.Tags, loser.Tags)

		if _, err := e.store.Update(ctx, store.UpdateParams{
			ID: keeper.ID, Content: &content, Tags: &tags,
		}); err != nil {
			return merged, err
		}
		archived := true
		if _, err := e.store.Update(ctx, store.UpdateParams{
			ID: loser.ID, Archived: &archived,
		}); err != nil {
			return merged, err
		}
		e.log.Info("merged duplicates",
			zap.String("keeper", keeper.ID), zap.String("archived", loser.ID))
		merged++
	}
	return merged, nil
}

func (e *Engine) executePromote(ctx context.Context, p *model.PromoteToTypePayload) (int, error) {
	if p == nil {
		return 0, nil
	}
	promoted := 0
	for _, c := range p.Candidates {
		en, err := e.store.Get(ctx, c.EntryID)
		if err != nil {
			continue
		}
		if en.Archived || en.Type != "" {
			continue
		}
		typ := c.Type
		if _, err := e.store.Update(ctx, store.UpdateParams{ID: c.EntryID, Type: &typ}); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}

func (e *Engine) executeArchive(ctx context.Context, p *model.ArchiveStalePayload) (int, error) {
	if p == nil {
		return 0, nil
	}
	archivedCount := 0
	for _, id := range p.EntryIDs {
		en, err := e.store.Get(ctx, id)
		if err != nil || en.Archived {
			continue
		}
		archived := true
		if _, err := e.store.Update(ctx, store.UpdateParams{ID: id, Archived: &archived}); err != nil {
			return archivedCount, err
		}
		archivedCount++
	}
	return archivedCount, nil
}

func (e *Engine) executeGapStubs(ctx context.Context, p *model.CreateGapStubsPayload) (int, error) {
	if p == nil {
		return 0, nil
	}
	created := 0
	for _, q := range p.Queries {
		content := fmt.Sprintf(
			"Knowledge gap: %q was searched %d times with no results. Fill in what you know about it.",
			q.Query, q.Count)
		if _, err := e.store.Save(ctx, store.SaveParams{
			Content: content,
			Tags:    []string{"gap", "needs-input"},
			Source:  "system",
		}); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func (e *Engine) executeResolveContradictions(ctx context.Context, p *model.ResolveContradictionsPayload) (int, error) {
	if p == nil {
		return 0, nil
	}
	resolved := 0
	for _, pair := range p.Pairs {
		en, err := e.store.Get(ctx, pair.OlderID)
		if err != nil || en.Archived {
			continue
		}
		archived := true
		if _, err := e.store.Update(ctx, store.UpdateParams{ID: pair.OlderID, Archived: &archived}); err != nil {
			return resolved, err
		}
		resolved++
	}
	return resolved, nil
}

func unionTags(a, b []string) []string {
	seen := map[string]bool{}
	var union []string
	for _, t := range append(append([]string{}, a...), b...) {
		if !seen[t] {
			seen[t] = true
			union = append(union, t)
		}
	}
	return union
}
