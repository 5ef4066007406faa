// Package improve implements the self-improvement tick: observe the
// store, generate candidate actions, route each through the control
// plane, execute what policy allows, and record the outcome.
package improve

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/context-keeper/internal/analyze"
	"github.com/rcliao/context-keeper/internal/control"
	"github.com/rcliao/context-keeper/internal/model"
	"github.com/rcliao/context-keeper/internal/observer"
	"github.com/rcliao/context-keeper/internal/schema"
	"github.com/rcliao/context-keeper/internal/store"
)

// Analyzer is the optional text-understanding collaborator. Calls may
// fail or be slow; the engine treats them as best-effort.
type Analyzer interface {
	SuggestSchemaTypes(ctx context.Context, entries []model.ContextEntry) ([]model.SchemaSuggestion, error)
}

// Thresholds for candidate generation.
const (
	minUntaggedForAutoTag  = 3
	minMissesForGapStub    = 3
	minUntypedForSuggest   = 5
	gapStubTag             = "gap"
	defaultTickTimeout     = 30 * time.Second
	defaultPendingTTL      = 7 * 24 * time.Hour
)

// Config controls tick timing. Constructed once at startup and passed
// in; zero fields take defaults.
type Config struct {
	TickTimeout time.Duration
	PendingTTL  time.Duration
}

func (c Config) withDefaults() Config {
	if c.TickTimeout <= 0 {
		c.TickTimeout = defaultTickTimeout
	}
	if c.PendingTTL <= 0 {
		c.PendingTTL = defaultPendingTTL
	}
	return c
}

// Engine runs self-improvement ticks against one store. Ticks and
// approval-driven executions must not run concurrently; callers hold
// one Engine per store and the engine serializes internally.
type Engine struct {
	store    store.Store
	obs      *observer.Observer
	plane    *control.Plane
	schema   *schema.Schema
	analyzer Analyzer
	cfg      Config
	log      *zap.Logger
}

// New creates an engine. schema and analyzer may be nil.
func New(st store.Store, obs *observer.Observer, plane *control.Plane, sch *schema.Schema, analyzer Analyzer, cfg Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:    st,
		obs:      obs,
		plane:    plane,
		schema:   sch,
		analyzer: analyzer,
		cfg:      cfg.withDefaults(),
		log:      log,
	}
}

// TickResult summarizes one tick.
type TickResult struct {
	Expired  int                       `json:"expired"`
	Executed []observer.ExecutedAction `json:"executed,omitempty"`
	Enqueued []string                  `json:"enqueued,omitempty"`
	Skipped  []string                  `json:"skipped,omitempty"`
}

// candidate is one generated action with its presentation strings.
type candidate struct {
	action      model.ImprovementAction
	description string
	reasoning   string
	preview     any
}

// Tick runs the four phases (observe, decide, route, record) under one
// wall-clock deadline. Work already executed or enqueued when the
// deadline passes is kept; the deadline only bounds new work.
func (e *Engine) Tick(ctx context.Context) (*TickResult, error) {
	deadline := time.Now().Add(e.cfg.TickTimeout)
	result := &TickResult{}

	// Phase 1: observe.
	e.obs.RotateIfNeeded()

	expired, err := e.plane.ExpireStale()
	if err != nil {
		return nil, fmt.Errorf("expire stale: %w", err)
	}
	result.Expired = expired

	entries, err := e.store.List(ctx, store.ListParams{IncludeArchived: true})
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	var live []model.ContextEntry
	for _, en := range entries {
		if !en.Archived {
			live = append(live, en)
		}
	}

	summary, err := e.obs.GetSummary()
	if err != nil {
		return nil, fmt.Errorf("usage summary: %w", err)
	}

	// Phase 2: decide.
	candidates := e.decide(ctx, deadline, live, summary)

	// Phase 3: route.
	for _, c := range candidates {
		if past(deadline) {
			break
		}
		kind := c.action.Kind

		action, viable, err := e.withoutProtected(c.action)
		if err != nil {
			return nil, err
		}
		if !viable {
			result.Skipped = append(result.Skipped, string(kind))
			continue
		}
		c.action = action

		if e.plane.ShouldAutoExecute(kind) {
			count, err := e.Execute(ctx, c.action)
			if err != nil {
				// Best-effort: a failed execution never aborts the tick.
				e.log.Warn("auto-execute failed",
					zap.String("kind", string(kind)), zap.Error(err))
				continue
			}
			result.Executed = append(result.Executed, observer.ExecutedAction{Kind: kind, Count: count})
			continue
		}

		queued, err := e.plane.HasPendingKind(kind)
		if err != nil {
			return nil, err
		}
		if queued {
			continue
		}
		pa, err := e.plane.Enqueue(control.Proposal{
			Action:      c.action,
			Description: c.description,
			Reasoning:   c.reasoning,
			Preview:     c.preview,
			TTL:         e.cfg.PendingTTL,
		})
		if err != nil {
			return nil, err
		}
		result.Enqueued = append(result.Enqueued, pa.ID)
	}

	// Phase 4: record.
	if len(result.Executed) > 0 {
		e.obs.LogSelfImprovement(observer.ImprovementRecord{Executed: result.Executed})
	}
	if err := e.refreshSelfModel(ctx, summary); err != nil {
		return nil, fmt.Errorf("refresh self-model: %w", err)
	}

	e.log.Info("tick complete",
		zap.Int("expired", result.Expired),
		zap.Int("executed", len(result.Executed)),
		zap.Int("enqueued", len(result.Enqueued)))
	return result, nil
}

// decide generates candidate actions by threshold rules, checking the
// deadline before each analysis step past the first.
func (e *Engine) decide(ctx context.Context, deadline time.Time, live []model.ContextEntry, summary *observer.Summary) []candidate {
	var candidates []candidate

	// Untagged entries get keyword tags.
	var untagged []string
	for _, en := range live {
		if len(en.Tags) == 0 {
			untagged = append(untagged, en.ID)
		}
	}
	if len(untagged) >= minUntaggedForAutoTag {
		candidates = append(candidates, candidate{
			action: model.ImprovementAction{
				Kind:    model.KindAutoTag,
				AutoTag: &model.AutoTagPayload{EntryIDs: untagged},
			},
			description: fmt.Sprintf("Tag %d untagged entries with extracted keywords", len(untagged)),
			reasoning:   "Untagged entries are hard to recall; keyword tags make them searchable.",
			preview:     untagged,
		})
	}

	if past(deadline) {
		return candidates
	}
	if pairs := analyze.DuplicatePairs(live); len(pairs) > 0 {
		candidates = append(candidates, candidate{
			action: model.ImprovementAction{
				Kind:            model.KindMergeDuplicates,
				MergeDuplicates: &model.MergeDuplicatesPayload{Pairs: pairs},
			},
			description: fmt.Sprintf("Merge %d near-duplicate entry pairs", len(pairs)),
			reasoning:   "Near-duplicate entries dilute recall; merging keeps the richer copy.",
			preview:     pairs,
		})
	}

	if past(deadline) {
		return candidates
	}
	if e.schema != nil && len(e.schema.Types) > 0 {
		if promotable := analyze.PromotionCandidates(live, e.schema.Types); len(promotable) > 0 {
			candidates = append(candidates, candidate{
				action: model.ImprovementAction{
					Kind:          model.KindPromoteToType,
					PromoteToType: &model.PromoteToTypePayload{Candidates: promotable},
				},
				description: fmt.Sprintf("Promote %d untyped entries to their matching types", len(promotable)),
				reasoning:   "Typed entries get structured recall; these match a declared type closely.",
				preview:     promotable,
			})
		}
	}

	if past(deadline) {
		return candidates
	}
	now := time.Now().UTC()
	var stale []string
	for _, en := range live {
		if analyze.IsStale(en, now, summary.ReadsByType) {
			stale = append(stale, en.ID)
		}
	}
	if len(stale) > 0 {
		candidates = append(candidates, candidate{
			action: model.ImprovementAction{
				Kind:         model.KindArchiveStale,
				ArchiveStale: &model.ArchiveStalePayload{EntryIDs: stale},
			},
			description: fmt.Sprintf("Archive %d stale entries of unread types", len(stale)),
			reasoning:   "Entries untouched for six months with no reads of their type add noise.",
			preview:     stale,
		})
	}

	if past(deadline) {
		return candidates
	}
	if pairs, err := e.store.ContradictionPairs(ctx); err == nil && len(pairs) > 0 {
		candidates = append(candidates, candidate{
			action: model.ImprovementAction{
				Kind:                  model.KindResolveContradictions,
				ResolveContradictions: &model.ResolveContradictionsPayload{Pairs: pairs},
			},
			description: fmt.Sprintf("Resolve %d contradiction pairs by archiving the older side", len(pairs)),
			reasoning:   "Contradicting entries mislead agents; the newer side wins.",
			preview:     pairs,
		})
	}

	if past(deadline) {
		return candidates
	}
	if missed := e.uncoveredMisses(live, summary); len(missed) > 0 {
		candidates = append(candidates, candidate{
			action: model.ImprovementAction{
				Kind:           model.KindCreateGapStubs,
				CreateGapStubs: &model.CreateGapStubsPayload{Queries: missed},
			},
			description: fmt.Sprintf("Create %d gap stubs for repeatedly missed searches", len(missed)),
			reasoning:   "Repeated search misses mark knowledge the store should hold.",
			preview:     missed,
		})
	}

	if past(deadline) {
		return candidates
	}
	if e.analyzer != nil {
		var untyped []model.ContextEntry
		for _, en := range live {
			if en.Type == "" {
				untyped = append(untyped, en)
			}
		}
		if len(untyped) >= minUntypedForSuggest {
			// Best-effort: analyzer failures are swallowed.
			if suggestions, err := e.analyzer.SuggestSchemaTypes(ctx, untyped); err == nil && len(suggestions) > 0 {
				candidates = append(candidates, candidate{
					action: model.ImprovementAction{
						Kind:          model.KindSuggestSchema,
						SuggestSchema: &model.SuggestSchemaPayload{Suggestions: suggestions},
					},
					description: fmt.Sprintf("Review %d suggested schema types", len(suggestions)),
					reasoning:   "Many untyped entries suggest the schema is missing types.",
					preview:     suggestions,
				})
			} else if err != nil {
				e.log.Warn("schema suggestion failed", zap.Error(err))
			}
		}
	}

	return candidates
}

// uncoveredMisses returns missed queries at or above the miss threshold
// that no existing gap stub already covers.
func (e *Engine) uncoveredMisses(live []model.ContextEntry, summary *observer.Summary) []model.MissedQuery {
	var missed []model.MissedQuery
	for query, count := range summary.MissedQueries {
		if count < minMissesForGapStub {
			continue
		}
		covered := false
		for _, en := range live {
			if hasTag(en, gapStubTag) && strings.Contains(strings.ToLower(en.Content), strings.ToLower(query)) {
				covered = true
				break
			}
		}
		if !covered {
			missed = append(missed, model.MissedQuery{Query: query, Count: count})
		}
	}
	return missed
}

func hasTag(e model.ContextEntry, tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// withoutProtected filters protected entries out of the action's
// targets. Returns false when protection leaves nothing to do.
func (e *Engine) withoutProtected(action model.ImprovementAction) (model.ImprovementAction, bool, error) {
	blocked := func(id string) (bool, error) {
		return e.plane.IsProtected(id, action.Kind)
	}

	switch action.Kind {
	case model.KindAutoTag:
		ids, err := filterIDs(action.AutoTag.EntryIDs, blocked)
		if err != nil {
			return action, false, err
		}
		action.AutoTag = &model.AutoTagPayload{EntryIDs: ids}
		return action, len(ids) > 0, nil
	case model.KindArchiveStale:
		ids, err := filterIDs(action.ArchiveStale.EntryIDs, blocked)
		if err != nil {
			return action, false, err
		}
		action.ArchiveStale = &model.ArchiveStalePayload{EntryIDs: ids}
		return action, len(ids) > 0, nil
	case model.KindMergeDuplicates:
		var pairs []model.DuplicatePair
		for _, p := range action.MergeDuplicates.Pairs {
			aBlocked, err := blocked(p.AID)
			if err != nil {
				return action, false, err
			}
			bBlocked, err := blocked(p.BID)
			if err != nil {
				return action, false, err
			}
			if !aBlocked && !bBlocked {
				pairs = append(pairs, p)
			}
		}
		action.MergeDuplicates = &model.MergeDuplicatesPayload{Pairs: pairs}
		return action, len(pairs) > 0, nil
	case model.KindPromoteToType:
		var kept []model.PromotionCandidate
		for _, c := range action.PromoteToType.Candidates {
			b, err := blocked(c.EntryID)
			if err != nil {
				return action, false, err
			}
			if !b {
				kept = append(kept, c)
			}
		}
		action.PromoteToType = &model.PromoteToTypePayload{Candidates: kept}
		return action, len(kept) > 0, nil
	case model.KindResolveContradictions:
		var pairs []model.ContradictionPair
		for _, p := range action.ResolveContradictions.Pairs {
			b, err := blocked(p.OlderID)
			if err != nil {
				return action, false, err
			}
			if !b {
				pairs = append(pairs, p)
			}
		}
		action.ResolveContradictions = &model.ResolveContradictionsPayload{Pairs: pairs}
		return action, len(pairs) > 0, nil
	default:
		// Kinds without entry targets (gap stubs, schema suggestions)
		// can still be vetoed by a pattern protection.
		b, err := e.plane.IsProtected("", action.Kind)
		if err != nil {
			return action, false, err
		}
		return action, !b, nil
	}
}

func filterIDs(ids []string, blocked func(string) (bool, error)) ([]string, error) {
	var kept []string
	for _, id := range ids {
		b, err := blocked(id)
		if err != nil {
			return nil, err
		}
		if !b {
			kept = append(kept, id)
		}
	}
	return kept, nil
}

// refreshSelfModel recomputes the derived freshness summary and
// persists it so later ticks and UI reads see current data.
func (e *Engine) refreshSelfModel(ctx context.Context, summary *observer.Summary) error {
	entries, err := e.store.List(ctx, store.ListParams{IncludeArchived: true})
	if err != nil {
		return err
	}

	sm := observer.SelfModel{LastTick: time.Now().UTC()}
	now := time.Now().UTC()
	for _, en := range entries {
		sm.TotalEntries++
		if en.Archived {
			sm.Archived++
			continue
		}
		if len(en.Tags) == 0 {
			sm.Untagged++
		}
		if en.Type == "" {
			sm.Untyped++
		}
		if analyze.IsStale(en, now, summary.ReadsByType) {
			sm.Stale++
		}
	}
	return e.plane.UpdateSelfModel(sm)
}

func past(deadline time.Time) bool {
	return time.Now().After(deadline)
}
