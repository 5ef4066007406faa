package improve

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rcliao/context-keeper/internal/control"
	"github.com/rcliao/context-keeper/internal/model"
	"github.com/rcliao/context-keeper/internal/observer"
	"github.com/rcliao/context-keeper/internal/risk"
	"github.com/rcliao/context-keeper/internal/schema"
	"github.com/rcliao/context-keeper/internal/store"
)

type testEnv struct {
	store *store.SQLiteStore
	obs   *observer.Observer
	plane *control.Plane
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	s, err := store.NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	obs, err := observer.New(dir)
	if err != nil {
		t.Fatalf("create observer: %v", err)
	}
	return &testEnv{
		store: s,
		obs:   obs,
		plane: control.New(obs, risk.Policy{}, nil),
	}
}

func (env *testEnv) engine(sch *schema.Schema, analyzer Analyzer) *Engine {
	return New(env.store, env.obs, env.plane, sch, analyzer, Config{}, nil)
}

func TestTickAutoTagsUntaggedEntries(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	for _, content := range []string{
		"deployment checklist covering staging rollout",
		"grocery reminders covering weekend shopping",
		"meeting summary covering quarterly planning",
	} {
		if _, err := env.store.Save(ctx, store.SaveParams{Content: content}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	result, err := env.engine(nil, nil).Tick(ctx)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}

	// Low tier auto-executes by default: tags applied in the same tick,
	// nothing queued.
	if len(result.Executed) != 1 || result.Executed[0].Kind != model.KindAutoTag {
		t.Fatalf("expected auto_tag executed, got %+v", result.Executed)
	}
	if result.Executed[0].Count != 3 {
		t.Errorf("expected 3 entries tagged, got %d", result.Executed[0].Count)
	}
	if len(result.Enqueued) != 0 {
		t.Errorf("expected nothing enqueued, got %v", result.Enqueued)
	}

	entries, _ := env.store.List(ctx, store.ListParams{})
	for _, e := range entries {
		if len(e.Tags) == 0 {
			t.Errorf("entry %s still untagged", e.ID)
		}
	}

	pending, _ := env.plane.ListPending()
	if len(pending) != 0 {
		t.Errorf("expected no pending actions, got %d", len(pending))
	}
}

func TestTickEnqueuesMediumRiskMerge(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	e1, _ := env.store.Save(ctx, store.SaveParams{
		Content: "buy milk and eggs", Type: "note", Tags: []string{"todo"},
	})
	e2, _ := env.store.Save(ctx, store.SaveParams{
		Content: "buy eggs and milk", Type: "note", Tags: []string{"todo"},
	})

	result, err := env.engine(nil, nil).Tick(ctx)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}

	// Medium tier with no override: enqueued, not executed.
	if len(result.Executed) != 0 {
		t.Errorf("merge should not auto-execute: %+v", result.Executed)
	}
	if len(result.Enqueued) != 1 {
		t.Fatalf("expected 1 enqueued, got %d", len(result.Enqueued))
	}

	pending, _ := env.plane.ListPending()
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending, got %d", len(pending))
	}
	pa := pending[0]
	if pa.Action.Kind != model.KindMergeDuplicates || pa.Risk != model.RiskMedium {
		t.Errorf("unexpected pending action: kind=%s risk=%s", pa.Action.Kind, pa.Risk)
	}
	pairs := pa.Action.MergeDuplicates.Pairs
	if len(pairs) != 1 || pairs[0].AID != e1.ID || pairs[0].BID != e2.ID {
		t.Errorf("unexpected pairs: %+v", pairs)
	}
	if pa.Description == "" || pa.Reasoning == "" || len(pa.Preview) == 0 {
		t.Error("pending action missing presentation fields")
	}

	// Neither entry was touched.
	for _, id := range []string{e1.ID, e2.ID} {
		e, _ := env.store.Get(ctx, id)
		if e.Archived {
			t.Errorf("entry %s archived without approval", id)
		}
	}
}

func TestTickDoesNotStackDuplicateProposals(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.store.Save(ctx, store.SaveParams{Content: "buy milk and eggs", Type: "note", Tags: []string{"t"}})
	env.store.Save(ctx, store.SaveParams{Content: "buy eggs and milk", Type: "note", Tags: []string{"t"}})

	engine := env.engine(nil, nil)
	if _, err := engine.Tick(ctx); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	if _, err := engine.Tick(ctx); err != nil {
		t.Fatalf("second tick: %v", err)
	}

	pending, _ := env.plane.ListPending()
	if len(pending) != 1 {
		t.Errorf("expected 1 pending after two ticks, got %d", len(pending))
	}
}

func TestTickCreatesGapStubs(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	for i := 0; i < 3; i++ {
		env.obs.Log(observer.Event{Event: observer.EventSearchMiss, Query: "budget template"})
	}

	result, err := env.engine(nil, nil).Tick(ctx)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(result.Executed) != 1 || result.Executed[0].Kind != model.KindCreateGapStubs {
		t.Fatalf("expected create_gap_stubs executed, got %+v", result.Executed)
	}

	entries, _ := env.store.List(ctx, store.ListParams{Tags: []string{"gap"}})
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 gap stub, got %d", len(entries))
	}
	stub := entries[0]
	hasNeedsInput := false
	for _, tag := range stub.Tags {
		if tag == "needs-input" {
			hasNeedsInput = true
		}
	}
	if !hasNeedsInput {
		t.Errorf("stub missing needs-input tag: %v", stub.Tags)
	}
	if want := `"budget template" was searched 3 times`; !strings.Contains(stub.Content, want) {
		t.Errorf("stub content should cite the miss count, got %q", stub.Content)
	}

	// A second tick sees the stub as coverage and creates nothing new.
	if _, err := env.engine(nil, nil).Tick(ctx); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	entries, _ = env.store.List(ctx, store.ListParams{Tags: []string{"gap"}})
	if len(entries) != 1 {
		t.Errorf("expected still 1 gap stub, got %d", len(entries))
	}
}

func TestTickSkipsProtectedTargets(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	for _, content := range []string{
		"first of three untagged entries",
		"second of three untagged entries",
		"third of three untagged entries",
	} {
		env.store.Save(ctx, store.SaveParams{Content: content})
	}

	env.plane.AddProtection(model.Protection{
		Pattern:       model.KindAutoTag,
		ProtectedFrom: []model.ActionKind{model.KindAutoTag},
		Reason:        "tags are curated by hand",
	})

	result, err := env.engine(nil, nil).Tick(ctx)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(result.Executed) != 0 {
		t.Errorf("protected action executed: %+v", result.Executed)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != string(model.KindAutoTag) {
		t.Errorf("expected auto_tag skipped, got %v", result.Skipped)
	}

	entries, _ := env.store.List(ctx, store.ListParams{})
	for _, e := range entries {
		if len(e.Tags) != 0 {
			t.Errorf("protected entry %s was tagged", e.ID)
		}
	}
}

func TestTickPromotesViaSchema(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.store.Save(ctx, store.SaveParams{
		Content: "Cooking pasta: instructions and ingredients below",
		Tags:    []string{"food"},
	})

	sch := &schema.Schema{Types: []schema.Type{
		{Name: "recipe", Description: "cooking instructions listing ingredients"},
	}}

	result, err := env.engine(sch, nil).Tick(ctx)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}

	// promote_to_type is medium risk: queued for approval.
	pending, _ := env.plane.ListPending()
	if len(pending) != 1 || pending[0].Action.Kind != model.KindPromoteToType {
		t.Fatalf("expected promote_to_type pending, got %+v", pending)
	}
	if len(result.Executed) != 0 {
		t.Errorf("promotion should not auto-execute: %+v", result.Executed)
	}

	// Approving executes the promotion through the shared path.
	res, err := env.plane.Approve(pending[0].ID)
	if err != nil || !res.OK {
		t.Fatalf("approve: %v %+v", err, res)
	}
	count, err := env.engine(sch, nil).Execute(ctx, *res.Action)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 promotion, got %d", count)
	}

	entries, _ := env.store.List(ctx, store.ListParams{})
	if entries[0].Type != "recipe" {
		t.Errorf("expected type 'recipe', got %q", entries[0].Type)
	}
}

func TestTickRefreshesSelfModel(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.store.Save(ctx, store.SaveParams{Content: "one entry", Tags: []string{"x"}})

	if _, err := env.engine(nil, nil).Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	sm, err := env.plane.SelfModel()
	if err != nil {
		t.Fatalf("self model: %v", err)
	}
	if sm == nil {
		t.Fatal("expected self model after tick")
	}
	if sm.TotalEntries != 1 || sm.Untyped != 1 || sm.Untagged != 0 {
		t.Errorf("self model counts wrong: %+v", sm)
	}
	if sm.LastTick.IsZero() {
		t.Error("expected last tick timestamp")
	}
}

func TestExecuteMerge(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	a, _ := env.store.Save(ctx, store.SaveParams{
		Content: "short", Type: "note", Tags: []string{"x"},
	})
	b, _ := env.store.Save(ctx, store.SaveParams{
		Content: "much longer content wins the merge", Type: "note", Tags: []string{"y"},
	})

	engine := env.engine(nil, nil)
	count, err := engine.Execute(ctx, model.ImprovementAction{
		Kind: model.KindMergeDuplicates,
		MergeDuplicates: &model.MergeDuplicatesPayload{
			Pairs: []model.DuplicatePair{{AID: a.ID, BID: b.ID, Similarity: 0.9}},
		},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 merge, got %d", count)
	}

	ae, _ := env.store.Get(ctx, a.ID)
	be, _ := env.store.Get(ctx, b.ID)
	if ae.Archived == be.Archived {
		t.Fatal("exactly one side should be archived")
	}
	keeper := ae
	if keeper.Archived {
		keeper = be
	}
	if keeper.Content != "much longer content wins the merge" {
		t.Errorf("keeper should hold the longer content, got %q", keeper.Content)
	}
	if len(keeper.Tags) != 2 {
		t.Errorf("keeper should hold the tag union, got %v", keeper.Tags)
	}

	// Re-running the merge is a no-op: one side is archived.
	count, err = engine.Execute(ctx, model.ImprovementAction{
		Kind: model.KindMergeDuplicates,
		MergeDuplicates: &model.MergeDuplicatesPayload{
			Pairs: []model.DuplicatePair{{AID: a.ID, BID: b.ID, Similarity: 0.9}},
		},
	})
	if err != nil || count != 0 {
		t.Errorf("expected no-op re-merge, got count=%d err=%v", count, err)
	}
}

func TestExecuteResolveContradictions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	newer, _ := env.store.Save(ctx, store.SaveParams{Content: "keys rotate weekly"})
	older, _ := env.store.Save(ctx, store.SaveParams{Content: "keys rotate monthly"})

	count, err := env.engine(nil, nil).Execute(ctx, model.ImprovementAction{
		Kind: model.KindResolveContradictions,
		ResolveContradictions: &model.ResolveContradictionsPayload{
			Pairs: []model.ContradictionPair{{NewerID: newer.ID, OlderID: older.ID}},
		},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 resolved, got %d", count)
	}

	ne, _ := env.store.Get(ctx, newer.ID)
	oe, _ := env.store.Get(ctx, older.ID)
	if ne.Archived {
		t.Error("newer side should survive")
	}
	if !oe.Archived {
		t.Error("older side should be archived")
	}
}

func TestExecuteUnknownKind(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.engine(nil, nil).Execute(context.Background(), model.ImprovementAction{
		Kind: "mystery",
	}); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestExecuteAutoTagRechecksState(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	e, _ := env.store.Save(ctx, store.SaveParams{Content: "deployment checklist staging"})

	// Entry gains tags between proposal and execution.
	manual := []string{"hand-picked"}
	env.store.Update(ctx, store.UpdateParams{ID: e.ID, Tags: &manual})

	count, err := env.engine(nil, nil).Execute(ctx, model.ImprovementAction{
		Kind:    model.KindAutoTag,
		AutoTag: &model.AutoTagPayload{EntryIDs: []string{e.ID}},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if count != 0 {
		t.Errorf("already-tagged entry should be skipped, got count %d", count)
	}

	got, _ := env.store.Get(ctx, e.ID)
	if len(got.Tags) != 1 || got.Tags[0] != "hand-picked" {
		t.Errorf("manual tags overwritten: %v", got.Tags)
	}
}
