package risk

import (
	"testing"

	"github.com/rcliao/context-keeper/internal/model"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		kind model.ActionKind
		want model.RiskTier
	}{
		{model.KindAutoTag, model.RiskLow},
		{model.KindCreateGapStubs, model.RiskLow},
		{model.KindSuggestSchema, model.RiskLow},
		{model.KindPromoteToType, model.RiskMedium},
		{model.KindMergeDuplicates, model.RiskMedium},
		{model.KindArchiveStale, model.RiskHigh},
		{model.KindResolveContradictions, model.RiskHigh},
	}
	for _, tc := range cases {
		if got := Classify(tc.kind); got != tc.want {
			t.Errorf("Classify(%s) = %s, want %s", tc.kind, got, tc.want)
		}
	}
}

func TestClassifyUnknownKindIsHigh(t *testing.T) {
	for _, kind := range []model.ActionKind{"", "delete_everything", "future_action"} {
		if got := Classify(kind); got != model.RiskHigh {
			t.Errorf("Classify(%q) = %s, want high", kind, got)
		}
	}
}

func TestShouldAutoExecuteDefaults(t *testing.T) {
	p := Policy{}
	if !p.ShouldAutoExecute(model.KindAutoTag) {
		t.Error("low tier should auto-execute by default")
	}
	if p.ShouldAutoExecute(model.KindMergeDuplicates) {
		t.Error("medium tier should not auto-execute by default")
	}
	if p.ShouldAutoExecute(model.KindArchiveStale) {
		t.Error("high tier should not auto-execute by default")
	}
	if p.ShouldAutoExecute("unknown_kind") {
		t.Error("unknown kinds must never auto-execute by default")
	}
}

func TestShouldAutoExecuteOverride(t *testing.T) {
	yes, no := true, false
	p := Policy{AutoExecute: map[model.RiskTier]*bool{
		model.RiskLow:    &no,
		model.RiskMedium: &yes,
	}}
	if p.ShouldAutoExecute(model.KindAutoTag) {
		t.Error("low override should disable auto-execution")
	}
	if !p.ShouldAutoExecute(model.KindMergeDuplicates) {
		t.Error("medium override should enable auto-execution")
	}
	// No override for high keeps the default.
	if p.ShouldAutoExecute(model.KindArchiveStale) {
		t.Error("high tier should keep its default")
	}
}

func TestPolicyFromEnv(t *testing.T) {
	t.Setenv("AUTO_APPROVE_LOW", "false")
	t.Setenv("AUTO_APPROVE_MEDIUM", "yes")
	t.Setenv("AUTO_APPROVE_HIGH", "0")

	p := PolicyFromEnv()
	if p.ShouldAutoExecute(model.KindAutoTag) {
		t.Error("AUTO_APPROVE_LOW=false should disable low")
	}
	if !p.ShouldAutoExecute(model.KindMergeDuplicates) {
		t.Error("any non-false value should enable medium")
	}
	if p.ShouldAutoExecute(model.KindArchiveStale) {
		t.Error("AUTO_APPROVE_HIGH=0 should keep high disabled")
	}
}
