// Package risk classifies improvement actions into risk tiers and
// decides per-tier auto-execution policy.
package risk

import (
	"os"
	"strings"

	"github.com/rcliao/context-keeper/internal/model"
)

// tierTable maps each known action kind to its intrinsic risk tier.
// Kinds absent from the table classify as high: unknown actions are
// never trusted.
var tierTable = map[model.ActionKind]model.RiskTier{
	model.KindAutoTag:               model.RiskLow,
	model.KindCreateGapStubs:        model.RiskLow,
	model.KindSuggestSchema:         model.RiskLow,
	model.KindPromoteToType:         model.RiskMedium,
	model.KindMergeDuplicates:       model.RiskMedium,
	model.KindArchiveStale:          model.RiskHigh,
	model.KindResolveContradictions: model.RiskHigh,
}

// Classify maps an action kind to its risk tier. Total: unknown kinds
// map to high.
func Classify(kind model.ActionKind) model.RiskTier {
	if tier, ok := tierTable[kind]; ok {
		return tier
	}
	return model.RiskHigh
}

// defaultAutoExecute is the compiled-in policy when no override is set.
var defaultAutoExecute = map[model.RiskTier]bool{
	model.RiskLow:    true,
	model.RiskMedium: false,
	model.RiskHigh:   false,
}

// Policy holds per-tier auto-execute overrides. A nil entry falls back
// to the compiled-in default for that tier.
type Policy struct {
	AutoExecute map[model.RiskTier]*bool
}

// PolicyFromEnv builds a policy from AUTO_APPROVE_LOW, AUTO_APPROVE_MEDIUM
// and AUTO_APPROVE_HIGH. An unset variable keeps the default; any set
// value other than an explicit false/zero sentinel enables auto-execution.
func PolicyFromEnv() Policy {
	p := Policy{AutoExecute: map[model.RiskTier]*bool{}}
	for tier, key := range map[model.RiskTier]string{
		model.RiskLow:    "AUTO_APPROVE_LOW",
		model.RiskMedium: "AUTO_APPROVE_MEDIUM",
		model.RiskHigh:   "AUTO_APPROVE_HIGH",
	} {
		val, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		enabled := !isFalseSentinel(val)
		p.AutoExecute[tier] = &enabled
	}
	return p
}

func isFalseSentinel(val string) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "false", "0", "":
		return true
	}
	return false
}

// ShouldAutoExecute reports whether an action of the given kind may be
// applied without human approval.
func (p Policy) ShouldAutoExecute(kind model.ActionKind) bool {
	tier := Classify(kind)
	if override, ok := p.AutoExecute[tier]; ok && override != nil {
		return *override
	}
	return defaultAutoExecute[tier]
}
