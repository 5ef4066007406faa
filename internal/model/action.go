package model

import (
	"encoding/json"
	"time"
)

// ActionKind identifies one improvement action variant.
type ActionKind string

// Known action kinds.
const (
	KindAutoTag               ActionKind = "auto_tag"
	KindMergeDuplicates       ActionKind = "merge_duplicates"
	KindPromoteToType         ActionKind = "promote_to_type"
	KindArchiveStale          ActionKind = "archive_stale"
	KindCreateGapStubs        ActionKind = "create_gap_stubs"
	KindResolveContradictions ActionKind = "resolve_contradictions"
	KindSuggestSchema         ActionKind = "suggest_schema"
)

// RiskTier classifies how much caution an action kind requires.
type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// DuplicatePair names two entries suspected to be near-duplicates.
type DuplicatePair struct {
	AID        string  `json:"a_id"`
	BID        string  `json:"b_id"`
	Similarity float64 `json:"similarity"`
}

// PromotionCandidate names an untyped entry with its best-matching type.
type PromotionCandidate struct {
	EntryID string  `json:"entry_id"`
	Type    string  `json:"type"`
	Score   float64 `json:"score"`
}

// MissedQuery is a search string agents asked for and never found.
type MissedQuery struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

// ContradictionPair names two linked entries that disagree; the older
// side is the one archived on resolution.
type ContradictionPair struct {
	NewerID string `json:"newer_id"`
	OlderID string `json:"older_id"`
}

// SchemaSuggestion is a proposed new schema type from the analyzer.
type SchemaSuggestion struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Per-variant payloads. Exactly one is set on an ImprovementAction,
// matching its Kind.
type (
	AutoTagPayload               struct{ EntryIDs []string }
	MergeDuplicatesPayload       struct{ Pairs []DuplicatePair }
	PromoteToTypePayload         struct{ Candidates []PromotionCandidate }
	ArchiveStalePayload          struct{ EntryIDs []string }
	CreateGapStubsPayload        struct{ Queries []MissedQuery }
	ResolveContradictionsPayload struct{ Pairs []ContradictionPair }
	SuggestSchemaPayload         struct{ Suggestions []SchemaSuggestion }
)

// ImprovementAction is a closed sum over the action kinds. Kind is
// immutable once created; the payload field matching Kind carries the
// data its execution needs.
type ImprovementAction struct {
	Kind ActionKind `json:"kind"`

	AutoTag               *AutoTagPayload               `json:"auto_tag,omitempty"`
	MergeDuplicates       *MergeDuplicatesPayload       `json:"merge_duplicates,omitempty"`
	PromoteToType         *PromoteToTypePayload         `json:"promote_to_type,omitempty"`
	ArchiveStale          *ArchiveStalePayload          `json:"archive_stale,omitempty"`
	CreateGapStubs        *CreateGapStubsPayload        `json:"create_gap_stubs,omitempty"`
	ResolveContradictions *ResolveContradictionsPayload `json:"resolve_contradictions,omitempty"`
	SuggestSchema         *SuggestSchemaPayload         `json:"suggest_schema,omitempty"`
}

// TargetEntryIDs returns every entry the action would mutate. Used by
// the protection gate; kinds that touch no existing entries (gap stubs,
// schema suggestions) return nil.
func (a ImprovementAction) TargetEntryIDs() []string {
	switch a.Kind {
	case KindAutoTag:
		if a.AutoTag != nil {
			return a.AutoTag.EntryIDs
		}
	case KindMergeDuplicates:
		if a.MergeDuplicates != nil {
			var ids []string
			for _, p := range a.MergeDuplicates.Pairs {
				ids = append(ids, p.AID, p.BID)
			}
			return ids
		}
	case KindPromoteToType:
		if a.PromoteToType != nil {
			var ids []string
			for _, c := range a.PromoteToType.Candidates {
				ids = append(ids, c.EntryID)
			}
			return ids
		}
	case KindArchiveStale:
		if a.ArchiveStale != nil {
			return a.ArchiveStale.EntryIDs
		}
	case KindResolveContradictions:
		if a.ResolveContradictions != nil {
			var ids []string
			for _, p := range a.ResolveContradictions.Pairs {
				ids = append(ids, p.NewerID, p.OlderID)
			}
			return ids
		}
	}
	return nil
}

// PendingStatus is the lifecycle state of a queued proposal.
type PendingStatus string

const (
	StatusPending   PendingStatus = "pending"
	StatusApproved  PendingStatus = "approved"
	StatusDismissed PendingStatus = "dismissed"
	StatusExpired   PendingStatus = "expired"
)

// PendingAction is a queued improvement proposal awaiting approval.
// Terminal statuses (approved, dismissed, expired) are never mutated.
type PendingAction struct {
	ID            string            `json:"id"`
	CreatedAt     time.Time         `json:"created_at"`
	ExpiresAt     time.Time         `json:"expires_at"`
	Action        ImprovementAction `json:"action"`
	Risk          RiskTier          `json:"risk"`
	Description   string            `json:"description"`
	Reasoning     string            `json:"reasoning"`
	Preview       json.RawMessage   `json:"preview,omitempty"`
	Status        PendingStatus     `json:"status"`
	DismissReason string            `json:"dismiss_reason,omitempty"`
}

// Protection is a standing veto: bound to one entry, or pattern-scoped
// to an action kind with no entry restriction. Invariant: EntryID or
// Pattern is set, and ProtectedFrom is non-empty.
type Protection struct {
	ID            string       `json:"id"`
	EntryID       string       `json:"entry_id,omitempty"`
	Pattern       ActionKind   `json:"pattern,omitempty"`
	Scope         string       `json:"scope,omitempty"`
	ProtectedFrom []ActionKind `json:"protected_from"`
	Reason        string       `json:"reason"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Blocks reports whether the protection lists kind in ProtectedFrom.
func (p Protection) Blocks(kind ActionKind) bool {
	for _, k := range p.ProtectedFrom {
		if k == kind {
			return true
		}
	}
	return false
}
