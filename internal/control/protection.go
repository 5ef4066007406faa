package control

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/context-keeper/internal/model"
	"github.com/rcliao/context-keeper/internal/observer"
)

// IsProtected reports whether a stored protection vetoes the given
// action kind against the given entry: either a protection naming that
// exact entry, or a pattern-scoped one with no entry restriction, and
// in both cases listing the kind in ProtectedFrom.
func (p *Plane) IsProtected(entryID string, kind model.ActionKind) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := p.obs.LoadRaw()
	if err != nil {
		return false, err
	}
	return isProtected(state, entryID, kind), nil
}

func isProtected(state *observer.State, entryID string, kind model.ActionKind) bool {
	for _, prot := range state.Protections {
		if !prot.Blocks(kind) {
			continue
		}
		if prot.EntryID != "" && prot.EntryID == entryID {
			return true
		}
		if prot.EntryID == "" && prot.Pattern == kind {
			return true
		}
	}
	return false
}

// Protections returns all stored protections in insertion order.
func (p *Plane) Protections() ([]model.Protection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := p.obs.LoadRaw()
	if err != nil {
		return nil, err
	}
	return state.Protections, nil
}

// AddProtection validates and persists an explicit protection.
func (p *Plane) AddProtection(prot model.Protection) (*model.Protection, error) {
	if prot.EntryID == "" && prot.Pattern == "" {
		return nil, fmt.Errorf("protection needs an entry id or a pattern")
	}
	if len(prot.ProtectedFrom) == 0 {
		return nil, fmt.Errorf("protection needs at least one blocked action kind")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := p.obs.LoadRaw()
	if err != nil {
		return nil, err
	}
	prot.ID = p.newID()
	prot.CreatedAt = time.Now().UTC()
	state.Protections = append(state.Protections, prot)
	if err := p.obs.PersistRaw(state); err != nil {
		return nil, err
	}
	return &prot, nil
}

// RemoveProtection deletes protections keyed by entry and kind.
// Returns how many were removed.
func (p *Plane) RemoveProtection(entryID string, kind model.ActionKind) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := p.obs.LoadRaw()
	if err != nil {
		return 0, err
	}

	var kept []model.Protection
	removed := 0
	for _, prot := range state.Protections {
		if prot.EntryID == entryID && prot.Blocks(kind) {
			removed++
			continue
		}
		kept = append(kept, prot)
	}
	if removed > 0 {
		state.Protections = kept
		if err := p.obs.PersistRaw(state); err != nil {
			return 0, err
		}
	}
	return removed, nil
}

// addEntryProtection appends an entry-scoped protection unless an
// identical one already exists.
func addEntryProtection(state *observer.State, prot model.Protection) {
	for _, existing := range state.Protections {
		if existing.EntryID == prot.EntryID && existing.Blocks(prot.ProtectedFrom[0]) {
			return
		}
	}
	state.Protections = append(state.Protections, prot)
}

// autoLearn installs a pattern-level protection for a kind once its
// dismissal count reaches the threshold. The count is derived from the
// persisted dismissal history on every call, so the rule stays
// idempotent across restarts.
func (p *Plane) autoLearn(state *observer.State, kind model.ActionKind) {
	dismissals := 0
	for _, pa := range state.Pending {
		if pa.Status == model.StatusDismissed && pa.Action.Kind == kind {
			dismissals++
		}
	}
	if dismissals < autoLearnThreshold {
		return
	}
	for _, prot := range state.Protections {
		if prot.EntryID == "" && prot.Pattern == kind {
			return
		}
	}
	state.Protections = append(state.Protections, model.Protection{
		ID:            p.newID(),
		Pattern:       kind,
		ProtectedFrom: []model.ActionKind{kind},
		Reason:        fmt.Sprintf("auto-learned: %s dismissed %d times", kind, dismissals),
		CreatedAt:     time.Now().UTC(),
	})
	p.log.Info("auto-learned pattern protection",
		zap.String("kind", string(kind)), zap.Int("dismissals", dismissals))
}
