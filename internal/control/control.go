// Package control implements the risk-gated control plane: the pending
// action queue, the protection registry, and the policy that decides
// whether a proposed action runs immediately or waits for approval.
package control

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/rcliao/context-keeper/internal/model"
	"github.com/rcliao/context-keeper/internal/observer"
	"github.com/rcliao/context-keeper/internal/risk"
)

// autoLearnThreshold is the dismissal count per action kind that
// installs a pattern-level protection.
const autoLearnThreshold = 3

// Plane composes the queue, the registry, and the risk policy. Every
// mutating operation is a read-modify-write of the whole control state
// document; the mutex keeps "at most one mutator" explicit.
type Plane struct {
	obs    *observer.Observer
	policy risk.Policy
	log    *zap.Logger

	mu      sync.Mutex
	entropy *rand.Rand
}

// New creates a control plane over the given observer state.
func New(obs *observer.Observer, policy risk.Policy, log *zap.Logger) *Plane {
	if log == nil {
		log = zap.NewNop()
	}
	return &Plane{
		obs:     obs,
		policy:  policy,
		log:     log,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *Plane) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), p.entropy).String()
}

// ShouldAutoExecute reports whether the policy allows immediate
// execution for the action's tier.
func (p *Plane) ShouldAutoExecute(kind model.ActionKind) bool {
	return p.policy.ShouldAutoExecute(kind)
}

// Proposal is the input to Enqueue.
type Proposal struct {
	Action      model.ImprovementAction
	Description string
	Reasoning   string
	Preview     any
	TTL         time.Duration
}

// Enqueue assigns a fresh id, stamps the proposal pending, and persists it.
func (p *Plane) Enqueue(proposal Proposal) (*model.PendingAction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := p.obs.LoadRaw()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	pa := model.PendingAction{
		ID:          p.newID(),
		CreatedAt:   now,
		ExpiresAt:   now.Add(proposal.TTL),
		Action:      proposal.Action,
		Risk:        risk.Classify(proposal.Action.Kind),
		Description: proposal.Description,
		Reasoning:   proposal.Reasoning,
		Status:      model.StatusPending,
	}
	if proposal.Preview != nil {
		if b, err := json.Marshal(proposal.Preview); err == nil {
			pa.Preview = b
		}
	}

	state.Pending = append(state.Pending, pa)
	if err := p.obs.PersistRaw(state); err != nil {
		return nil, err
	}
	p.log.Info("enqueued pending action",
		zap.String("id", pa.ID),
		zap.String("kind", string(pa.Action.Kind)),
		zap.String("risk", string(pa.Risk)))
	return &pa, nil
}

// ListPending returns actions still awaiting approval, in insertion order.
func (p *Plane) ListPending() ([]model.PendingAction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := p.obs.LoadRaw()
	if err != nil {
		return nil, err
	}
	var pending []model.PendingAction
	for _, pa := range state.Pending {
		if pa.Status == model.StatusPending {
			pending = append(pending, pa)
		}
	}
	return pending, nil
}

// HasPendingKind reports whether a pending action of the given kind is
// already queued. Used to keep ticks from stacking duplicate proposals.
func (p *Plane) HasPendingKind(kind model.ActionKind) (bool, error) {
	pending, err := p.ListPending()
	if err != nil {
		return false, err
	}
	for _, pa := range pending {
		if pa.Action.Kind == kind {
			return true, nil
		}
	}
	return false, nil
}

// ApproveResult reports one approval attempt. Approval records intent
// only; the caller executes the returned action.
type ApproveResult struct {
	ID      string                   `json:"id"`
	OK      bool                     `json:"ok"`
	Message string                   `json:"message"`
	Action  *model.ImprovementAction `json:"action,omitempty"`
}

// Approve transitions a pending action to approved and returns its
// payload for execution. Absent or non-pending ids fail softly.
func (p *Plane) Approve(id string) (ApproveResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.approveLocked(id)
}

func (p *Plane) approveLocked(id string) (ApproveResult, error) {
	state, err := p.obs.LoadRaw()
	if err != nil {
		return ApproveResult{ID: id}, err
	}

	for i := range state.Pending {
		pa := &state.Pending[i]
		if pa.ID != id {
			continue
		}
		if pa.Status != model.StatusPending {
			return ApproveResult{
				ID: id, Message: fmt.Sprintf("already %s", pa.Status),
			}, nil
		}
		pa.Status = model.StatusApproved
		if err := p.obs.PersistRaw(state); err != nil {
			return ApproveResult{ID: id}, err
		}
		p.log.Info("approved pending action",
			zap.String("id", id), zap.String("kind", string(pa.Action.Kind)))
		action := pa.Action
		return ApproveResult{
			ID:      id,
			OK:      true,
			Message: fmt.Sprintf("approved %s: %s", pa.Action.Kind, pa.Description),
			Action:  &action,
		}, nil
	}
	return ApproveResult{ID: id, Message: "not found"}, nil
}

// Dismiss transitions a pending action to dismissed. Returns false if
// the id is absent or no longer pending. A non-empty reason against
// named target entries spawns per-entry protections, and every
// dismissal re-evaluates the auto-learning rule.
func (p *Plane) Dismiss(id, reason string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dismissLocked(id, reason)
}

func (p *Plane) dismissLocked(id, reason string) (bool, error) {
	state, err := p.obs.LoadRaw()
	if err != nil {
		return false, err
	}

	for i := range state.Pending {
		pa := &state.Pending[i]
		if pa.ID != id {
			continue
		}
		if pa.Status != model.StatusPending {
			return false, nil
		}
		pa.Status = model.StatusDismissed
		pa.DismissReason = reason

		if reason != "" {
			for _, entryID := range pa.Action.TargetEntryIDs() {
				addEntryProtection(state, model.Protection{
					ID:            p.newID(),
					EntryID:       entryID,
					ProtectedFrom: []model.ActionKind{pa.Action.Kind},
					Reason:        reason,
					CreatedAt:     time.Now().UTC(),
				})
			}
		}
		p.autoLearn(state, pa.Action.Kind)

		if err := p.obs.PersistRaw(state); err != nil {
			return false, err
		}
		p.log.Info("dismissed pending action",
			zap.String("id", id),
			zap.String("kind", string(pa.Action.Kind)),
			zap.String("reason", reason))
		return true, nil
	}
	return false, nil
}

// BulkApprove applies Approve to each id independently; one failed id
// does not block the rest.
func (p *Plane) BulkApprove(ids []string) ([]ApproveResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	results := make([]ApproveResult, 0, len(ids))
	for _, id := range ids {
		res, err := p.approveLocked(id)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// BulkDismiss applies Dismiss to each id independently and returns how
// many transitioned.
func (p *Plane) BulkDismiss(ids []string, reason string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dismissed := 0
	for _, id := range ids {
		ok, err := p.dismissLocked(id, reason)
		if err != nil {
			return dismissed, err
		}
		if ok {
			dismissed++
		}
	}
	return dismissed, nil
}

// UpdateSelfModel replaces the cached freshness summary in the control
// state document.
func (p *Plane) UpdateSelfModel(sm observer.SelfModel) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := p.obs.LoadRaw()
	if err != nil {
		return err
	}
	state.SelfModel = &sm
	return p.obs.PersistRaw(state)
}

// SelfModel returns the cached freshness summary, or nil before the
// first tick.
func (p *Plane) SelfModel() (*observer.SelfModel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := p.obs.LoadRaw()
	if err != nil {
		return nil, err
	}
	return state.SelfModel, nil
}

// ExpireStale flips pending actions past their expiry to expired and
// returns the count. Persists once, only if anything changed.
func (p *Plane) ExpireStale() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := p.obs.LoadRaw()
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	expired := 0
	for i := range state.Pending {
		pa := &state.Pending[i]
		if pa.Status == model.StatusPending && now.After(pa.ExpiresAt) {
			pa.Status = model.StatusExpired
			expired++
		}
	}
	if expired > 0 {
		if err := p.obs.PersistRaw(state); err != nil {
			return 0, err
		}
		p.log.Info("expired stale pending actions", zap.Int("count", expired))
	}
	return expired, nil
}
