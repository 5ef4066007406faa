package observer

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rcliao/context-keeper/internal/model"
)

// State is the whole-document control-plane state: the pending action
// queue, the protection registry, and the cached self-model. JSON
// fields unknown to this version survive a load/persist round trip.
type State struct {
	Pending     []model.PendingAction
	Protections []model.Protection
	SelfModel   *SelfModel

	extra map[string]json.RawMessage
}

const (
	keyPending     = "pending_actions"
	keyProtections = "protections"
	keySelfModel   = "self_model"
)

// MarshalJSON emits known fields plus any preserved unknown ones.
func (s State) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(s.extra)+3)
	for k, v := range s.extra {
		out[k] = v
	}
	var err error
	if out[keyPending], err = json.Marshal(s.Pending); err != nil {
		return nil, err
	}
	if out[keyProtections], err = json.Marshal(s.Protections); err != nil {
		return nil, err
	}
	if s.SelfModel != nil {
		if out[keySelfModel], err = json.Marshal(s.SelfModel); err != nil {
			return nil, err
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes known fields and stashes everything else.
func (s *State) UnmarshalJSON(b []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if v, ok := raw[keyPending]; ok {
		if err := json.Unmarshal(v, &s.Pending); err != nil {
			return err
		}
		delete(raw, keyPending)
	}
	if v, ok := raw[keyProtections]; ok {
		if err := json.Unmarshal(v, &s.Protections); err != nil {
			return err
		}
		delete(raw, keyProtections)
	}
	if v, ok := raw[keySelfModel]; ok {
		if err := json.Unmarshal(v, &s.SelfModel); err != nil {
			return err
		}
		delete(raw, keySelfModel)
	}
	s.extra = raw
	return nil
}

// LoadRaw reads the control state document. A missing file yields an
// empty state.
func (o *Observer) LoadRaw() (*State, error) {
	b, err := os.ReadFile(o.statePath())
	if os.IsNotExist(err) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read control state: %w", err)
	}
	var s State
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode control state: %w", err)
	}
	return &s, nil
}

// PersistRaw writes the whole control state document atomically.
func (o *Observer) PersistRaw(s *State) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := o.statePath() + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write control state: %w", err)
	}
	return os.Rename(tmp, o.statePath())
}
