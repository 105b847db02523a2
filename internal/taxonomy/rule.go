package taxonomy

import (
	"encoding/json"
	"slices"

	"github.com/google/uuid"
)

// ConditionKind selects how an inference rule condition is matched against
// the resolved tag set.
type ConditionKind string

// Condition kinds.
const (
	ConditionPrefix   ConditionKind = "prefix"
	ConditionEquals   ConditionKind = "equals"
	ConditionContains ConditionKind = "contains"
)

// RuleAction is the effect an inference rule applies when its condition matches.
type RuleAction string

// Rule actions.
const (
	ActionAdd     RuleAction = "add"
	ActionRemove  RuleAction = "remove"
	ActionRequire RuleAction = "require"
)

var conditionKinds = []ConditionKind{ConditionPrefix, ConditionEquals, ConditionContains}
var ruleActions = []RuleAction{ActionAdd, ActionRemove, ActionRequire}

// UnmarshalJSON validates that the decoded string is a known condition kind.
func (k *ConditionKind) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	value := ConditionKind(raw)
	if !slices.Contains(conditionKinds, value) {
		return ErrInvalidRule
	}
	*k = value
	return nil
}

// UnmarshalJSON validates that the decoded string is a known rule action.
func (a *RuleAction) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	value := RuleAction(raw)
	if !slices.Contains(ruleActions, value) {
		return ErrInvalidRule
	}
	*a = value
	return nil
}

// InferenceRule is a deterministic condition → action applied to the full
// resolved tag set after all axes complete. Rules are evaluated in ascending
// Priority order; Position breaks ties between equal priorities.
type InferenceRule struct {
	ID             uuid.UUID     `json:"id"`
	Priority       int           `json:"priority"`
	Position       int           `json:"position"`
	ConditionKind  ConditionKind `json:"condition_kind"`
	ConditionValue string        `json:"condition_value"`
	Action         RuleAction    `json:"action"`
	ActionTag      string        `json:"action_tag"`
	Active         bool          `json:"active"`
}
