package evolution

import (
	"slices"
	"time"
)

// TriggerType identifies what an EvolutionTrigger watches.
type TriggerType string

const (
	TriggerCapabilityChange    TriggerType = "capability_change"
	TriggerTimeElapsed         TriggerType = "time_elapsed"
	TriggerReputationThreshold TriggerType = "reputation_threshold"
	TriggerBreachEvent         TriggerType = "breach_event"
	TriggerGovernanceVote      TriggerType = "governance_vote"
)

// TriggerTypes lists every trigger type in declaration order.
var TriggerTypes = []TriggerType{
	TriggerCapabilityChange,
	TriggerTimeElapsed,
	TriggerReputationThreshold,
	TriggerBreachEvent,
	TriggerGovernanceVote,
}

// Valid reports whether t is one of the declared trigger types.
func (t TriggerType) Valid() bool {
	return slices.Contains(TriggerTypes, t)
}

// Action is the mutation a fired trigger applies to the constraint set.
type Action string

const (
	ActionTighten          Action = "tighten"
	ActionRelax            Action = "relax"
	ActionAddConstraint    Action = "add_constraint"
	ActionRemoveConstraint Action = "remove_constraint"
)

// Actions lists every action in declaration order.
var Actions = []Action{ActionTighten, ActionRelax, ActionAddConstraint, ActionRemoveConstraint}

// Valid reports whether a is one of the declared actions.
func (a Action) Valid() bool {
	return slices.Contains(Actions, a)
}

// GovernanceStatus records the governance outcome attached to an event.
// The zero value means governance played no part in the decision.
type GovernanceStatus string

const (
	GovernanceNone     GovernanceStatus = ""
	GovernanceApproved GovernanceStatus = "approved"
	GovernancePending  GovernanceStatus = "pending"
	GovernanceRejected GovernanceStatus = "rejected"
)

// EvolutionTrigger fires on agent state and names the mutation to apply.
// Condition grammar depends on Type; see ParseCondition.
type EvolutionTrigger struct {
	Type         TriggerType `json:"type" yaml:"type"`
	Condition    string      `json:"condition" yaml:"condition"`
	Action       Action      `json:"action" yaml:"action"`
	ConstraintID string      `json:"constraint_id,omitempty" yaml:"constraint_id,omitempty"`
	// Guard is an optional CEL expression that must also hold for the trigger to fire.
	Guard string `json:"guard,omitempty" yaml:"guard,omitempty"`
}

// TransitionFunction gates how often a constraint may change. It is never
// used to rename constraints.
type TransitionFunction struct {
	FromConstraint string        `json:"from_constraint"`
	ToConstraint   string        `json:"to_constraint"`
	Trigger        string        `json:"trigger"`
	Reversible     bool          `json:"reversible"`
	Cooldown       time.Duration `json:"cooldown"`
}

// EvolutionPolicy is the validated, immutable rule set attached to a covenant.
type EvolutionPolicy struct {
	CovenantID         string               `json:"covenant_id"`
	Triggers           []EvolutionTrigger   `json:"triggers"`
	Transitions        []TransitionFunction `json:"transitions"`
	GovernanceApproval bool                 `json:"governance_approval"`
}

func (p *EvolutionPolicy) clone() *EvolutionPolicy {
	if p == nil {
		return nil
	}
	return &EvolutionPolicy{
		CovenantID:         p.CovenantID,
		Triggers:           slices.Clone(p.Triggers),
		Transitions:        slices.Clone(p.Transitions),
		GovernanceApproval: p.GovernanceApproval,
	}
}

// EvolutionEvent is the immutable audit record of one evolve call.
type EvolutionEvent struct {
	ID                  string           `json:"id"`
	CovenantID          string           `json:"covenant_id"`
	Trigger             EvolutionTrigger `json:"trigger"`
	PreviousConstraints []string         `json:"previous_constraints"`
	NewConstraints      []string         `json:"new_constraints"`
	Timestamp           time.Time        `json:"timestamp"`
	Approved            bool             `json:"approved"`
	GovernanceStatus    GovernanceStatus `json:"governance_status,omitempty"`
	// Digest is "sha256:<hex>" over the canonical JSON of the event without this field.
	Digest string `json:"digest,omitempty"`
}

// AgentState is the caller-supplied snapshot triggers are evaluated against.
type AgentState struct {
	ReputationScore float64         `json:"reputation_score"`
	Capabilities    []string        `json:"capabilities"`
	BreachCount     uint            `json:"breach_count"`
	LastBreachAt    *time.Time      `json:"last_breach_at,omitempty"`
	CurrentTime     time.Time       `json:"current_time"`
	GovernanceVotes map[string]bool `json:"governance_votes,omitempty"`
}

// CovenantState is a covenant's constraint set plus its evolution record.
// Values are never mutated in place; Evolve returns a fresh copy.
type CovenantState struct {
	ID               string           `json:"id"`
	Constraints      []string         `json:"constraints"`
	Policy           *EvolutionPolicy `json:"policy,omitempty"`
	History          []EvolutionEvent `json:"history"`
	LastTransitionAt *time.Time       `json:"last_transition_at,omitempty"`
}

func (c CovenantState) clone() CovenantState {
	out := CovenantState{
		ID:          c.ID,
		Constraints: slices.Clone(c.Constraints),
		Policy:      c.Policy.clone(),
		History:     slices.Clone(c.History),
	}
	if c.LastTransitionAt != nil {
		at := *c.LastTransitionAt
		out.LastTransitionAt = &at
	}
	return out
}

// EvolutionHistory returns a copy of the covenant's audit trail.
func EvolutionHistory(c CovenantState) []EvolutionEvent {
	return slices.Clone(c.History)
}
