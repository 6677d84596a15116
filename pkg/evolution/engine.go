// Package evolution decides when a covenant's constraints change and applies
// those changes under cooldown and governance gating.
//
// The engine is stateless: every call takes caller-owned CovenantState and
// AgentState snapshots and Evolve returns a fresh CovenantState. Callers
// serialize read-modify-write cycles per covenant.
package evolution

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/Mindburn-Labs/covenant/pkg/canonicalize"
	"github.com/Mindburn-Labs/covenant/pkg/observability"
	"github.com/google/uuid"
)

// Engine evaluates triggers and applies evolutions.
type Engine struct {
	clock   func() time.Time
	newID   func() string
	logger  *slog.Logger
	metrics *observability.EngineMetrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock injects the time source used for cooldowns and event timestamps.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithIDGenerator injects the generator for event ids and generated constraint ids.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics records fired triggers and appended events.
func WithMetrics(m *observability.EngineMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an engine using the wall clock and random UUIDs unless overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		clock:  func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		logger: slog.Default().With("component", "evolution"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ValidateAgentState rejects snapshots that cannot be evaluated.
func ValidateAgentState(agent AgentState) error {
	if math.IsNaN(agent.ReputationScore) || math.IsInf(agent.ReputationScore, 0) {
		return fmt.Errorf("%w: reputation_score must be a finite number, got %v", ErrInvalidAgentState, agent.ReputationScore)
	}
	if agent.CurrentTime.IsZero() {
		return fmt.Errorf("%w: current_time is required", ErrInvalidAgentState)
	}
	for i, c := range agent.Capabilities {
		if c == "" {
			return fmt.Errorf("%w: capabilities[%d] is empty", ErrInvalidAgentState, i)
		}
	}
	return nil
}

// EvaluateTriggers returns the policy triggers that fire for agent. Every
// trigger is evaluated; a malformed condition or guard fails the call.
func (e *Engine) EvaluateTriggers(covenant CovenantState, agent AgentState) ([]EvolutionTrigger, error) {
	if err := ValidateAgentState(agent); err != nil {
		return nil, err
	}
	if covenant.Policy == nil {
		return nil, nil
	}

	var fired []EvolutionTrigger
	for i, trig := range covenant.Policy.Triggers {
		ok, err := e.fires(covenant, agent, trig)
		if err != nil {
			return nil, fmt.Errorf("triggers[%d]: %w", i, err)
		}
		if !ok {
			continue
		}
		fired = append(fired, trig)
		e.metrics.RecordTriggerFired(context.Background(), string(trig.Type))
		e.logger.Debug("trigger fired",
			"covenant_id", covenant.ID,
			"type", trig.Type,
			"action", trig.Action,
			"constraint_id", trig.ConstraintID,
		)
	}
	return fired, nil
}

func (e *Engine) fires(covenant CovenantState, agent AgentState, trig EvolutionTrigger) (bool, error) {
	if !trig.Action.Valid() {
		return false, fmt.Errorf("%w: action %q is not one of %v", ErrInvalidTrigger, trig.Action, Actions)
	}
	cond, err := ParseCondition(trig.Type, trig.Condition)
	if err != nil {
		return false, err
	}

	var hit bool
	switch c := cond.(type) {
	case ElapsedCondition:
		hit = ElapsedSinceTransition(covenant, agent) > c.After
	case ReputationCondition:
		hit = c.Satisfied(agent.ReputationScore)
	case BreachCondition:
		hit = agent.BreachCount > 0
	case CapabilityCondition:
		hit = c.Differs(agent.Capabilities)
	case VoteCondition:
		hit = agent.GovernanceVotes[c.Proposal]
	default:
		return false, fmt.Errorf("%w: unhandled condition %T", ErrInvalidCondition, cond)
	}
	if !hit || trig.Guard == "" {
		return hit, nil
	}

	guards, err := sharedGuards()
	if err != nil {
		return false, err
	}
	return guards.eval(trig.Guard, covenant, agent)
}

// ElapsedSinceTransition measures from the last transition, or from the Unix
// epoch when the covenant has never transitioned.
func ElapsedSinceTransition(covenant CovenantState, agent AgentState) time.Duration {
	since := time.UnixMilli(0)
	if covenant.LastTransitionAt != nil {
		since = *covenant.LastTransitionAt
	}
	return agent.CurrentTime.Sub(since)
}

// CanEvolve reports whether trigger could be applied right now: a policy is
// attached, governance does not require a vote, and no matching transition
// is still cooling down.
func (e *Engine) CanEvolve(covenant CovenantState, trigger EvolutionTrigger) bool {
	if covenant.Policy == nil {
		return false
	}
	if covenant.Policy.GovernanceApproval && trigger.Type != TriggerGovernanceVote {
		return false
	}
	return !coolingDown(covenant, trigger, e.clock())
}

// coolingDown scans the policy transitions for one that governs trigger and
// whose cooldown has not elapsed since the last transition. A transition
// governs the trigger when its from-constraint is present and either its
// to-constraint is the trigger's target, the action is tighten, or the action
// is relax and the from-constraint is the target.
func coolingDown(covenant CovenantState, trigger EvolutionTrigger, now time.Time) bool {
	if covenant.Policy == nil || covenant.LastTransitionAt == nil {
		return false
	}
	elapsed := now.Sub(*covenant.LastTransitionAt)

	for _, tr := range covenant.Policy.Transitions {
		if !slices.Contains(covenant.Constraints, tr.FromConstraint) {
			continue
		}
		matches := tr.ToConstraint == trigger.ConstraintID ||
			trigger.Action == ActionTighten ||
			(trigger.Action == ActionRelax && tr.FromConstraint == trigger.ConstraintID)
		if matches && elapsed < tr.Cooldown {
			return true
		}
	}
	return false
}

// Evolve applies trigger to covenant and returns the new state with exactly
// one event appended to its history. Governance-pending and cooldown-blocked
// evolutions are returned as unapproved events, not errors.
func (e *Engine) Evolve(covenant CovenantState, trigger EvolutionTrigger) (CovenantState, EvolutionEvent, error) {
	if !trigger.Type.Valid() {
		return CovenantState{}, EvolutionEvent{}, fmt.Errorf("%w: type %q is not one of %v", ErrInvalidTrigger, trigger.Type, TriggerTypes)
	}
	if !trigger.Action.Valid() {
		return CovenantState{}, EvolutionEvent{}, fmt.Errorf("%w: action %q is not one of %v", ErrInvalidTrigger, trigger.Action, Actions)
	}

	now := e.clock()
	next := covenant.clone()
	previous := slices.Clone(covenant.Constraints)
	if previous == nil {
		previous = []string{}
	}

	event := EvolutionEvent{
		ID:                  e.newID(),
		CovenantID:          covenant.ID,
		Trigger:             trigger,
		PreviousConstraints: previous,
		Timestamp:           now,
	}

	governanceRequired := covenant.Policy != nil && covenant.Policy.GovernanceApproval

	switch {
	case governanceRequired && trigger.Type != TriggerGovernanceVote:
		event.NewConstraints = slices.Clone(previous)
		event.GovernanceStatus = GovernancePending
	case coolingDown(covenant, trigger, now):
		event.NewConstraints = slices.Clone(previous)
	default:
		next.Constraints = e.apply(previous, trigger)
		next.LastTransitionAt = &now
		event.NewConstraints = slices.Clone(next.Constraints)
		event.Approved = true
		if governanceRequired {
			event.GovernanceStatus = GovernanceApproved
		}
	}

	digest, err := EventDigest(event)
	if err != nil {
		return CovenantState{}, EvolutionEvent{}, fmt.Errorf("evolution: digest event: %w", err)
	}
	event.Digest = digest
	next.History = append(next.History, event)

	e.metrics.RecordEvolution(context.Background(), covenant.ID, string(trigger.Action), string(event.GovernanceStatus), event.Approved)
	e.logger.Info("evolution recorded",
		"covenant_id", covenant.ID,
		"event_id", event.ID,
		"action", trigger.Action,
		"approved", event.Approved,
		"governance_status", event.GovernanceStatus,
		"constraints", len(event.NewConstraints),
	)
	return next, event, nil
}

// apply returns a new constraint list with trigger's action applied.
func (e *Engine) apply(constraints []string, trigger EvolutionTrigger) []string {
	out := slices.Clone(constraints)
	if out == nil {
		out = []string{}
	}

	switch trigger.Action {
	case ActionTighten:
		id := trigger.ConstraintID
		if id == "" {
			id = "tightened-" + e.newID()
		}
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	case ActionRelax, ActionRemoveConstraint:
		if trigger.ConstraintID != "" {
			out = slices.DeleteFunc(out, func(c string) bool { return c == trigger.ConstraintID })
		}
	case ActionAddConstraint:
		if trigger.ConstraintID != "" && !slices.Contains(out, trigger.ConstraintID) {
			out = append(out, trigger.ConstraintID)
		}
	}
	return out
}

// EventDigest returns the canonical digest of event, ignoring any digest it already carries.
func EventDigest(event EvolutionEvent) (string, error) {
	event.Digest = ""
	return canonicalize.Digest(event)
}

// VerifyEventDigest reports whether event's digest matches its content.
func VerifyEventDigest(event EvolutionEvent) (bool, error) {
	want, err := EventDigest(event)
	if err != nil {
		return false, err
	}
	return want == event.Digest, nil
}
