package evolution

import (
	"fmt"
	"slices"
	"strings"
)

// DefineEvolution validates triggers and transitions and returns the policy
// for covenantID. Any invalid entry fails the whole call; nothing is dropped.
func DefineEvolution(covenantID string, triggers []EvolutionTrigger, transitions []TransitionFunction, governanceApproval bool) (EvolutionPolicy, error) {
	if strings.TrimSpace(covenantID) == "" {
		return EvolutionPolicy{}, fmt.Errorf("%w: covenant_id must be a non-empty string", ErrInvalidPolicy)
	}

	for i, trig := range triggers {
		if err := ValidateTrigger(trig); err != nil {
			return EvolutionPolicy{}, fmt.Errorf("triggers[%d]: %w", i, err)
		}
	}
	for i, tr := range transitions {
		if err := ValidateTransition(tr); err != nil {
			return EvolutionPolicy{}, fmt.Errorf("transitions[%d]: %w", i, err)
		}
	}

	return EvolutionPolicy{
		CovenantID:         covenantID,
		Triggers:           slices.Clone(triggers),
		Transitions:        slices.Clone(transitions),
		GovernanceApproval: governanceApproval,
	}, nil
}

// ValidateTrigger checks the trigger's enums, condition grammar and guard.
func ValidateTrigger(trig EvolutionTrigger) error {
	if !trig.Type.Valid() {
		return fmt.Errorf("%w: type %q is not one of %v", ErrInvalidTrigger, trig.Type, TriggerTypes)
	}
	if !trig.Action.Valid() {
		return fmt.Errorf("%w: action %q is not one of %v", ErrInvalidTrigger, trig.Action, Actions)
	}
	if _, err := ParseCondition(trig.Type, trig.Condition); err != nil {
		return err
	}
	if trig.Guard != "" {
		guards, err := sharedGuards()
		if err != nil {
			return err
		}
		if err := guards.compile(trig.Guard); err != nil {
			return err
		}
	}
	return nil
}

// ValidateTransition requires both constraint ids and a non-negative cooldown.
func ValidateTransition(tr TransitionFunction) error {
	if strings.TrimSpace(tr.FromConstraint) == "" {
		return fmt.Errorf("%w: from_constraint must be a non-empty string", ErrInvalidTransition)
	}
	if strings.TrimSpace(tr.ToConstraint) == "" {
		return fmt.Errorf("%w: to_constraint must be a non-empty string", ErrInvalidTransition)
	}
	if tr.Cooldown < 0 {
		return fmt.Errorf("%w: cooldown must be >= 0, got %s", ErrInvalidTransition, tr.Cooldown)
	}
	return nil
}
