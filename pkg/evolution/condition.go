package evolution

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Condition is the parsed form of an EvolutionTrigger condition string.
// Implementations: ElapsedCondition, ReputationCondition, CapabilityCondition,
// BreachCondition, VoteCondition.
type Condition interface {
	TriggerType() TriggerType
}

// ElapsedCondition fires once more than After has passed since the last transition.
type ElapsedCondition struct {
	After time.Duration
}

func (ElapsedCondition) TriggerType() TriggerType { return TriggerTimeElapsed }

// ComparisonOp is a reputation comparator.
type ComparisonOp string

const (
	OpGreater      ComparisonOp = ">"
	OpLess         ComparisonOp = "<"
	OpGreaterEqual ComparisonOp = ">="
	OpLessEqual    ComparisonOp = "<="
)

// ReputationCondition compares the agent's reputation score against Value.
type ReputationCondition struct {
	Op    ComparisonOp
	Value float64
}

func (ReputationCondition) TriggerType() TriggerType { return TriggerReputationThreshold }

// Satisfied reports whether score passes the comparison.
func (c ReputationCondition) Satisfied(score float64) bool {
	switch c.Op {
	case OpGreater:
		return score > c.Value
	case OpLess:
		return score < c.Value
	case OpGreaterEqual:
		return score >= c.Value
	case OpLessEqual:
		return score <= c.Value
	default:
		return false
	}
}

// CapabilityCondition holds the expected capability set, sorted.
type CapabilityCondition struct {
	Expected []string
}

func (CapabilityCondition) TriggerType() TriggerType { return TriggerCapabilityChange }

// Differs reports whether actual differs from the expected set in length or content.
func (c CapabilityCondition) Differs(actual []string) bool {
	sorted := slices.Clone(actual)
	slices.Sort(sorted)
	return !slices.Equal(c.Expected, sorted)
}

// BreachCondition fires whenever the agent has at least one breach. Label is
// descriptive only.
type BreachCondition struct {
	Label string
}

func (BreachCondition) TriggerType() TriggerType { return TriggerBreachEvent }

// VoteCondition fires when the named proposal has a true vote.
type VoteCondition struct {
	Proposal string
}

func (VoteCondition) TriggerType() TriggerType { return TriggerGovernanceVote }

var reputationPattern = regexp.MustCompile(`^(>=|<=|>|<)\s*([+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?)$`)

// ParseCondition parses a condition string under the grammar of triggerType:
//
//	time_elapsed          non-negative number of milliseconds ("86400000")
//	reputation_threshold  comparator and number (">0.5", "<=0.2")
//	breach_event          any non-empty label
//	governance_vote       non-empty proposal key
//	capability_change     comma-separated capability list, possibly empty
func ParseCondition(triggerType TriggerType, condition string) (Condition, error) {
	trimmed := strings.TrimSpace(condition)

	switch triggerType {
	case TriggerTimeElapsed:
		ms, err := strconv.ParseFloat(trimmed, 64)
		if err != nil || math.IsNaN(ms) || math.IsInf(ms, 0) || ms < 0 {
			return nil, fmt.Errorf("%w: time_elapsed condition %q must be a non-negative number of milliseconds",
				ErrInvalidCondition, condition)
		}
		ns := ms * float64(time.Millisecond)
		if ns >= math.MaxInt64 {
			return ElapsedCondition{After: math.MaxInt64}, nil
		}
		return ElapsedCondition{After: time.Duration(ns)}, nil

	case TriggerReputationThreshold:
		m := reputationPattern.FindStringSubmatch(trimmed)
		if m == nil {
			return nil, fmt.Errorf("%w: reputation_threshold condition %q must match (>|<|>=|<=)<number>",
				ErrInvalidCondition, condition)
		}
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: reputation_threshold condition %q has an invalid number",
				ErrInvalidCondition, condition)
		}
		return ReputationCondition{Op: ComparisonOp(m[1]), Value: v}, nil

	case TriggerBreachEvent:
		if trimmed == "" {
			return nil, fmt.Errorf("%w: breach_event condition must be a non-empty string", ErrInvalidCondition)
		}
		return BreachCondition{Label: trimmed}, nil

	case TriggerGovernanceVote:
		if trimmed == "" {
			return nil, fmt.Errorf("%w: governance_vote condition must name a proposal", ErrInvalidCondition)
		}
		return VoteCondition{Proposal: trimmed}, nil

	case TriggerCapabilityChange:
		return CapabilityCondition{Expected: parseCapabilityList(condition)}, nil

	default:
		return nil, fmt.Errorf("%w: unknown trigger type %q", ErrInvalidTrigger, triggerType)
	}
}

func parseCapabilityList(s string) []string {
	var caps []string
	for _, part := range strings.Split(s, ",") {
		if c := strings.TrimSpace(part); c != "" {
			caps = append(caps, c)
		}
	}
	slices.Sort(caps)
	return caps
}
