// Package governance classifies a covenant network into a governance phase
// by agent population and computes voting power under the phase's scheme.
// As the population grows, decision making moves from a founder to a
// council, then to participation-weighted and finally reputation-weighted
// voting.
package governance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/Mindburn-Labs/covenant/pkg/observability"
)

var (
	ErrInvalidAgentCount = errors.New("governance: invalid agent count")
	ErrUnknownScheme     = errors.New("governance: unknown voting scheme")
)

// Unbounded marks the open upper end of the terminal phase.
const Unbounded = math.MaxInt

type Phase string

const (
	PhaseCentralized           Phase = "centralized"
	PhaseAdvisoryCouncil       Phase = "advisory_council"
	PhaseParticipationWeighted Phase = "participation_weighted"
	PhaseFullyDecentralized    Phase = "fully_decentralized"
)

type Mechanism string

const (
	MechanismFounderDecision Mechanism = "founder_decision"
	MechanismCouncilVote     Mechanism = "council_vote"
	MechanismWeightedVote    Mechanism = "weighted_vote"
	MechanismTokenGovernance Mechanism = "token_governance"
)

type VotingScheme string

const (
	SchemeEqual                 VotingScheme = "equal"
	SchemeStakeWeighted         VotingScheme = "stake_weighted"
	SchemeParticipationWeighted VotingScheme = "participation_weighted"
	SchemeReputationWeighted    VotingScheme = "reputation_weighted"
)

// PhaseSpec binds a phase to its inclusive agent-count range.
type PhaseSpec struct {
	Phase         Phase        `json:"phase"`
	MinAgents     int          `json:"min_agents"`
	MaxAgents     int          `json:"max_agents"`
	Mechanism     Mechanism    `json:"mechanism"`
	VotingWeights VotingScheme `json:"voting_weights"`
}

// Phases is the ordered phase table.
var Phases = []PhaseSpec{
	{PhaseCentralized, 0, 99, MechanismFounderDecision, SchemeEqual},
	{PhaseAdvisoryCouncil, 100, 999, MechanismCouncilVote, SchemeStakeWeighted},
	{PhaseParticipationWeighted, 1000, 9999, MechanismWeightedVote, SchemeParticipationWeighted},
	{PhaseFullyDecentralized, 10000, Unbounded, MechanismTokenGovernance, SchemeReputationWeighted},
}

// PhaseTransitionRecord is appended whenever the phase changes.
type PhaseTransitionRecord struct {
	From       Phase     `json:"from"`
	To         Phase     `json:"to"`
	AgentCount int       `json:"agent_count"`
	Timestamp  time.Time `json:"timestamp"`
}

// State is an immutable governance snapshot.
type State struct {
	CurrentPhase      Phase                   `json:"current_phase"`
	AgentCount        int                     `json:"agent_count"`
	PhaseTransitions  []PhaseTransitionRecord `json:"phase_transitions"`
	IsTemporary       bool                    `json:"is_temporary"`
	DecisionMechanism Mechanism               `json:"decision_mechanism"`
	VotingWeights     VotingScheme            `json:"voting_weights"`
}

// ClassifyPhase returns the phase whose range contains agentCount.
func ClassifyPhase(agentCount int) (PhaseSpec, error) {
	if agentCount < 0 {
		return PhaseSpec{}, fmt.Errorf("%w: must be >= 0, got %d", ErrInvalidAgentCount, agentCount)
	}
	for _, p := range Phases {
		if agentCount >= p.MinAgents && agentCount <= p.MaxAgents {
			return p, nil
		}
	}
	return Phases[len(Phases)-1], nil
}

// InitializeGovernance returns the starting state for agentCount agents.
func InitializeGovernance(agentCount int) (State, error) {
	spec, err := ClassifyPhase(agentCount)
	if err != nil {
		return State{}, err
	}
	return State{
		CurrentPhase:      spec.Phase,
		AgentCount:        agentCount,
		PhaseTransitions:  []PhaseTransitionRecord{},
		IsTemporary:       spec.Phase == PhaseCentralized,
		DecisionMechanism: spec.Mechanism,
		VotingWeights:     spec.VotingWeights,
	}, nil
}

// TransitionEvaluation reports what a new agent count would do to state.
type TransitionEvaluation struct {
	ShouldTransition bool  `json:"should_transition"`
	CurrentPhase     Phase `json:"current_phase"`
	TargetPhase      Phase `json:"target_phase"`
	// AgentsUntilNext is the number of additional agents needed to leave
	// the target phase upward, or Unbounded in the terminal phase.
	AgentsUntilNext int `json:"agents_until_next"`
}

// EvaluatePhaseTransition classifies newAgentCount against state without
// changing it.
func EvaluatePhaseTransition(state State, newAgentCount int) (TransitionEvaluation, error) {
	spec, err := ClassifyPhase(newAgentCount)
	if err != nil {
		return TransitionEvaluation{}, err
	}
	until := Unbounded
	if spec.MaxAgents != Unbounded {
		until = spec.MaxAgents + 1 - newAgentCount
	}
	return TransitionEvaluation{
		ShouldTransition: spec.Phase != state.CurrentPhase,
		CurrentPhase:     state.CurrentPhase,
		TargetPhase:      spec.Phase,
		AgentsUntilNext:  until,
	}, nil
}

// TransitionPhase applies newAgentCount at the current wall-clock time.
func TransitionPhase(state State, newAgentCount int) (State, error) {
	return TransitionPhaseAt(state, newAgentCount, time.Now().UTC())
}

// TransitionPhaseAt returns a new state for newAgentCount. Moves in either
// direction append a transition record stamped now; an unchanged phase only
// updates the agent count.
func TransitionPhaseAt(state State, newAgentCount int, now time.Time) (State, error) {
	spec, err := ClassifyPhase(newAgentCount)
	if err != nil {
		return State{}, err
	}

	next := state
	next.AgentCount = newAgentCount
	next.PhaseTransitions = slices.Clone(state.PhaseTransitions)
	if next.PhaseTransitions == nil {
		next.PhaseTransitions = []PhaseTransitionRecord{}
	}
	if spec.Phase == state.CurrentPhase {
		return next, nil
	}

	next.PhaseTransitions = append(next.PhaseTransitions, PhaseTransitionRecord{
		From:       state.CurrentPhase,
		To:         spec.Phase,
		AgentCount: newAgentCount,
		Timestamp:  now,
	})
	next.CurrentPhase = spec.Phase
	next.DecisionMechanism = spec.Mechanism
	next.VotingWeights = spec.VotingWeights
	next.IsTemporary = spec.Phase == PhaseCentralized
	return next, nil
}

// VoterProfile holds the optional attributes a scheme may weigh. Nil fields
// take the scheme default.
type VoterProfile struct {
	Stake             *float64 `json:"stake,omitempty"`
	ParticipationRate *float64 `json:"participation_rate,omitempty"`
	ReputationScore   *float64 `json:"reputation_score,omitempty"`
}

// ComputeVotingPower returns voter's power under state's voting scheme.
func ComputeVotingPower(state State, voter VoterProfile) (float64, error) {
	switch state.VotingWeights {
	case SchemeEqual:
		return 1, nil
	case SchemeStakeWeighted:
		return valueOr(voter.Stake, 1), nil
	case SchemeParticipationWeighted:
		return valueOr(voter.ParticipationRate, 0.5) * 10, nil
	case SchemeReputationWeighted:
		return valueOr(voter.ReputationScore, 0.5) * 20, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownScheme, state.VotingWeights)
	}
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// Bootstrap applies transitions with an injected clock, logging each phase
// change and recording it as a metric.
type Bootstrap struct {
	clock   func() time.Time
	logger  *slog.Logger
	metrics *observability.EngineMetrics
}

// Option configures a Bootstrap.
type Option func(*Bootstrap)

func WithClock(clock func() time.Time) Option {
	return func(b *Bootstrap) { b.clock = clock }
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *Bootstrap) { b.logger = logger }
}

func WithMetrics(m *observability.EngineMetrics) Option {
	return func(b *Bootstrap) { b.metrics = m }
}

// NewBootstrap returns a Bootstrap using the wall clock unless overridden.
func NewBootstrap(opts ...Option) *Bootstrap {
	b := &Bootstrap{
		clock:  func() time.Time { return time.Now().UTC() },
		logger: slog.Default().With("component", "governance"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Transition applies newAgentCount to state.
func (b *Bootstrap) Transition(ctx context.Context, state State, newAgentCount int) (State, error) {
	next, err := TransitionPhaseAt(state, newAgentCount, b.clock())
	if err != nil {
		return State{}, err
	}
	if next.CurrentPhase == state.CurrentPhase {
		b.logger.Debug("governance phase unchanged", "phase", next.CurrentPhase, "agents", newAgentCount)
		return next, nil
	}

	b.metrics.RecordPhaseTransition(ctx, string(state.CurrentPhase), string(next.CurrentPhase))
	b.logger.Info("governance phase transition",
		"from", state.CurrentPhase,
		"to", next.CurrentPhase,
		"agents", newAgentCount,
		"mechanism", next.DecisionMechanism,
	)
	return next, nil
}
