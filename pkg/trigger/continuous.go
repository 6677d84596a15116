// Package trigger scores evolution triggers on a continuous scale. Each
// trigger maps an agent feature through a sigmoid centred on its threshold,
// and the weighted mean of those activations is compared with an activation
// threshold.
package trigger

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/Mindburn-Labs/covenant/pkg/evolution"
)

const (
	DefaultSteepness           = 10.0
	DefaultWeight              = 1.0
	DefaultActivationThreshold = 0.5
)

// Config describes one continuous trigger. Nil Steepness and Weight take
// their defaults; an explicit zero weight mutes the trigger.
type Config struct {
	Type      evolution.TriggerType `json:"type" yaml:"type"`
	Threshold float64               `json:"threshold" yaml:"threshold"`
	Steepness *float64              `json:"steepness,omitempty" yaml:"steepness,omitempty"`
	Weight    *float64              `json:"weight,omitempty" yaml:"weight,omitempty"`
	Action    evolution.Action      `json:"action" yaml:"action"`
}

// scored is a Config with defaults resolved.
type scored struct {
	Config
	steepness float64
	weight    float64
}

// Activation is the scored contribution of one trigger.
type Activation struct {
	Type       evolution.TriggerType `json:"type"`
	Action     evolution.Action      `json:"action"`
	Value      float64               `json:"value"`
	Activation float64               `json:"activation"`
	Weight     float64               `json:"weight"`
}

// Result is the outcome of one evaluation.
type Result struct {
	Score          float64          `json:"score"`
	Activated      bool             `json:"activated"`
	DominantAction evolution.Action `json:"dominant_action"`
	Activations    []Activation     `json:"activations"`
}

// ContinuousTrigger is an immutable set of scored triggers.
type ContinuousTrigger struct {
	configs             []scored
	activationThreshold float64
	logger              *slog.Logger
}

// NewContinuousTrigger validates configs and applies defaults.
func NewContinuousTrigger(configs []Config, activationThreshold float64) (*ContinuousTrigger, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("%w: at least one trigger is required", ErrInvalidConfig)
	}
	if math.IsNaN(activationThreshold) || activationThreshold < 0 || activationThreshold > 1 {
		return nil, fmt.Errorf("%w: activation threshold must be in [0,1], got %v", ErrInvalidConfig, activationThreshold)
	}

	ct := &ContinuousTrigger{
		configs:             make([]scored, len(configs)),
		activationThreshold: activationThreshold,
		logger:              slog.Default().With("component", "trigger"),
	}
	var total float64
	for i, c := range configs {
		if !c.Type.Valid() {
			return nil, fmt.Errorf("%w: triggers[%d].type %q is not one of %v", ErrInvalidConfig, i, c.Type, evolution.TriggerTypes)
		}
		if !c.Action.Valid() {
			return nil, fmt.Errorf("%w: triggers[%d].action %q is not one of %v", ErrInvalidConfig, i, c.Action, evolution.Actions)
		}
		if math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0) {
			return nil, fmt.Errorf("%w: triggers[%d].threshold must be finite", ErrInvalidConfig, i)
		}
		sc := scored{Config: c, steepness: valueOr(c.Steepness, DefaultSteepness), weight: valueOr(c.Weight, DefaultWeight)}
		if !(sc.steepness > 0) || math.IsInf(sc.steepness, 0) {
			return nil, fmt.Errorf("%w: triggers[%d].steepness must be > 0, got %v", ErrInvalidConfig, i, sc.steepness)
		}
		if !(sc.weight >= 0) || math.IsInf(sc.weight, 0) {
			return nil, fmt.Errorf("%w: triggers[%d].weight must be >= 0, got %v", ErrInvalidConfig, i, sc.weight)
		}
		sc.Steepness, sc.Weight = nil, nil
		total += sc.weight
		ct.configs[i] = sc
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: at least one trigger must have a positive weight", ErrInvalidConfig)
	}
	return ct, nil
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// Configs returns the effective trigger configs, defaults applied.
func (ct *ContinuousTrigger) Configs() []Config {
	out := make([]Config, len(ct.configs))
	for i, sc := range ct.configs {
		steepness, weight := sc.steepness, sc.weight
		out[i] = sc.Config
		out[i].Steepness = &steepness
		out[i].Weight = &weight
	}
	return out
}

// ActivationThreshold returns the combined score needed to activate.
func (ct *ContinuousTrigger) ActivationThreshold() float64 {
	return ct.activationThreshold
}

// Evaluate scores every trigger against agent and covenant.
func (ct *ContinuousTrigger) Evaluate(covenant evolution.CovenantState, agent evolution.AgentState) (Result, error) {
	if err := evolution.ValidateAgentState(agent); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidAgentState, err)
	}

	res := Result{Activations: make([]Activation, len(ct.configs))}
	var weighted, total, best float64
	best = -1
	for i, c := range ct.configs {
		value := Feature(c.Type, covenant, agent)
		a := Sigmoid(c.steepness * (value - c.Threshold))
		res.Activations[i] = Activation{
			Type:       c.Type,
			Action:     c.Action,
			Value:      value,
			Activation: a,
			Weight:     c.weight,
		}
		contribution := c.weight * a
		weighted += contribution
		total += c.weight
		if c.weight > 0 && contribution > best {
			best = contribution
			res.DominantAction = c.Action
		}
	}

	res.Score = weighted / total
	res.Activated = res.Score >= ct.activationThreshold
	ct.logger.Debug("continuous triggers scored",
		"covenant_id", covenant.ID,
		"score", res.Score,
		"activated", res.Activated,
		"dominant_action", res.DominantAction,
	)
	return res, nil
}

// Feature extracts the continuous quantity a trigger type observes.
func Feature(t evolution.TriggerType, covenant evolution.CovenantState, agent evolution.AgentState) float64 {
	switch t {
	case evolution.TriggerBreachEvent:
		return float64(agent.BreachCount)
	case evolution.TriggerTimeElapsed:
		return float64(evolution.ElapsedSinceTransition(covenant, agent).Milliseconds())
	case evolution.TriggerCapabilityChange:
		return float64(len(agent.Capabilities))
	case evolution.TriggerGovernanceVote:
		if len(agent.GovernanceVotes) == 0 {
			return 0
		}
		var yes int
		for _, v := range agent.GovernanceVotes {
			if v {
				yes++
			}
		}
		return float64(yes) / float64(len(agent.GovernanceVotes))
	case evolution.TriggerReputationThreshold:
		return agent.ReputationScore
	default:
		return 0
	}
}

// Sigmoid is the logistic function 1/(1+e^-x).
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
