package evolution

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// guardEvaluator compiles and caches CEL trigger guards.
//
// Guards see two variables:
//
//	agent     {reputation: double, capabilities: list(string), breaches: int, votes: map(string, bool), elapsed_ms: int}
//	covenant  {id: string, constraints: list(string)}
type guardEvaluator struct {
	env      *cel.Env
	mu       sync.RWMutex
	prgCache map[string]cel.Program
}

var sharedGuards = sync.OnceValues(newGuardEvaluator)

func newGuardEvaluator() (*guardEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("agent", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("covenant", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &guardEvaluator{
		env:      env,
		prgCache: make(map[string]cel.Program),
	}, nil
}

func (g *guardEvaluator) program(expr string) (cel.Program, error) {
	g.mu.RLock()
	prg, hit := g.prgCache[expr]
	g.mu.RUnlock()
	if hit {
		return prg, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if prg, hit = g.prgCache[expr]; hit {
		return prg, nil
	}

	ast, issues := g.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: compile %q: %v", ErrInvalidGuard, expr, issues.Err())
	}
	out := ast.OutputType()
	if !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("%w: %q yields %s, want bool", ErrInvalidGuard, expr, out)
	}
	p, err := g.env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: program %q: %v", ErrInvalidGuard, expr, err)
	}
	g.prgCache[expr] = p
	return p, nil
}

// compile checks that expr is a usable guard without evaluating it.
func (g *guardEvaluator) compile(expr string) error {
	_, err := g.program(expr)
	return err
}

func (g *guardEvaluator) eval(expr string, covenant CovenantState, agent AgentState) (bool, error) {
	prg, err := g.program(expr)
	if err != nil {
		return false, err
	}

	votes := agent.GovernanceVotes
	if votes == nil {
		votes = map[string]bool{}
	}
	caps := agent.Capabilities
	if caps == nil {
		caps = []string{}
	}
	constraints := covenant.Constraints
	if constraints == nil {
		constraints = []string{}
	}

	out, _, err := prg.Eval(map[string]any{
		"agent": map[string]any{
			"reputation":   agent.ReputationScore,
			"capabilities": caps,
			"breaches":     int64(agent.BreachCount),
			"votes":        votes,
			"elapsed_ms":   ElapsedSinceTransition(covenant, agent).Milliseconds(),
		},
		"covenant": map[string]any{
			"id":          covenant.ID,
			"constraints": constraints,
		},
	})
	if err != nil {
		return false, fmt.Errorf("%w: eval %q: %v", ErrInvalidGuard, expr, err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q did not yield a bool", ErrInvalidGuard, expr)
	}
	return val, nil
}
