package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/Mindburn-Labs/covenant/pkg/evolution"
)

type evolveOutput struct {
	Fired    []evolution.EvolutionTrigger `json:"fired"`
	Events   []evolution.EvolutionEvent   `json:"events"`
	Covenant evolution.CovenantState      `json:"covenant"`
}

// runEvolveCmd implements `covenant evolve`.
//
// Evaluates the profile's triggers against an agent snapshot and evolves the
// covenant once per fired trigger, in policy order. Agent current_time is
// used as the evolution clock.
func runEvolveCmd(_ context.Context, a *app, args []string) int {
	cmd := flag.NewFlagSet("evolve", flag.ContinueOnError)
	cmd.SetOutput(a.stderr)

	var (
		profileRef   string
		agentPath    string
		covenantPath string
		jsonOutput   bool
	)
	cmd.StringVar(&profileRef, "profile", "", "Profile name or YAML path (REQUIRED)")
	cmd.StringVar(&agentPath, "agent", "", "Agent state JSON file (REQUIRED)")
	cmd.StringVar(&covenantPath, "covenant", "", "Covenant state JSON file (default: empty covenant)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	profile, err := a.loadProfile(profileRef)
	if err != nil {
		a.errorf("%v", err)
		return 2
	}
	policy, err := profile.Policy()
	if err != nil {
		a.errorf("%v", err)
		return 1
	}

	var agent evolution.AgentState
	if err := readJSON(agentPath, &agent); err != nil {
		a.errorf("--agent: %v", err)
		return 2
	}

	covenant := evolution.CovenantState{ID: policy.CovenantID, Constraints: []string{}}
	if covenantPath != "" {
		if err := readJSON(covenantPath, &covenant); err != nil {
			a.errorf("--covenant: %v", err)
			return 2
		}
	}
	covenant.Policy = &policy

	engine := evolution.NewEngine(
		evolution.WithClock(func() time.Time { return agent.CurrentTime }),
		evolution.WithLogger(a.logger.With("component", "evolution")),
		evolution.WithMetrics(a.metrics),
	)

	fired, err := engine.EvaluateTriggers(covenant, agent)
	if err != nil {
		a.errorf("%v", err)
		return 1
	}

	out := evolveOutput{Fired: fired, Events: []evolution.EvolutionEvent{}}
	for _, trig := range fired {
		var event evolution.EvolutionEvent
		covenant, event, err = engine.Evolve(covenant, trig)
		if err != nil {
			a.errorf("%v", err)
			return 1
		}
		out.Events = append(out.Events, event)
	}
	out.Covenant = covenant

	if jsonOutput {
		return a.writeJSON(out)
	}

	_, _ = fmt.Fprintf(a.stdout, "Covenant %s: %d trigger(s) fired\n", covenant.ID, len(fired))
	for _, ev := range out.Events {
		status := "applied"
		switch {
		case ev.GovernanceStatus == evolution.GovernancePending:
			status = "pending governance"
		case !ev.Approved:
			status = "blocked by cooldown"
		}
		_, _ = fmt.Fprintf(a.stdout, "  %-18s %-22s %s\n", ev.Trigger.Action, ev.Trigger.ConstraintID, status)
	}
	_, _ = fmt.Fprintf(a.stdout, "Constraints: %v\n", covenant.Constraints)
	return 0
}
