package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/Mindburn-Labs/covenant/pkg/evolution"
)

// runScoreCmd implements `covenant score`: continuous trigger scoring of an
// agent snapshot under a profile's continuous section.
func runScoreCmd(_ context.Context, a *app, args []string) int {
	cmd := flag.NewFlagSet("score", flag.ContinueOnError)
	cmd.SetOutput(a.stderr)

	var (
		profileRef   string
		agentPath    string
		covenantPath string
		jsonOutput   bool
	)
	cmd.StringVar(&profileRef, "profile", "", "Profile name or YAML path (REQUIRED)")
	cmd.StringVar(&agentPath, "agent", "", "Agent state JSON file (REQUIRED)")
	cmd.StringVar(&covenantPath, "covenant", "", "Covenant state JSON file")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	profile, err := a.loadProfile(profileRef)
	if err != nil {
		a.errorf("%v", err)
		return 2
	}
	scorer, err := profile.ContinuousTrigger()
	if err != nil {
		a.errorf("%v", err)
		return 1
	}

	var agent evolution.AgentState
	if err := readJSON(agentPath, &agent); err != nil {
		a.errorf("--agent: %v", err)
		return 2
	}
	covenant := evolution.CovenantState{ID: profile.CovenantID}
	if covenantPath != "" {
		if err := readJSON(covenantPath, &covenant); err != nil {
			a.errorf("--covenant: %v", err)
			return 2
		}
	}

	res, err := scorer.Evaluate(covenant, agent)
	if err != nil {
		a.errorf("%v", err)
		return 1
	}

	if jsonOutput {
		return a.writeJSON(res)
	}
	_, _ = fmt.Fprintf(a.stdout, "Score: %.4f (threshold %.2f) activated=%t dominant=%s\n",
		res.Score, scorer.ActivationThreshold(), res.Activated, res.DominantAction)
	for _, act := range res.Activations {
		_, _ = fmt.Fprintf(a.stdout, "  %-22s value=%-12g activation=%.4f weight=%g\n", act.Type, act.Value, act.Activation, act.Weight)
	}
	return 0
}
