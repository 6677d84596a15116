package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/Mindburn-Labs/covenant/pkg/decay"
	"github.com/Mindburn-Labs/covenant/pkg/evolution"
	"github.com/Mindburn-Labs/covenant/pkg/forecast"
	"github.com/Mindburn-Labs/covenant/pkg/governance"
	"github.com/Mindburn-Labs/covenant/pkg/temporal"
	"github.com/Mindburn-Labs/covenant/pkg/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("COVENANT_PROFILE_DIR", filepath.Join("..", "..", "profiles"))
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("COVENANT_LOG_LEVEL", "ERROR")
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(append([]string{"covenant"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const breachingAgent = `{
  "reputation_score": 0.95,
  "capabilities": ["read", "write"],
  "breach_count": 2,
  "current_time": "2026-03-01T00:00:00Z"
}`

func TestRun_Usage(t *testing.T) {
	setupEnv(t)

	code, _, stderr := run(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "USAGE")

	code, stdout, _ := run(t, "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "evolve")

	code, _, stderr = run(t, "bogus")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Unknown command: bogus")
}

func TestRun_Evolve(t *testing.T) {
	setupEnv(t)
	agent := writeFile(t, "agent.json", breachingAgent)
	covenant := writeFile(t, "covenant.json", `{"id":"standard-agent","constraints":["probation","rate-limit-strict"]}`)

	code, stdout, stderr := run(t, "evolve", "--profile", "standard", "--agent", agent, "--covenant", covenant, "--json")
	require.Equal(t, 0, code, stderr)

	var out struct {
		Fired    []evolution.EvolutionTrigger `json:"fired"`
		Events   []evolution.EvolutionEvent   `json:"events"`
		Covenant evolution.CovenantState      `json:"covenant"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))

	require.Len(t, out.Fired, 2)
	assert.Equal(t, evolution.TriggerBreachEvent, out.Fired[0].Type)
	assert.Equal(t, evolution.TriggerTimeElapsed, out.Fired[1].Type)

	require.Len(t, out.Events, 2)
	assert.True(t, out.Events[0].Approved)
	assert.Contains(t, out.Events[0].NewConstraints, "require-human-review")
	// Human review is now required, so releasing probation is still cooling down.
	assert.False(t, out.Events[1].Approved)
	assert.Contains(t, out.Covenant.Constraints, "probation")
	assert.Len(t, out.Covenant.History, 2)

	for _, ev := range out.Events {
		ok, err := evolution.VerifyEventDigest(ev)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestRun_EvolveText(t *testing.T) {
	setupEnv(t)
	agent := writeFile(t, "agent.json", breachingAgent)

	code, stdout, stderr := run(t, "evolve", "--profile", "standard", "--agent", agent)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Covenant standard-agent")
	assert.Contains(t, stdout, "require-human-review")
}

func TestRun_EvolveInputErrors(t *testing.T) {
	setupEnv(t)

	code, _, stderr := run(t, "evolve", "--agent", "x.json")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "--profile is required")

	code, _, _ = run(t, "evolve", "--profile", "standard", "--agent", filepath.Join(t.TempDir(), "missing.json"))
	assert.Equal(t, 2, code)

	bad := writeFile(t, "agent.json", `{"reputation_score": 0.5, "capabilities": []}`)
	code, _, stderr = run(t, "evolve", "--profile", "standard", "--agent", bad)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "current_time")

	code, _, _ = run(t, "evolve", "--nope")
	assert.Equal(t, 2, code)
}

func TestRun_Score(t *testing.T) {
	setupEnv(t)
	agent := writeFile(t, "agent.json", breachingAgent)

	code, stdout, stderr := run(t, "score", "--profile", "standard", "--agent", agent, "--json")
	require.Equal(t, 0, code, stderr)

	var res trigger.Result
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Len(t, res.Activations, 2)
	assert.InDelta(t, 0.5, res.Activations[0].Activation, 1e-9)
	assert.True(t, res.Activated)
}

func TestRun_Decay(t *testing.T) {
	setupEnv(t)

	code, stdout, stderr := run(t, "decay", "--profile", "standard", "--steps", "5", "--threshold", "0.5", "--json")
	require.Equal(t, 0, code, stderr)

	var out struct {
		Schedule      []decay.DecayPoint `json:"schedule"`
		ThresholdTime *float64           `json:"threshold_time"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	require.Len(t, out.Schedule, 5)
	assert.Equal(t, 1.0, out.Schedule[0].Value)
	require.NotNil(t, out.ThresholdTime)
	assert.Greater(t, *out.ThresholdTime, 0.0)
	assert.Less(t, *out.ThresholdTime, 1.0)

	code, _, _ = run(t, "decay", "--profile", "standard", "--steps", "1")
	assert.Equal(t, 1, code)
}

func TestRun_Schedule(t *testing.T) {
	setupEnv(t)

	code, stdout, stderr := run(t, "schedule", "--weight", "2", "--rate", "0", "--lifetime", "1h", "--steps", "3", "--json")
	require.Equal(t, 0, code, stderr)

	var points []decay.DecayPoint
	require.NoError(t, json.Unmarshal([]byte(stdout), &points))
	require.Len(t, points, 3)
	assert.Equal(t, 3600000.0, points[2].Time)
	assert.Equal(t, 2.0, points[2].Value)

	code, _, _ = run(t, "schedule", "--weight", "0")
	assert.Equal(t, 1, code)
}

func TestRun_Expiry(t *testing.T) {
	setupEnv(t)
	input := writeFile(t, "expiry.json", `{
  "initial_weight": 1,
  "decay_rate": 1,
  "issued_at": "2026-01-01T00:00:00Z",
  "lifetime": "240h",
  "threshold": 0.1,
  "violation_impact": 0.5,
  "violations": [
    {"timestamp": "2026-01-02T00:00:00Z", "severity": 1},
    {"timestamp": "2026-01-03T00:00:00Z", "severity": 1}
  ],
  "current_time": "2026-01-04T00:00:00Z"
}`)

	code, stdout, stderr := run(t, "expiry", "--input", input, "--json")
	require.Equal(t, 0, code, stderr)

	var res decay.ExpirationForecastResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Zero(t, res.RemainingWeight)
	assert.Equal(t, 1.0, res.Confidence)

	code, stdout, stderr = run(t, "expiry", "--profile", "standard", "--issued", "2026-01-01T00:00:00Z", "--at", "2026-01-10T00:00:00Z")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Predicted expiration")

	code, _, _ = run(t, "expiry")
	assert.Equal(t, 2, code)
}

func TestRun_Forecast(t *testing.T) {
	setupEnv(t)

	code, stdout, stderr := run(t, "forecast", "--rates", "1,3", "--alpha", "0.5", "--beta", "0.5", "--periods", "1", "--json")
	require.Equal(t, 0, code, stderr)

	var res forecast.Result
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.InDelta(t, 3.0, res.Level, 1e-12)
	assert.InDelta(t, 5.0, res.Points[0].Rate, 1e-12)

	violations := writeFile(t, "violations.json", `[
  {"timestamp": "2026-01-01T01:00:00Z", "severity": 1},
  {"timestamp": "2026-01-02T01:00:00Z", "severity": 2},
  {"timestamp": "2026-01-03T01:00:00Z", "severity": 3}
]`)
	code, stdout, stderr = run(t, "forecast", "--violations", violations, "--start", "2026-01-01T00:00:00Z", "--buckets", "3")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "increasing")

	code, _, stderr = run(t, "forecast", "--rates", "1,x")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "--rates[1]")

	code, _, _ = run(t, "forecast", "--rates", "4")
	assert.Equal(t, 1, code)
}

func TestRun_Algebra(t *testing.T) {
	setupEnv(t)
	input := writeFile(t, "algebra.json", `{
  "a": [{"id": "a", "start": 0, "end": 1, "weight": 0.7, "constraint_ref": "r"}],
  "b": [{"id": "b", "start": 0.4, "end": 0.6, "weight": 0.2, "constraint_ref": "s"}]
}`)

	code, stdout, stderr := run(t, "algebra", "--op", "difference", "--input", input, "--json")
	require.Equal(t, 0, code, stderr)

	var res temporal.Result
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Equal(t, temporal.OpDifference, res.Operation)
	require.Len(t, res.Constraints, 2)
	assert.Equal(t, "a_diff_1", res.Constraints[1].ID)

	code, _, _ = run(t, "algebra", "--op", "xor", "--input", input)
	assert.Equal(t, 2, code)

	bad := writeFile(t, "bad.json", `{"a": [{"id": "a", "start": 0.8, "end": 0.2, "weight": 0.5}]}`)
	code, _, _ = run(t, "algebra", "--op", "union", "--input", bad)
	assert.Equal(t, 1, code)
}

func TestRun_Governance(t *testing.T) {
	setupEnv(t)

	code, stdout, stderr := run(t, "governance", "--agents", "50", "--to", "500", "--stake", "500", "--json")
	require.Equal(t, 0, code, stderr)

	var out struct {
		State       governance.State                 `json:"state"`
		Evaluation  *governance.TransitionEvaluation `json:"evaluation"`
		VotingPower float64                          `json:"voting_power"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, governance.PhaseAdvisoryCouncil, out.State.CurrentPhase)
	require.NotNil(t, out.Evaluation)
	assert.True(t, out.Evaluation.ShouldTransition)
	assert.Equal(t, 500, out.Evaluation.AgentsUntilNext)
	assert.Equal(t, 500.0, out.VotingPower)
	assert.Len(t, out.State.PhaseTransitions, 1)

	code, stdout, _ = run(t, "governance", "--agents", "20000", "--reputation", "0.9")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "Voting power: 18")
	assert.Contains(t, stdout, "fully_decentralized")

	code, _, _ = run(t, "governance", "--agents", "-3")
	assert.Equal(t, 2, code)

	code, _, _ = run(t, "governance", "--stake", "lots")
	assert.Equal(t, 2, code)
}
