package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/Mindburn-Labs/covenant/pkg/decay"
)

type decayOutput struct {
	Schedule      []decay.DecayPoint `json:"schedule"`
	ThresholdTime *float64           `json:"threshold_time,omitempty"`
}

// runDecayCmd implements `covenant decay`: samples a profile's composed
// decay model over the normalized lifetime.
func runDecayCmd(_ context.Context, a *app, args []string) int {
	cmd := flag.NewFlagSet("decay", flag.ContinueOnError)
	cmd.SetOutput(a.stderr)

	var (
		profileRef string
		weight     float64
		steps      int
		threshold  float64
		jsonOutput bool
	)
	cmd.StringVar(&profileRef, "profile", "", "Profile name or YAML path (REQUIRED)")
	cmd.Float64Var(&weight, "weight", 1, "Initial weight")
	cmd.IntVar(&steps, "steps", 11, "Number of samples (>= 2)")
	cmd.Float64Var(&threshold, "threshold", 0, "Report when weight first drops below this value")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	profile, err := a.loadProfile(profileRef)
	if err != nil {
		a.errorf("%v", err)
		return 2
	}
	model, err := profile.DecayModel()
	if err != nil {
		a.errorf("%v", err)
		return 1
	}

	points, err := model.Schedule(weight, steps)
	if err != nil {
		a.errorf("%v", err)
		return 1
	}
	out := decayOutput{Schedule: points}
	if threshold > 0 {
		t, ok, err := model.FindThresholdTime(weight, threshold)
		if err != nil {
			a.errorf("%v", err)
			return 1
		}
		if ok {
			out.ThresholdTime = &t
		}
	}

	if jsonOutput {
		return a.writeJSON(out)
	}
	printSchedule(a, points, "t")
	if threshold > 0 {
		if out.ThresholdTime != nil {
			_, _ = fmt.Fprintf(a.stdout, "Drops below %g at t=%.6f\n", threshold, *out.ThresholdTime)
		} else {
			_, _ = fmt.Fprintf(a.stdout, "Never drops below %g\n", threshold)
		}
	}
	return 0
}

// runScheduleCmd implements `covenant schedule`: a single exponential decay
// sampled over a real lifetime.
func runScheduleCmd(_ context.Context, a *app, args []string) int {
	cmd := flag.NewFlagSet("schedule", flag.ContinueOnError)
	cmd.SetOutput(a.stderr)

	var (
		weight     float64
		rate       float64
		lifetime   time.Duration
		steps      int
		jsonOutput bool
	)
	cmd.Float64Var(&weight, "weight", 1, "Initial weight (> 0)")
	cmd.Float64Var(&rate, "rate", 1, "Decay rate (>= 0)")
	cmd.DurationVar(&lifetime, "lifetime", 30*24*time.Hour, "Covenant lifetime")
	cmd.IntVar(&steps, "steps", 11, "Number of samples (>= 2)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	points, err := decay.ComputeDecaySchedule(weight, rate, lifetime, steps)
	if err != nil {
		a.errorf("%v", err)
		return 1
	}
	if jsonOutput {
		return a.writeJSON(points)
	}
	printSchedule(a, points, "ms")
	return 0
}

// expiryInput is the on-disk form of an expiration forecast request.
type expiryInput struct {
	InitialWeight   float64                 `json:"initial_weight"`
	DecayRate       float64                 `json:"decay_rate"`
	IssuedAt        time.Time               `json:"issued_at"`
	Lifetime        string                  `json:"lifetime"`
	Threshold       float64                 `json:"threshold"`
	ViolationImpact float64                 `json:"violation_impact"`
	Violations      []decay.ViolationRecord `json:"violations"`
	CurrentTime     time.Time               `json:"current_time"`
}

// runExpiryCmd implements `covenant expiry`. Parameters come from --input,
// or from a profile's expiration section plus --issued, --at and
// --violations.
func runExpiryCmd(ctx context.Context, a *app, args []string) int {
	cmd := flag.NewFlagSet("expiry", flag.ContinueOnError)
	cmd.SetOutput(a.stderr)

	var (
		inputPath      string
		profileRef     string
		issued         string
		at             string
		violationsPath string
		jsonOutput     bool
	)
	cmd.StringVar(&inputPath, "input", "", "Expiration request JSON file")
	cmd.StringVar(&profileRef, "profile", "", "Profile name or YAML path (alternative to --input)")
	cmd.StringVar(&issued, "issued", "", "Issuance time, RFC 3339 (with --profile)")
	cmd.StringVar(&at, "at", "", "Evaluation time, RFC 3339 (with --profile; default now)")
	cmd.StringVar(&violationsPath, "violations", "", "Violation records JSON file (with --profile)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	var in decay.ExpirationInput
	switch {
	case inputPath != "":
		var raw expiryInput
		if err := readJSON(inputPath, &raw); err != nil {
			a.errorf("--input: %v", err)
			return 2
		}
		lifetime, err := time.ParseDuration(raw.Lifetime)
		if err != nil {
			a.errorf("--input: lifetime: %v", err)
			return 2
		}
		in = decay.ExpirationInput{
			InitialWeight:   raw.InitialWeight,
			DecayRate:       raw.DecayRate,
			IssuedAt:        raw.IssuedAt,
			Lifetime:        lifetime,
			Threshold:       raw.Threshold,
			ViolationImpact: raw.ViolationImpact,
			Violations:      raw.Violations,
			CurrentTime:     raw.CurrentTime,
		}
	case profileRef != "":
		profile, err := a.loadProfile(profileRef)
		if err != nil {
			a.errorf("%v", err)
			return 2
		}
		issuedAt, err := time.Parse(time.RFC3339, issued)
		if err != nil {
			a.errorf("--issued: %v", err)
			return 2
		}
		now := time.Now().UTC()
		if at != "" {
			if now, err = time.Parse(time.RFC3339, at); err != nil {
				a.errorf("--at: %v", err)
				return 2
			}
		}
		var violations []decay.ViolationRecord
		if violationsPath != "" {
			if err := readJSON(violationsPath, &violations); err != nil {
				a.errorf("--violations: %v", err)
				return 2
			}
		}
		if in, err = profile.ExpirationInput(issuedAt, now, violations); err != nil {
			a.errorf("%v", err)
			return 1
		}
	default:
		a.errorf("--input or --profile is required")
		return 2
	}

	res, err := decay.ExpirationForecast(in)
	if err != nil {
		a.errorf("%v", err)
		return 1
	}
	a.metrics.RecordRemainingWeight(ctx, res.RemainingWeight, string(res.ViolationTrend))

	if jsonOutput {
		return a.writeJSON(res)
	}
	_, _ = fmt.Fprintf(a.stdout, "Remaining weight: %.4f\n", res.RemainingWeight)
	_, _ = fmt.Fprintf(a.stdout, "Predicted expiration: %s\n", res.PredictedExpirationTime.Format(time.RFC3339))
	_, _ = fmt.Fprintf(a.stdout, "Violation trend: %s (confidence %.2f)\n", res.ViolationTrend, res.Confidence)
	return 0
}

func printSchedule(a *app, points []decay.DecayPoint, unit string) {
	for _, p := range points {
		_, _ = fmt.Fprintf(a.stdout, "  %s=%-14g %.6f\n", unit, p.Time, p.Value)
	}
}
