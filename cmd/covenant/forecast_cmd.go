package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Mindburn-Labs/covenant/pkg/decay"
	"github.com/Mindburn-Labs/covenant/pkg/forecast"
)

// runForecastCmd implements `covenant forecast`. The rate series is given
// directly with --rates or bucketed from violation records with
// --violations, --start, --bucket and --buckets.
func runForecastCmd(_ context.Context, a *app, args []string) int {
	cmd := flag.NewFlagSet("forecast", flag.ContinueOnError)
	cmd.SetOutput(a.stderr)

	var (
		ratesArg       string
		violationsPath string
		start          string
		bucket         time.Duration
		buckets        int
		cfg            forecast.Config
		jsonOutput     bool
	)
	cmd.StringVar(&ratesArg, "rates", "", "Comma-separated historical rates")
	cmd.StringVar(&violationsPath, "violations", "", "Violation records JSON file")
	cmd.StringVar(&start, "start", "", "Start of the first bucket, RFC 3339 (with --violations)")
	cmd.DurationVar(&bucket, "bucket", 24*time.Hour, "Bucket length (with --violations)")
	cmd.IntVar(&buckets, "buckets", 7, "Number of buckets (with --violations)")
	cmd.Float64Var(&cfg.Alpha, "alpha", 0.5, "Level smoothing factor in (0,1)")
	cmd.Float64Var(&cfg.Beta, "beta", 0.3, "Trend smoothing factor in (0,1)")
	cmd.IntVar(&cfg.ForecastPeriods, "periods", 3, "Periods to project")
	cmd.Float64Var(&cfg.ConfidenceLevel, "confidence", forecast.DefaultConfidenceLevel, "Confidence level in (0,1)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	var rates []float64
	switch {
	case ratesArg != "":
		for i, field := range strings.Split(ratesArg, ",") {
			r, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				a.errorf("--rates[%d]: %v", i, err)
				return 2
			}
			rates = append(rates, r)
		}
	case violationsPath != "":
		var violations []decay.ViolationRecord
		if err := readJSON(violationsPath, &violations); err != nil {
			a.errorf("--violations: %v", err)
			return 2
		}
		startAt, err := time.Parse(time.RFC3339, start)
		if err != nil {
			a.errorf("--start: %v", err)
			return 2
		}
		if rates, err = forecast.RateSeries(violations, startAt, bucket, buckets); err != nil {
			a.errorf("%v", err)
			return 1
		}
	default:
		a.errorf("--rates or --violations is required")
		return 2
	}

	f, err := forecast.NewForecaster(cfg)
	if err != nil {
		a.errorf("%v", err)
		return 2
	}
	res, err := f.Forecast(rates)
	if err != nil {
		a.errorf("%v", err)
		return 1
	}

	if jsonOutput {
		return a.writeJSON(res)
	}
	_, _ = fmt.Fprintf(a.stdout, "Level %.4f  trend %.4f  (%s, MAE %.4f)\n", res.Level, res.Trend, res.Direction, res.MeanAbsoluteError)
	for _, p := range res.Points {
		_, _ = fmt.Fprintf(a.stdout, "  period %-4d rate %.4f  [%.4f, %.4f]\n", p.Period, p.Rate, p.LowerBound, p.UpperBound)
	}
	return 0
}
