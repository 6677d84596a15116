package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/Mindburn-Labs/covenant/pkg/temporal"
)

type algebraInput struct {
	A []temporal.Constraint `json:"a"`
	B []temporal.Constraint `json:"b"`
}

// runAlgebraCmd implements `covenant algebra`.
func runAlgebraCmd(_ context.Context, a *app, args []string) int {
	cmd := flag.NewFlagSet("algebra", flag.ContinueOnError)
	cmd.SetOutput(a.stderr)

	var (
		op         string
		inputPath  string
		jsonOutput bool
	)
	cmd.StringVar(&op, "op", "", "intersection | union | difference (REQUIRED)")
	cmd.StringVar(&inputPath, "input", "", `JSON file {"a": [...], "b": [...]} (REQUIRED)`)
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	var in algebraInput
	if err := readJSON(inputPath, &in); err != nil {
		a.errorf("--input: %v", err)
		return 2
	}

	algebra := temporal.NewAlgebra()
	var (
		res temporal.Result
		err error
	)
	switch temporal.Operation(op) {
	case temporal.OpIntersection:
		res, err = algebra.Intersection(in.A, in.B)
	case temporal.OpUnion:
		res, err = algebra.Union(in.A, in.B)
	case temporal.OpDifference:
		res, err = algebra.Difference(in.A, in.B)
	default:
		a.errorf("--op must be intersection, union or difference, got %q", op)
		return 2
	}
	if err != nil {
		a.errorf("%v", err)
		return 1
	}

	if jsonOutput {
		return a.writeJSON(res)
	}
	_, _ = fmt.Fprintln(a.stdout, res.Description)
	for _, c := range res.Constraints {
		_, _ = fmt.Fprintf(a.stdout, "  %-24s [%.4f, %.4f] weight=%.2f ref=%s\n", c.ID, c.Start, c.End, c.Weight, c.ConstraintRef)
	}
	return 0
}
