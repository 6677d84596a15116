// Package temporal combines weighted restrictions that are active over a
// fraction of a covenant's normalized lifetime.
package temporal

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
)

var ErrInvalidConstraint = errors.New("temporal: invalid constraint")

// Operation names an algebra operation.
type Operation string

const (
	OpIntersection Operation = "intersection"
	OpUnion        Operation = "union"
	OpDifference   Operation = "difference"
)

// Constraint is a restriction active over [Start,End] within [0,1].
type Constraint struct {
	ID            string  `json:"id" yaml:"id"`
	Start         float64 `json:"start" yaml:"start"`
	End           float64 `json:"end" yaml:"end"`
	Weight        float64 `json:"weight" yaml:"weight"`
	ConstraintRef string  `json:"constraint_ref" yaml:"constraint_ref"`
}

// Validate checks the interval and weight bounds.
func (c Constraint) Validate() error {
	if !unit(c.Start) || !unit(c.End) {
		return fmt.Errorf("%w: %q: start and end must be in [0,1], got [%v,%v]", ErrInvalidConstraint, c.ID, c.Start, c.End)
	}
	if c.Start > c.End {
		return fmt.Errorf("%w: %q: start %v is after end %v", ErrInvalidConstraint, c.ID, c.Start, c.End)
	}
	if !unit(c.Weight) {
		return fmt.Errorf("%w: %q: weight must be in [0,1], got %v", ErrInvalidConstraint, c.ID, c.Weight)
	}
	return nil
}

func unit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// Result is the output of an operation.
type Result struct {
	Constraints []Constraint `json:"constraints"`
	Operation   Operation    `json:"operation"`
	Description string       `json:"description"`
}

// Algebra performs set operations over constraint lists. It holds no state
// beyond its logger.
type Algebra struct {
	logger *slog.Logger
}

// NewAlgebra returns an Algebra.
func NewAlgebra() *Algebra {
	return &Algebra{logger: slog.Default().With("component", "temporal")}
}

// Intersection returns every pairwise overlap of positive width. The more
// restrictive (higher) weight wins.
func (al *Algebra) Intersection(a, b []Constraint) (Result, error) {
	if err := validateAll(a, b); err != nil {
		return Result{}, err
	}

	out := []Constraint{}
	for _, x := range a {
		for _, y := range b {
			lo, hi := math.Max(x.Start, y.Start), math.Min(x.End, y.End)
			if hi <= lo {
				continue
			}
			out = append(out, Constraint{
				ID:            x.ID + "_AND_" + y.ID,
				Start:         lo,
				End:           hi,
				Weight:        math.Max(x.Weight, y.Weight),
				ConstraintRef: joinRefs(" AND ", x.ConstraintRef, y.ConstraintRef),
			})
		}
	}
	return al.result(OpIntersection, a, b, out), nil
}

// Union merges all intervals of a and b into maximal spans. Touching
// intervals merge. A span takes the least restrictive (lowest) weight of
// its contributors.
func (al *Algebra) Union(a, b []Constraint) (Result, error) {
	if err := validateAll(a, b); err != nil {
		return Result{}, err
	}

	all := make([]Constraint, 0, len(a)+len(b))
	all = append(all, a...)
	all = append(all, b...)
	slices.SortStableFunc(all, func(x, y Constraint) int {
		if c := cmp.Compare(x.Start, y.Start); c != 0 {
			return c
		}
		return cmp.Compare(x.End, y.End)
	})

	type span struct {
		start, end, weight float64
		refs               []string
	}
	var spans []span
	for _, c := range all {
		if n := len(spans); n > 0 && c.Start <= spans[n-1].end {
			cur := &spans[n-1]
			cur.end = math.Max(cur.end, c.End)
			cur.weight = math.Min(cur.weight, c.Weight)
			if !slices.Contains(cur.refs, c.ConstraintRef) {
				cur.refs = append(cur.refs, c.ConstraintRef)
			}
			continue
		}
		spans = append(spans, span{start: c.Start, end: c.End, weight: c.Weight, refs: []string{c.ConstraintRef}})
	}

	out := make([]Constraint, len(spans))
	for i, s := range spans {
		out[i] = Constraint{
			ID:            fmt.Sprintf("union_%d", i),
			Start:         s.start,
			End:           s.end,
			Weight:        s.weight,
			ConstraintRef: strings.Join(s.refs, " OR "),
		}
	}
	return al.result(OpUnion, a, b, out), nil
}

// Difference removes from each interval of a every overlapping interval of
// b. Fragments keep the weight and ref of their source.
func (al *Algebra) Difference(a, b []Constraint) (Result, error) {
	if err := validateAll(a, b); err != nil {
		return Result{}, err
	}

	type piece struct{ start, end float64 }
	out := []Constraint{}
	for _, x := range a {
		pieces := []piece{{x.Start, x.End}}
		for _, y := range b {
			var next []piece
			for _, p := range pieces {
				if y.Start >= p.end || y.End <= p.start {
					next = append(next, p)
					continue
				}
				if y.Start > p.start {
					next = append(next, piece{p.start, y.Start})
				}
				if y.End < p.end {
					next = append(next, piece{y.End, p.end})
				}
			}
			pieces = next
		}
		for i, p := range pieces {
			out = append(out, Constraint{
				ID:            fmt.Sprintf("%s_diff_%d", x.ID, i),
				Start:         p.start,
				End:           p.end,
				Weight:        x.Weight,
				ConstraintRef: x.ConstraintRef,
			})
		}
	}
	return al.result(OpDifference, a, b, out), nil
}

func (al *Algebra) result(op Operation, a, b, out []Constraint) Result {
	res := Result{
		Constraints: out,
		Operation:   op,
		Description: fmt.Sprintf("%s of %d and %d constraints yielded %d", op, len(a), len(b), len(out)),
	}
	al.logger.Debug("temporal operation", "operation", op, "left", len(a), "right", len(b), "result", len(out))
	return res
}

func validateAll(a, b []Constraint) error {
	for i, c := range a {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("a[%d]: %w", i, err)
		}
	}
	for i, c := range b {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("b[%d]: %w", i, err)
		}
	}
	return nil
}

func joinRefs(sep, x, y string) string {
	if x == y {
		return x
	}
	return x + sep + y
}
