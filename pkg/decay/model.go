// Package decay models how a covenant's enforcement weight attenuates over
// its normalized lifetime, and forecasts when that weight, reduced further by
// violation damage, falls below an enforcement threshold.
package decay

import (
	"fmt"
	"math"
	"slices"
	"time"
)

const (
	thresholdScanSamples  = 1000
	thresholdBisectRounds = 60
)

// DecayPoint is one sample of a decay schedule.
type DecayPoint struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// Model multiplies the outputs of its shapes and scales by the initial weight.
type Model struct {
	shapes []Shape
}

// NewModel validates and composes shapes. Step breakpoints are sorted.
func NewModel(shapes ...Shape) (*Model, error) {
	if len(shapes) == 0 {
		return nil, fmt.Errorf("%w: at least one shape is required", ErrInvalidModel)
	}

	m := &Model{shapes: make([]Shape, 0, len(shapes))}
	for i, s := range shapes {
		if s == nil {
			return nil, fmt.Errorf("%w: shapes[%d] is nil", ErrInvalidModel, i)
		}
		if err := s.validate(); err != nil {
			return nil, fmt.Errorf("shapes[%d]: %w", i, err)
		}
		if step, ok := s.(Step); ok {
			s = step.sorted()
		}
		m.shapes = append(m.shapes, s)
	}
	return m, nil
}

// Shapes returns a copy of the composed shapes.
func (m *Model) Shapes() []Shape {
	return slices.Clone(m.shapes)
}

// Evaluate returns the weight remaining at normalized time t in [0,1].
func (m *Model) Evaluate(t, initialWeight float64) (float64, error) {
	if !finite(t) || t < 0 || t > 1 {
		return 0, fmt.Errorf("%w: t must be in [0,1], got %v", ErrInvalidArgument, t)
	}
	if err := checkWeight(initialWeight); err != nil {
		return 0, err
	}
	return m.value(t, initialWeight), nil
}

// value evaluates without range checks; t beyond 1 extrapolates.
func (m *Model) value(t, initialWeight float64) float64 {
	product := 1.0
	for _, s := range m.shapes {
		product *= s.factor(t)
	}
	return math.Max(0, product*initialWeight)
}

// Schedule samples the model at steps evenly spaced points, the first at
// t=0 and the last at t=1.
func (m *Model) Schedule(initialWeight float64, steps int) ([]DecayPoint, error) {
	if err := checkWeight(initialWeight); err != nil {
		return nil, err
	}
	if steps < 2 {
		return nil, fmt.Errorf("%w: steps must be >= 2, got %d", ErrInvalidArgument, steps)
	}

	points := make([]DecayPoint, steps)
	for i := range points {
		t := float64(i) / float64(steps-1)
		points[i] = DecayPoint{Time: t, Value: m.value(t, initialWeight)}
	}
	return points, nil
}

// FindThresholdTime returns the smallest normalized t at which the weight
// drops below threshold. ok is false when threshold <= 0 or the weight never
// drops below it within [0,1].
func (m *Model) FindThresholdTime(initialWeight, threshold float64) (t float64, ok bool, err error) {
	if err := checkWeight(initialWeight); err != nil {
		return 0, false, err
	}
	if !finite(threshold) || threshold <= 0 {
		return 0, false, nil
	}
	if m.value(0, initialWeight) < threshold {
		return 0, true, nil
	}

	for i := 1; i <= thresholdScanSamples; i++ {
		hi := float64(i) / thresholdScanSamples
		if m.value(hi, initialWeight) >= threshold {
			continue
		}
		lo := float64(i-1) / thresholdScanSamples
		for range thresholdBisectRounds {
			mid := (lo + hi) / 2
			if m.value(mid, initialWeight) < threshold {
				hi = mid
			} else {
				lo = mid
			}
		}
		return hi, true, nil
	}
	return 0, false, nil
}

// ComputeDecaySchedule samples a single exponential decay over a real
// lifetime. Point times are milliseconds since issuance.
func ComputeDecaySchedule(initialWeight, decayRate float64, lifetime time.Duration, steps int) ([]DecayPoint, error) {
	if !finite(initialWeight) || initialWeight <= 0 {
		return nil, fmt.Errorf("%w: initial weight must be > 0, got %v", ErrInvalidArgument, initialWeight)
	}
	if !finite(decayRate) || decayRate < 0 {
		return nil, fmt.Errorf("%w: decay rate must be >= 0, got %v", ErrInvalidArgument, decayRate)
	}
	if lifetime <= 0 {
		return nil, fmt.Errorf("%w: lifetime must be > 0, got %s", ErrInvalidArgument, lifetime)
	}
	if steps < 2 {
		return nil, fmt.Errorf("%w: steps must be >= 2, got %d", ErrInvalidArgument, steps)
	}

	m, err := NewModel(Exponential{Rate: decayRate})
	if err != nil {
		return nil, err
	}
	normalized, err := m.Schedule(initialWeight, steps)
	if err != nil {
		return nil, err
	}

	lifetimeMs := float64(lifetime) / float64(time.Millisecond)
	for i := range normalized {
		normalized[i].Time *= lifetimeMs
	}
	return normalized, nil
}

func checkWeight(w float64) error {
	if !finite(w) || w < 0 {
		return fmt.Errorf("%w: initial weight must be >= 0, got %v", ErrInvalidArgument, w)
	}
	return nil
}
