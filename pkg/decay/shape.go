package decay

import (
	"fmt"
	"math"
	"slices"
)

// Kind names a primitive decay shape.
type Kind string

const (
	KindExponential Kind = "exponential"
	KindLinear      Kind = "linear"
	KindStep        Kind = "step"
	KindSeasonal    Kind = "seasonal"
)

// DefaultSeasonalAmplitude is the amplitude used by NewSeasonal.
const DefaultSeasonalAmplitude = 0.2

// Shape is one primitive decay curve over normalized time. The set of shapes
// is closed: Exponential, Linear, Step and Seasonal.
type Shape interface {
	Kind() Kind
	factor(t float64) float64
	validate() error
}

// Exponential decays as e^(-Rate·t).
type Exponential struct {
	Rate float64 `json:"rate"`
}

func (Exponential) Kind() Kind { return KindExponential }

func (s Exponential) factor(t float64) float64 { return math.Exp(-s.Rate * t) }

func (s Exponential) validate() error {
	if !finite(s.Rate) || s.Rate < 0 {
		return fmt.Errorf("%w: exponential rate must be >= 0, got %v", ErrInvalidModel, s.Rate)
	}
	return nil
}

// Linear decays as max(0, 1 - Rate·t).
type Linear struct {
	Rate float64 `json:"rate"`
}

func (Linear) Kind() Kind { return KindLinear }

func (s Linear) factor(t float64) float64 { return math.Max(0, 1-s.Rate*t) }

func (s Linear) validate() error {
	if !finite(s.Rate) || s.Rate < 0 {
		return fmt.Errorf("%w: linear rate must be >= 0, got %v", ErrInvalidModel, s.Rate)
	}
	return nil
}

// Breakpoint sets the step value from Time onwards.
type Breakpoint struct {
	Time  float64 `json:"time" yaml:"time"`
	Value float64 `json:"value" yaml:"value"`
}

// Step holds the value of the last breakpoint at or before t, and 1 before
// the first breakpoint.
type Step struct {
	Breakpoints []Breakpoint `json:"breakpoints"`
}

func (Step) Kind() Kind { return KindStep }

func (s Step) factor(t float64) float64 {
	value := 1.0
	for _, bp := range s.Breakpoints {
		if bp.Time > t {
			break
		}
		value = bp.Value
	}
	return value
}

func (s Step) validate() error {
	if len(s.Breakpoints) == 0 {
		return fmt.Errorf("%w: step requires at least one breakpoint", ErrInvalidModel)
	}
	for i, bp := range s.Breakpoints {
		if !finite(bp.Time) || bp.Time < 0 || bp.Time > 1 {
			return fmt.Errorf("%w: step breakpoints[%d] time must be in [0,1], got %v", ErrInvalidModel, i, bp.Time)
		}
		if !finite(bp.Value) || bp.Value < 0 {
			return fmt.Errorf("%w: step breakpoints[%d] value must be >= 0, got %v", ErrInvalidModel, i, bp.Value)
		}
	}
	return nil
}

// sorted returns a copy with breakpoints in ascending time order.
func (s Step) sorted() Step {
	bps := slices.Clone(s.Breakpoints)
	slices.SortStableFunc(bps, func(a, b Breakpoint) int {
		switch {
		case a.Time < b.Time:
			return -1
		case a.Time > b.Time:
			return 1
		default:
			return 0
		}
	})
	return Step{Breakpoints: bps}
}

// Seasonal oscillates as 1 + Amplitude·sin(2π·Rate·t + Phase). It can exceed 1.
type Seasonal struct {
	Rate      float64 `json:"rate"`
	Amplitude float64 `json:"amplitude"`
	Phase     float64 `json:"phase"`
}

// NewSeasonal returns a seasonal shape with the default amplitude and zero phase.
func NewSeasonal(rate float64) Seasonal {
	return Seasonal{Rate: rate, Amplitude: DefaultSeasonalAmplitude}
}

func (Seasonal) Kind() Kind { return KindSeasonal }

func (s Seasonal) factor(t float64) float64 {
	return 1 + s.Amplitude*math.Sin(2*math.Pi*s.Rate*t+s.Phase)
}

func (s Seasonal) validate() error {
	if !finite(s.Rate) || s.Rate <= 0 {
		return fmt.Errorf("%w: seasonal rate must be > 0, got %v", ErrInvalidModel, s.Rate)
	}
	if !finite(s.Amplitude) || s.Amplitude < 0 || s.Amplitude > 1 {
		return fmt.Errorf("%w: seasonal amplitude must be in [0,1], got %v", ErrInvalidModel, s.Amplitude)
	}
	if !finite(s.Phase) {
		return fmt.Errorf("%w: seasonal phase must be finite", ErrInvalidModel)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
