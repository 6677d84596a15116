package decay

import (
	"fmt"
	"math"
	"slices"
	"time"
)

const (
	expirationHorizonLifetimes = 10
	expirationBisectRounds     = 64

	trendShift             = 0.2
	acceleratingMultiplier = 1.5
	deceleratingMultiplier = 0.7
)

// ViolationRecord is one observed breach. Severity is >= 0.
type ViolationRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Severity  float64   `json:"severity"`
}

// Trend classifies how violation frequency is changing.
type Trend string

const (
	TrendAccelerating Trend = "accelerating"
	TrendStable       Trend = "stable"
	TrendDecelerating Trend = "decelerating"
)

// ExpirationInput describes a covenant's decay and observed violations.
// Natural decay at time x is InitialWeight·e^(-DecayRate·(x-IssuedAt)/Lifetime).
type ExpirationInput struct {
	InitialWeight   float64           `json:"initial_weight"`
	DecayRate       float64           `json:"decay_rate"`
	IssuedAt        time.Time         `json:"issued_at"`
	Lifetime        time.Duration     `json:"lifetime"`
	Threshold       float64           `json:"threshold"`
	ViolationImpact float64           `json:"violation_impact"`
	Violations      []ViolationRecord `json:"violations"`
	CurrentTime     time.Time         `json:"current_time"`
}

// ExpirationForecastResult predicts when enforcement weight crosses the threshold.
type ExpirationForecastResult struct {
	PredictedExpirationTime time.Time `json:"predicted_expiration_time"`
	Confidence              float64   `json:"confidence"`
	RemainingWeight         float64   `json:"remaining_weight"`
	ViolationTrend          Trend     `json:"violation_trend"`
}

func (in ExpirationInput) validate() error {
	switch {
	case !finite(in.InitialWeight) || in.InitialWeight <= 0:
		return fmt.Errorf("%w: initial weight must be > 0, got %v", ErrInvalidArgument, in.InitialWeight)
	case !finite(in.DecayRate) || in.DecayRate < 0:
		return fmt.Errorf("%w: decay rate must be >= 0, got %v", ErrInvalidArgument, in.DecayRate)
	case !finite(in.Threshold) || in.Threshold < 0 || in.Threshold >= in.InitialWeight:
		return fmt.Errorf("%w: threshold must be in [0, %v), got %v", ErrInvalidArgument, in.InitialWeight, in.Threshold)
	case !finite(in.ViolationImpact) || in.ViolationImpact < 0:
		return fmt.Errorf("%w: violation impact must be >= 0, got %v", ErrInvalidArgument, in.ViolationImpact)
	case in.Lifetime <= 0:
		return fmt.Errorf("%w: lifetime must be > 0, got %s", ErrInvalidArgument, in.Lifetime)
	case in.CurrentTime.IsZero():
		return fmt.Errorf("%w: current time is required", ErrInvalidArgument)
	}
	for i, v := range in.Violations {
		if !finite(v.Severity) || v.Severity < 0 {
			return fmt.Errorf("%w: violations[%d] severity must be >= 0, got %v", ErrInvalidArgument, i, v.Severity)
		}
	}
	return nil
}

// ExpirationForecast combines natural decay with accumulated violation
// damage and searches forward for the time the remaining weight reaches the
// threshold.
func ExpirationForecast(in ExpirationInput) (ExpirationForecastResult, error) {
	if err := in.validate(); err != nil {
		return ExpirationForecastResult{}, err
	}

	model, err := NewModel(Exponential{Rate: in.DecayRate})
	if err != nil {
		return ExpirationForecastResult{}, err
	}
	natural := func(at time.Time) float64 {
		frac := math.Max(0, float64(at.Sub(in.IssuedAt))/float64(in.Lifetime))
		return model.value(frac, in.InitialWeight)
	}

	past := observedBy(in.Violations, in.CurrentTime)
	var totalDamage, totalSeverity float64
	for _, v := range past {
		totalSeverity += v.Severity
		totalDamage += v.Severity * in.ViolationImpact
	}

	remaining := math.Max(0, natural(in.CurrentTime)-totalDamage)
	trend := ClassifyTrend(past)
	confidence := math.Min(1, 0.3+0.1*float64(len(past)))

	if remaining <= in.Threshold {
		return ExpirationForecastResult{
			PredictedExpirationTime: in.CurrentTime,
			Confidence:              1.0,
			RemainingWeight:         remaining,
			ViolationTrend:          trend,
		}, nil
	}

	// Projected damage accrues linearly at the observed (trend-adjusted)
	// violation rate times the mean observed severity.
	var damagePerMs float64
	if n := len(past); n > 0 {
		window := float64(in.CurrentTime.Sub(in.IssuedAt)) / float64(time.Millisecond)
		if window < 1 {
			window = 1
		}
		rate := float64(n) / window
		switch trend {
		case TrendAccelerating:
			rate *= acceleratingMultiplier
		case TrendDecelerating:
			rate *= deceleratingMultiplier
		}
		damagePerMs = rate * (totalSeverity / float64(n)) * in.ViolationImpact
	}

	weightAt := func(at time.Time) float64 {
		ahead := float64(at.Sub(in.CurrentTime)) / float64(time.Millisecond)
		return natural(at) - totalDamage - damagePerMs*ahead
	}

	lo := in.CurrentTime
	hi := in.CurrentTime.Add(searchHorizon(in.Lifetime))
	predicted := hi
	if weightAt(hi) <= in.Threshold {
		for range expirationBisectRounds {
			if hi.Sub(lo) <= time.Millisecond {
				break
			}
			mid := lo.Add(hi.Sub(lo) / 2)
			if weightAt(mid) <= in.Threshold {
				hi = mid
			} else {
				lo = mid
			}
		}
		predicted = hi
	}

	return ExpirationForecastResult{
		PredictedExpirationTime: predicted,
		Confidence:              confidence,
		RemainingWeight:         remaining,
		ViolationTrend:          trend,
	}, nil
}

// searchHorizon is expirationHorizonLifetimes lifetimes, saturating at the
// largest representable duration.
func searchHorizon(lifetime time.Duration) time.Duration {
	if lifetime > math.MaxInt64/expirationHorizonLifetimes {
		return math.MaxInt64
	}
	return expirationHorizonLifetimes * lifetime
}

// ClassifyTrend compares the mean gap between violations in the first half
// of the record against the second half. Fewer than three violations is stable.
func ClassifyTrend(violations []ViolationRecord) Trend {
	if len(violations) < 3 {
		return TrendStable
	}
	sorted := slices.Clone(violations)
	slices.SortStableFunc(sorted, func(a, b ViolationRecord) int { return a.Timestamp.Compare(b.Timestamp) })

	intervals := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		intervals = append(intervals, float64(sorted[i].Timestamp.Sub(sorted[i-1].Timestamp)))
	}
	half := len(intervals) / 2
	first, second := mean(intervals[:half]), mean(intervals[half:])
	if first <= 0 {
		return TrendStable
	}

	switch {
	case second < first*(1-trendShift):
		return TrendAccelerating
	case second > first*(1+trendShift):
		return TrendDecelerating
	default:
		return TrendStable
	}
}

// observedBy returns the violations at or before at, in time order.
func observedBy(violations []ViolationRecord, at time.Time) []ViolationRecord {
	var out []ViolationRecord
	for _, v := range violations {
		if !v.Timestamp.After(at) {
			out = append(out, v)
		}
	}
	slices.SortStableFunc(out, func(a, b ViolationRecord) int { return a.Timestamp.Compare(b.Timestamp) })
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
