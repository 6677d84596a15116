// Package forecast projects future violation rates from a historical series
// using Holt double exponential smoothing.
package forecast

import (
	"fmt"
	"log/slog"
	"math"
)

const (
	// DefaultConfidenceLevel is used when Config.ConfidenceLevel is zero.
	DefaultConfidenceLevel = 0.95

	stableTolerance = 1e-6

	// maeToSigma approximates the residual standard deviation from the mean
	// absolute error of normally distributed residuals.
	maeToSigma = 1.25
)

// Direction classifies the fitted trend.
type Direction string

const (
	DirectionIncreasing Direction = "increasing"
	DirectionDecreasing Direction = "decreasing"
	DirectionStable     Direction = "stable"
)

// Config holds the smoothing parameters.
type Config struct {
	Alpha           float64 `json:"alpha" yaml:"alpha"`
	Beta            float64 `json:"beta" yaml:"beta"`
	ForecastPeriods int     `json:"forecast_periods" yaml:"forecast_periods"`
	ConfidenceLevel float64 `json:"confidence_level,omitempty" yaml:"confidence_level,omitempty"`
}

// Point is one projected period.
type Point struct {
	Period     int     `json:"period"`
	Rate       float64 `json:"rate"`
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
}

// Result is the fitted model and its projection.
type Result struct {
	Level             float64   `json:"level"`
	Trend             float64   `json:"trend"`
	Direction         Direction `json:"direction"`
	MeanAbsoluteError float64   `json:"mean_absolute_error"`
	Points            []Point   `json:"points"`
}

// Forecaster is an immutable, validated Holt model configuration.
type Forecaster struct {
	cfg    Config
	z      float64
	logger *slog.Logger
}

// NewForecaster validates cfg and returns a Forecaster.
func NewForecaster(cfg Config) (*Forecaster, error) {
	if !inOpenUnit(cfg.Alpha) {
		return nil, fmt.Errorf("%w: alpha must be in (0,1), got %v", ErrInvalidConfig, cfg.Alpha)
	}
	if !inOpenUnit(cfg.Beta) {
		return nil, fmt.Errorf("%w: beta must be in (0,1), got %v", ErrInvalidConfig, cfg.Beta)
	}
	if cfg.ForecastPeriods < 1 {
		return nil, fmt.Errorf("%w: forecast_periods must be >= 1, got %d", ErrInvalidConfig, cfg.ForecastPeriods)
	}
	if cfg.ConfidenceLevel == 0 {
		cfg.ConfidenceLevel = DefaultConfidenceLevel
	}
	if !inOpenUnit(cfg.ConfidenceLevel) {
		return nil, fmt.Errorf("%w: confidence_level must be in (0,1), got %v", ErrInvalidConfig, cfg.ConfidenceLevel)
	}

	return &Forecaster{
		cfg:    cfg,
		z:      math.Sqrt2 * math.Erfinv(cfg.ConfidenceLevel),
		logger: slog.Default().With("component", "forecast"),
	}, nil
}

// Config returns the effective configuration, defaults applied.
func (f *Forecaster) Config() Config {
	return f.cfg
}

// Forecast fits level and trend to rates and projects ForecastPeriods
// points. Band width grows with the square root of the horizon.
func (f *Forecaster) Forecast(rates []float64) (Result, error) {
	if len(rates) < 2 {
		return Result{}, fmt.Errorf("%w: need at least 2 rates, got %d", ErrInsufficientData, len(rates))
	}
	for i, r := range rates {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return Result{}, fmt.Errorf("%w: rates[%d] = %v", ErrNonFiniteValue, i, r)
		}
	}

	alpha, beta := f.cfg.Alpha, f.cfg.Beta
	level := rates[0]
	trend := rates[1] - rates[0]

	var absErr float64
	for _, actual := range rates[1:] {
		predicted := level + trend
		absErr += math.Abs(actual - predicted)

		newLevel := alpha*actual + (1-alpha)*(level+trend)
		trend = beta*(newLevel-level) + (1-beta)*trend
		level = newLevel
	}
	mae := absErr / float64(len(rates)-1)

	points := make([]Point, f.cfg.ForecastPeriods)
	for i := range points {
		h := i + 1
		rate := level + float64(h)*trend
		half := f.z * maeToSigma * mae * math.Sqrt(float64(h))
		points[i] = Point{
			Period:     len(rates) + h,
			Rate:       rate,
			LowerBound: math.Max(0, rate-half),
			UpperBound: rate + half,
		}
	}

	res := Result{
		Level:             level,
		Trend:             trend,
		Direction:         classify(trend),
		MeanAbsoluteError: mae,
		Points:            points,
	}
	f.logger.Debug("forecast computed",
		"observations", len(rates),
		"level", level,
		"trend", trend,
		"direction", res.Direction,
	)
	return res, nil
}

func classify(trend float64) Direction {
	switch {
	case trend > stableTolerance:
		return DirectionIncreasing
	case trend < -stableTolerance:
		return DirectionDecreasing
	default:
		return DirectionStable
	}
}

func inOpenUnit(v float64) bool {
	return v > 0 && v < 1
}
