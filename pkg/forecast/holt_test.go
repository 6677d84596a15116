package forecast

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Mindburn-Labs/covenant/pkg/decay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustForecaster(t *testing.T, cfg Config) *Forecaster {
	t.Helper()
	f, err := NewForecaster(cfg)
	require.NoError(t, err)
	return f
}

func TestNewForecaster_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"alpha zero", Config{Alpha: 0, Beta: 0.5, ForecastPeriods: 1}},
		{"alpha one", Config{Alpha: 1, Beta: 0.5, ForecastPeriods: 1}},
		{"beta negative", Config{Alpha: 0.5, Beta: -0.1, ForecastPeriods: 1}},
		{"beta nan", Config{Alpha: 0.5, Beta: math.NaN(), ForecastPeriods: 1}},
		{"no periods", Config{Alpha: 0.5, Beta: 0.5, ForecastPeriods: 0}},
		{"confidence one", Config{Alpha: 0.5, Beta: 0.5, ForecastPeriods: 1, ConfidenceLevel: 1}},
		{"confidence negative", Config{Alpha: 0.5, Beta: 0.5, ForecastPeriods: 1, ConfidenceLevel: -0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewForecaster(tt.cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestNewForecaster_DefaultConfidence(t *testing.T) {
	f := mustForecaster(t, Config{Alpha: 0.3, Beta: 0.2, ForecastPeriods: 2})
	assert.Equal(t, DefaultConfidenceLevel, f.Config().ConfidenceLevel)
	assert.InDelta(t, 1.959964, f.z, 1e-5)
}

func TestForecast_TwoPoints(t *testing.T) {
	f := mustForecaster(t, Config{Alpha: 0.5, Beta: 0.5, ForecastPeriods: 1})

	res, err := f.Forecast([]float64{1, 3})
	require.NoError(t, err)

	assert.InDelta(t, 3.0, res.Level, 1e-12)
	assert.InDelta(t, 2.0, res.Trend, 1e-12)
	require.Len(t, res.Points, 1)
	assert.Equal(t, 3, res.Points[0].Period)
	assert.InDelta(t, 5.0, res.Points[0].Rate, 1e-12)
	assert.Equal(t, DirectionIncreasing, res.Direction)
	assert.Zero(t, res.MeanAbsoluteError)
}

func TestForecast_ConstantSeriesIsStable(t *testing.T) {
	f := mustForecaster(t, Config{Alpha: 0.4, Beta: 0.3, ForecastPeriods: 3})

	res, err := f.Forecast([]float64{2, 2, 2, 2, 2})
	require.NoError(t, err)

	assert.Equal(t, DirectionStable, res.Direction)
	assert.InDelta(t, 2.0, res.Level, 1e-12)
	for i, p := range res.Points {
		assert.Equal(t, 6+i, p.Period)
		assert.InDelta(t, 2.0, p.Rate, 1e-12)
		assert.InDelta(t, 2.0, p.LowerBound, 1e-12)
		assert.InDelta(t, 2.0, p.UpperBound, 1e-12)
	}
}

func TestForecast_DecreasingSeries(t *testing.T) {
	f := mustForecaster(t, Config{Alpha: 0.5, Beta: 0.5, ForecastPeriods: 2})

	res, err := f.Forecast([]float64{10, 8, 6, 4})
	require.NoError(t, err)
	assert.Equal(t, DirectionDecreasing, res.Direction)
	assert.Less(t, res.Points[1].Rate, res.Points[0].Rate)
}

func TestForecast_BandWidensAndClamps(t *testing.T) {
	f := mustForecaster(t, Config{Alpha: 0.3, Beta: 0.2, ForecastPeriods: 6})

	res, err := f.Forecast([]float64{1, 4, 0, 5, 1, 3, 0})
	require.NoError(t, err)
	require.Greater(t, res.MeanAbsoluteError, 0.0)

	prevWidth := -1.0
	for _, p := range res.Points {
		width := p.UpperBound - p.Rate
		assert.Greater(t, width, prevWidth)
		prevWidth = width
		assert.GreaterOrEqual(t, p.LowerBound, 0.0)
	}
}

func TestForecast_InputErrors(t *testing.T) {
	f := mustForecaster(t, Config{Alpha: 0.5, Beta: 0.5, ForecastPeriods: 1})

	_, err := f.Forecast([]float64{1})
	assert.True(t, errors.Is(err, ErrInsufficientData))

	_, err = f.Forecast(nil)
	assert.True(t, errors.Is(err, ErrInsufficientData))

	_, err = f.Forecast([]float64{1, math.Inf(1)})
	assert.True(t, errors.Is(err, ErrNonFiniteValue))
	assert.Contains(t, err.Error(), "rates[1]")

	_, err = f.Forecast([]float64{math.NaN(), 1})
	assert.True(t, errors.Is(err, ErrNonFiniteValue))
}

func TestRateSeries(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	hour := time.Hour
	violations := []decay.ViolationRecord{
		{Timestamp: start.Add(-time.Minute), Severity: 9},
		{Timestamp: start, Severity: 1},
		{Timestamp: start.Add(30 * time.Minute), Severity: 2},
		{Timestamp: start.Add(hour), Severity: 0.5},
		{Timestamp: start.Add(2*hour + time.Second), Severity: 4},
		{Timestamp: start.Add(3 * hour), Severity: 7},
	}

	series, err := RateSeries(violations, start, hour, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 0.5, 4}, series)
}

func TestRateSeries_FeedsForecast(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var violations []decay.ViolationRecord
	for day := range 5 {
		for range day + 1 {
			violations = append(violations, decay.ViolationRecord{
				Timestamp: start.Add(time.Duration(day)*24*time.Hour + time.Hour),
				Severity:  1,
			})
		}
	}

	series, err := RateSeries(violations, start, 24*time.Hour, 5)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, series)

	f := mustForecaster(t, Config{Alpha: 0.5, Beta: 0.5, ForecastPeriods: 1})
	res, err := f.Forecast(series)
	require.NoError(t, err)
	assert.Equal(t, DirectionIncreasing, res.Direction)
	assert.InDelta(t, 6.0, res.Points[0].Rate, 1e-9)
}

func TestRateSeries_Errors(t *testing.T) {
	start := time.Now()

	_, err := RateSeries(nil, start, 0, 3)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = RateSeries(nil, start, time.Hour, 0)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = RateSeries([]decay.ViolationRecord{{Timestamp: start, Severity: -1}}, start, time.Hour, 1)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}
