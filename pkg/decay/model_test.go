package decay

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModel_Errors(t *testing.T) {
	tests := []struct {
		name   string
		shapes []Shape
	}{
		{"empty", nil},
		{"nil shape", []Shape{nil}},
		{"negative exponential", []Shape{Exponential{Rate: -1}}},
		{"negative linear", []Shape{Linear{Rate: -0.1}}},
		{"nan linear", []Shape{Linear{Rate: math.NaN()}}},
		{"step without breakpoints", []Shape{Step{}}},
		{"step time above one", []Shape{Step{Breakpoints: []Breakpoint{{Time: 1.5, Value: 0.5}}}}},
		{"step time below zero", []Shape{Step{Breakpoints: []Breakpoint{{Time: -0.1, Value: 0.5}}}}},
		{"step negative value", []Shape{Step{Breakpoints: []Breakpoint{{Time: 0.5, Value: -1}}}}},
		{"seasonal zero rate", []Shape{Seasonal{Rate: 0, Amplitude: 0.2}}},
		{"seasonal amplitude above one", []Shape{Seasonal{Rate: 1, Amplitude: 1.5}}},
		{"seasonal negative amplitude", []Shape{Seasonal{Rate: 1, Amplitude: -0.1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewModel(tt.shapes...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidModel), "got %v", err)
		})
	}
}

func TestEvaluate_Primitives(t *testing.T) {
	exp, err := NewModel(Exponential{Rate: 2})
	require.NoError(t, err)
	v, err := exp.Evaluate(0.5, 10)
	require.NoError(t, err)
	assert.InDelta(t, 10*math.Exp(-1), v, 1e-12)

	lin, err := NewModel(Linear{Rate: 2})
	require.NoError(t, err)
	v, err = lin.Evaluate(0.25, 4)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, v, 1e-12)
	v, err = lin.Evaluate(0.9, 4)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v, "linear decay clamps at zero")

	step, err := NewModel(Step{Breakpoints: []Breakpoint{{Time: 0.6, Value: 0.2}, {Time: 0.3, Value: 0.5}}})
	require.NoError(t, err)
	for _, tc := range []struct{ t, want float64 }{
		{0.0, 1.0},
		{0.29, 1.0},
		{0.3, 0.5},
		{0.59, 0.5},
		{0.6, 0.2},
		{1.0, 0.2},
	} {
		v, err := step.Evaluate(tc.t, 1)
		require.NoError(t, err)
		assert.Equal(t, tc.want, v, "t=%v", tc.t)
	}

	seasonal, err := NewModel(NewSeasonal(1))
	require.NoError(t, err)
	v, err = seasonal.Evaluate(0.25, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.2, v, 1e-12, "seasonal peaks above one")
	v, err = seasonal.Evaluate(0.75, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, v, 1e-12)
}

func TestEvaluate_Composition(t *testing.T) {
	m, err := NewModel(Exponential{Rate: 1}, Linear{Rate: 0.5})
	require.NoError(t, err)

	v, err := m.Evaluate(0.5, 2)
	require.NoError(t, err)
	assert.InDelta(t, 2*math.Exp(-0.5)*0.75, v, 1e-12)

	v, err = m.Evaluate(0, 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
}

func TestEvaluate_InvalidArguments(t *testing.T) {
	m, err := NewModel(Exponential{Rate: 1})
	require.NoError(t, err)

	for _, tc := range []struct{ t, w float64 }{
		{-0.1, 1}, {1.1, 1}, {math.NaN(), 1}, {0.5, -1}, {0.5, math.Inf(1)},
	} {
		_, err := m.Evaluate(tc.t, tc.w)
		assert.True(t, errors.Is(err, ErrInvalidArgument), "t=%v w=%v", tc.t, tc.w)
	}
}

func TestShapes_ReturnsSortedCopy(t *testing.T) {
	m, err := NewModel(Step{Breakpoints: []Breakpoint{{Time: 0.8, Value: 0.1}, {Time: 0.2, Value: 0.9}}})
	require.NoError(t, err)

	shapes := m.Shapes()
	require.Len(t, shapes, 1)
	assert.Equal(t, KindStep, shapes[0].Kind())
	step := shapes[0].(Step)
	assert.Equal(t, 0.2, step.Breakpoints[0].Time)

	shapes[0] = Linear{Rate: 1}
	assert.Equal(t, KindStep, m.Shapes()[0].Kind())
}

func TestSchedule(t *testing.T) {
	m, err := NewModel(Exponential{Rate: 1})
	require.NoError(t, err)

	points, err := m.Schedule(5, 5)
	require.NoError(t, err)
	require.Len(t, points, 5)
	assert.Equal(t, DecayPoint{Time: 0, Value: 5}, points[0])
	assert.Equal(t, 1.0, points[4].Time)
	assert.InDelta(t, 5*math.Exp(-1), points[4].Value, 1e-12)
	assert.Equal(t, 0.5, points[2].Time)

	_, err = m.Schedule(5, 1)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestFindThresholdTime(t *testing.T) {
	m, err := NewModel(Exponential{Rate: 2})
	require.NoError(t, err)

	// 10·e^(-2t) = 5  =>  t = ln(2)/2
	at, ok, err := m.FindThresholdTime(10, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, math.Ln2/2, at, 1e-9)

	at, ok, err = m.FindThresholdTime(10, 20)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0.0, at, "already below threshold")

	_, ok, err = m.FindThresholdTime(10, 0)
	require.NoError(t, err)
	assert.False(t, ok, "non-positive threshold never crosses")

	_, ok, err = m.FindThresholdTime(10, 0.1)
	require.NoError(t, err)
	assert.False(t, ok, "10·e^-2 stays above 0.1 within [0,1]")

	flat, err := NewModel(Exponential{Rate: 0})
	require.NoError(t, err)
	_, ok, err = flat.FindThresholdTime(1, 0.5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindThresholdTime_Step(t *testing.T) {
	m, err := NewModel(Step{Breakpoints: []Breakpoint{{Time: 0.4, Value: 0.3}}})
	require.NoError(t, err)

	at, ok, err := m.FindThresholdTime(1, 0.5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0.4, at, 1e-9)
}

func TestComputeDecaySchedule(t *testing.T) {
	lifetime := 10 * time.Second
	points, err := ComputeDecaySchedule(100, 0.5, lifetime, 11)
	require.NoError(t, err)
	require.Len(t, points, 11)
	assert.Equal(t, DecayPoint{Time: 0, Value: 100}, points[0])
	assert.Equal(t, 10000.0, points[10].Time)
	assert.InDelta(t, 1000.0, points[1].Time, 1e-9)
	assert.InDelta(t, 100*math.Exp(-0.5), points[10].Value, 1e-9)

	slower, err := ComputeDecaySchedule(100, 0.1, lifetime, 11)
	require.NoError(t, err)
	assert.Greater(t, slower[10].Value, points[10].Value, "higher rate ends lower")
}

func TestComputeDecaySchedule_Errors(t *testing.T) {
	tests := []struct {
		name     string
		weight   float64
		rate     float64
		lifetime time.Duration
		steps    int
	}{
		{"zero weight", 0, 1, time.Second, 2},
		{"negative rate", 1, -1, time.Second, 2},
		{"zero lifetime", 1, 1, 0, 2},
		{"one step", 1, 1, time.Second, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeDecaySchedule(tt.weight, tt.rate, tt.lifetime, tt.steps)
			assert.True(t, errors.Is(err, ErrInvalidArgument))
		})
	}
}
