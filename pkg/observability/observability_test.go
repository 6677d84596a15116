package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.Equal(t, "covenant", config.ServiceName)
	require.Equal(t, "development", config.Environment)
	require.Equal(t, "localhost:4317", config.OTLPEndpoint)
	require.Equal(t, 1.0, config.SampleRate)
	require.True(t, config.Enabled)
	require.False(t, config.Insecure)
}

func TestNewProviderDisabled(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, p)

	require.NotNil(t, p.Meter())
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestTrackOperation(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)

	ctx, done := p.TrackOperation(context.Background(), "covenant.evolve", AttrCovenantID.String("cov-1"))
	require.NotNil(t, ctx)
	done(nil)

	_, done = p.TrackOperation(context.Background(), "covenant.score")
	done(errors.New("boom"))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "covenant.evolve", spans[0].Name())
	assert.Empty(t, spans[0].Events())
	assert.Equal(t, "covenant.score", spans[1].Name())
	require.Len(t, spans[1].Events(), 1)
	assert.Equal(t, "exception", spans[1].Events()[0].Name)
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					sums[m.Name] += int64(dp.Count)
				}
			}
		}
	}
	return sums
}

func TestEngineMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m, err := NewEngineMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordEvolution(ctx, "cov-1", "tighten", "", true)
	m.RecordEvolution(ctx, "cov-1", "relax", "pending", false)
	m.RecordTriggerFired(ctx, "breach_event")
	m.RecordPhaseTransition(ctx, "centralized", "advisory_council")
	m.RecordRemainingWeight(ctx, 0.42, "stable")

	sums := collect(t, reader)
	assert.Equal(t, int64(2), sums["covenant.evolution.events"])
	assert.Equal(t, int64(1), sums["covenant.triggers.fired"])
	assert.Equal(t, int64(1), sums["covenant.governance.transitions"])
	assert.Equal(t, int64(1), sums["covenant.forecast.remaining_weight"])
}

func TestEngineMetrics_NilSafe(t *testing.T) {
	var m *EngineMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordEvolution(ctx, "cov-1", "tighten", "", true)
		m.RecordTriggerFired(ctx, "time_elapsed")
		m.RecordPhaseTransition(ctx, "a", "b")
		m.RecordRemainingWeight(ctx, 1, "stable")
	})
}

func TestAttributes(t *testing.T) {
	attrs := EvolutionOperation("add_constraint", "approved", true)
	require.Len(t, attrs, 3)
	assert.Equal(t, "add_constraint", attrs[0].Value.AsString())
	assert.True(t, attrs[1].Value.AsBool())

	pt := PhaseTransition("centralized", "advisory_council")
	assert.Equal(t, AttrPhaseFrom, pt[0].Key)
	assert.Equal(t, "advisory_council", pt[1].Value.AsString())
}
