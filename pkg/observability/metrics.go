package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// EngineMetrics holds the instruments shared by the covenant engines.
// A nil *EngineMetrics is valid and records nothing.
type EngineMetrics struct {
	evolutionEvents      metric.Int64Counter
	triggersFired        metric.Int64Counter
	governanceTransition metric.Int64Counter
	remainingWeight      metric.Float64Histogram
}

// NewEngineMetrics registers the engine instruments on meter.
func NewEngineMetrics(meter metric.Meter) (*EngineMetrics, error) {
	var (
		m   EngineMetrics
		err error
	)

	m.evolutionEvents, err = meter.Int64Counter("covenant.evolution.events",
		metric.WithDescription("Evolution events appended to covenant history"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: evolution counter: %w", err)
	}

	m.triggersFired, err = meter.Int64Counter("covenant.triggers.fired",
		metric.WithDescription("Evolution triggers that fired during evaluation"),
		metric.WithUnit("{trigger}"),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: trigger counter: %w", err)
	}

	m.governanceTransition, err = meter.Int64Counter("covenant.governance.transitions",
		metric.WithDescription("Governance bootstrap phase transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: governance counter: %w", err)
	}

	m.remainingWeight, err = meter.Float64Histogram("covenant.forecast.remaining_weight",
		metric.WithDescription("Remaining enforcement weight reported by expiration forecasts"),
		metric.WithExplicitBucketBoundaries(0, 0.1, 0.25, 0.5, 0.75, 1, 2, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: remaining weight histogram: %w", err)
	}

	return &m, nil
}

// RecordEvolution counts one appended evolution event.
func (m *EngineMetrics) RecordEvolution(ctx context.Context, covenantID, action, governanceStatus string, approved bool) {
	if m == nil {
		return
	}
	attrs := append(EvolutionOperation(action, governanceStatus, approved), AttrCovenantID.String(covenantID))
	m.evolutionEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTriggerFired counts one fired trigger of the given type.
func (m *EngineMetrics) RecordTriggerFired(ctx context.Context, triggerType string) {
	if m == nil {
		return
	}
	m.triggersFired.Add(ctx, 1, metric.WithAttributes(AttrTriggerType.String(triggerType)))
}

// RecordPhaseTransition counts one governance phase change.
func (m *EngineMetrics) RecordPhaseTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.governanceTransition.Add(ctx, 1, metric.WithAttributes(PhaseTransition(from, to)...))
}

// RecordRemainingWeight records the remaining weight of one expiration forecast.
func (m *EngineMetrics) RecordRemainingWeight(ctx context.Context, weight float64, trend string) {
	if m == nil {
		return
	}
	m.remainingWeight.Record(ctx, weight, metric.WithAttributes(AttrViolationTrend.String(trend)))
}
