package observability

import (
	"go.opentelemetry.io/otel/attribute"
)

// Covenant semantic convention attributes.
var (
	AttrCovenantID       = attribute.Key("covenant.id")
	AttrAction           = attribute.Key("covenant.action")
	AttrTriggerType      = attribute.Key("covenant.trigger_type")
	AttrApproved         = attribute.Key("covenant.approved")
	AttrGovernanceStatus = attribute.Key("covenant.governance_status")
	AttrPhaseFrom        = attribute.Key("covenant.phase.from")
	AttrPhaseTo          = attribute.Key("covenant.phase.to")
	AttrViolationTrend   = attribute.Key("covenant.violation_trend")
)

// EvolutionOperation creates attributes for an evolution event.
func EvolutionOperation(action, governanceStatus string, approved bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrAction.String(action),
		AttrApproved.Bool(approved),
		AttrGovernanceStatus.String(governanceStatus),
	}
}

// PhaseTransition creates attributes for a governance phase change.
func PhaseTransition(from, to string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrPhaseFrom.String(from),
		AttrPhaseTo.String(to),
	}
}
