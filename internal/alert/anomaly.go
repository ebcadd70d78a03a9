package alert

import "github.com/smartsensor/gateway/internal/model"

// AnomalyPredicate is a pluggable detector a Rule of kind "anomaly" can
// delegate to, per spec.md §9's open question about a model-backed
// predicate. The engine ships no built-in implementation: model choice
// is explicitly out of scope for this gateway. history is the most
// recent readings observed for (device_id, sensor) ordered oldest-first,
// bounded by historyWindow.
type AnomalyPredicate interface {
	Evaluate(r model.Reading, history []model.Reading) bool
}

const (
	// PredicateAnomaly delegates to a registered AnomalyPredicate keyed
	// by rule ID. A rule of this kind with no registered predicate is
	// skipped and logged, never treated as firing.
	PredicateAnomaly PredicateKind = "anomaly"

	// historyWindow bounds how many past readings are retained per
	// (device, rule) state for an anomaly predicate to inspect.
	historyWindow = 32
)
