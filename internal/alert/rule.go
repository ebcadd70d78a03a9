package alert

import (
	"fmt"
	"time"
)

// PredicateKind enumerates the built-in rule predicates described in
// spec.md §4.7.
type PredicateKind string

const (
	PredicateThresholdAbove PredicateKind = "threshold_above"
	PredicateThresholdBelow PredicateKind = "threshold_below"
	PredicateRateOfChange   PredicateKind = "rate_of_change"
	PredicateMissingData    PredicateKind = "missing_data"
)

// Rule is a declarative alert rule, the unit loaded from
// alerts.rules_path.
type Rule struct {
	ID       string        `yaml:"id" json:"id"`
	Scope    Scope         `yaml:"scope" json:"scope"`
	Sensor   string        `yaml:"sensor" json:"sensor"`
	Position string        `yaml:"position,omitempty" json:"position,omitempty"`
	Kind     PredicateKind `yaml:"kind" json:"kind"`
	Severity string        `yaml:"severity" json:"severity"`

	// Threshold is the comparison value for threshold_above/below.
	Threshold float64 `yaml:"threshold,omitempty" json:"threshold,omitempty"`

	// RateLimit bounds rate_of_change (units per RateWindow).
	RateLimit  float64       `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
	RateWindow time.Duration `yaml:"rate_window,omitempty" json:"rate_window,omitempty"`

	// ForDuration is missing_data's silence window: how long without a
	// frame before the rule fires.
	ForDuration time.Duration `yaml:"for_duration,omitempty" json:"for_duration,omitempty"`

	// HoldDown is the minimum time the predicate must stay false before
	// an open alert resolves. Defaults to alerts.hold_down_default.
	HoldDown time.Duration `yaml:"hold_down,omitempty" json:"hold_down,omitempty"`

	// MaxReminderInterval re-emits a still-firing alert's dispatch after
	// this long, even though dedup would otherwise suppress it.
	// Defaults to alerts.max_reminder_interval.
	MaxReminderInterval time.Duration `yaml:"max_reminder_interval,omitempty" json:"max_reminder_interval,omitempty"`
}

// Scope is the set of devices a Rule applies to: an explicit ID list, a
// tag, or "*" for every device.
type Scope struct {
	Devices []string `yaml:"devices,omitempty" json:"devices,omitempty"`
	Tag     string   `yaml:"tag,omitempty" json:"tag,omitempty"`
}

// Matches reports whether the scope covers deviceID, given the device's
// tag set (from the registry snapshot).
func (s Scope) Matches(deviceID string, tags []string) bool {
	for _, d := range s.Devices {
		if d == "*" {
			return true
		}
		if d == deviceID {
			return true
		}
	}
	if s.Tag == "" {
		return false
	}
	for _, t := range tags {
		if t == s.Tag {
			return true
		}
	}
	return false
}

// Validate rejects a Rule with a missing required field or a predicate
// kind that doesn't carry the parameters it needs, the way the teacher's
// scene validator rejects a malformed automation before it ever reaches
// the engine.
func (r Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRule)
	}
	if r.Sensor == "" {
		return fmt.Errorf("%w: rule %q missing sensor", ErrInvalidRule, r.ID)
	}
	switch r.Kind {
	case PredicateThresholdAbove, PredicateThresholdBelow:
		// threshold is meaningfully comparable to zero, so no extra check
	case PredicateRateOfChange:
		if r.RateWindow <= 0 {
			return fmt.Errorf("%w: rule %q rate_of_change needs rate_window", ErrInvalidRule, r.ID)
		}
	case PredicateMissingData:
		if r.ForDuration <= 0 {
			return fmt.Errorf("%w: rule %q missing_data needs for_duration", ErrInvalidRule, r.ID)
		}
	case PredicateAnomaly:
		// no required parameters: behavior is entirely up to whatever
		// AnomalyPredicate gets registered for this rule ID at runtime
	default:
		return fmt.Errorf("%w: rule %q has unknown kind %q", ErrInvalidRule, r.ID, r.Kind)
	}
	if r.Scope.Tag == "" && len(r.Scope.Devices) == 0 {
		return fmt.Errorf("%w: rule %q has empty scope", ErrInvalidRule, r.ID)
	}
	return nil
}
