// Package model holds the gateway's core domain types: Device, Reading,
// Session, Subscription, and Alert.
package model

import "time"

// DeviceKind classifies what kind of physical device is reporting.
type DeviceKind string

const (
	DeviceKindTPMS          DeviceKind = "tpms"
	DeviceKindEnvironmental DeviceKind = "environmental"
	DeviceKindGateway       DeviceKind = "gateway"
	DeviceKindUnknown       DeviceKind = "unknown"
)

// Device is a registered sensor endpoint, owned exclusively by the
// Registry (internal/registry). All other components read immutable
// snapshots.
type Device struct {
	DeviceID                string     `json:"device_id"`
	Kind                    DeviceKind `json:"kind"`
	CredentialsFingerprint  string     `json:"credentials_fingerprint"`
	KnownSince              time.Time  `json:"known_since"`
	LastSeenAt              time.Time  `json:"last_seen_at"`
	FirmwareVersion         string     `json:"firmware_version,omitempty"`
	HealthScore             int        `json:"health_score"`

	// Slug is a human-readable derived identifier surfaced on the admin
	// API for operators browsing a large fleet.
	Slug string `json:"slug"`

	// Tags are operator-assigned labels used for admin filtering.
	Tags []string `json:"tags,omitempty"`
}

// DeepCopy returns an independent copy of the Device so that callers
// outside the Registry cannot mutate shared state.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	cpy := *d
	if d.Tags != nil {
		cpy.Tags = make([]string, len(d.Tags))
		copy(cpy.Tags, d.Tags)
	}
	return &cpy
}

// SensorKind identifies the physical quantity a Reading measures.
type SensorKind string

const (
	SensorPressure    SensorKind = "pressure"
	SensorTemperature SensorKind = "temperature"
	SensorHumidity    SensorKind = "humidity"
	SensorBattery     SensorKind = "battery"
	SensorAccel       SensorKind = "accel"
	SensorLight       SensorKind = "light"
	SensorComposite   SensorKind = "composite"

	// SensorAltitude is a derived reading the Pipeline computes from a
	// barometric pressure reading; it is never produced by the codec.
	SensorAltitude SensorKind = "altitude"
)

// Position identifies which wheel a tire reading came from, if any.
type Position string

const (
	PositionFrontLeft  Position = "front_left"
	PositionFrontRight Position = "front_right"
	PositionRearLeft   Position = "rear_left"
	PositionRearRight  Position = "rear_right"
	PositionNone       Position = "none"
)

// Quality describes how much a Reading's value can be trusted.
type Quality string

const (
	QualityGood    Quality = "good"
	QualitySuspect Quality = "suspect"
	QualityInvalid Quality = "invalid"
)

// Reading is a single sensor observation. Immutable once accepted into
// the pipeline.
type Reading struct {
	DeviceID        string     `json:"device_id"`
	SensorKind      SensorKind `json:"sensor_kind"`
	Position        Position   `json:"position,omitempty"`
	Value           float64    `json:"value"`

	// RawValue preserves the original reported value when Quality is
	// invalid because Value was clamped or rejected by range validation.
	RawValue float64 `json:"raw_value,omitempty"`

	Unit            string    `json:"unit"`
	DeviceTimestamp time.Time `json:"device_timestamp"`
	IngestTimestamp time.Time `json:"ingest_timestamp"`
	Quality         Quality   `json:"quality"`

	// Seq is a per-device monotonically increasing sequence assigned by
	// the Session on ingest, used to detect out-of-order delivery and to
	// drive Subscription.last_delivered_seq.
	Seq uint64 `json:"seq"`
}

// DropPolicy controls what a Subscription does when its outbox is full.
type DropPolicy string

const (
	DropPolicySlowDrop   DropPolicy = "slow_drop"
	DropPolicyDisconnect DropPolicy = "disconnect"
)

// Filter bounds which Readings a Subscription receives.
type Filter struct {
	// Devices is a set of device IDs, or {"*"} for all devices the
	// principal is authorized to see.
	Devices []string `json:"devices"`
	// Kinds restricts delivery to the given sensor kinds; empty means all.
	Kinds []SensorKind `json:"kinds,omitempty"`
}

// Matches reports whether a Reading satisfies the filter.
func (f Filter) Matches(r Reading) bool {
	if !f.matchesDevice(r.DeviceID) {
		return false
	}
	if len(f.Kinds) == 0 {
		return true
	}
	for _, k := range f.Kinds {
		if k == r.SensorKind {
			return true
		}
	}
	return false
}

func (f Filter) matchesDevice(deviceID string) bool {
	for _, d := range f.Devices {
		if d == "*" || d == deviceID {
			return true
		}
	}
	return false
}

// AlertSeverity ranks how urgently an Alert needs attention.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// AlertState tracks an Alert's lifecycle.
type AlertState string

const (
	AlertStateFiring   AlertState = "firing"
	AlertStateResolved AlertState = "resolved"
	AlertStateSilenced AlertState = "silenced"
)

// Alert records a rule firing for a device. Uniqueness is enforced by
// (DeviceID, RuleID) while in the firing state.
type Alert struct {
	AlertID   string        `json:"alert_id"`
	DeviceID  string        `json:"device_id"`
	RuleID    string        `json:"rule_id"`
	Severity  AlertSeverity `json:"severity"`
	OpenedAt  time.Time     `json:"opened_at"`
	ClosedAt  *time.Time    `json:"closed_at,omitempty"`
	LastValue float64       `json:"last_value"`
	Threshold float64       `json:"threshold"`
	State     AlertState    `json:"state"`
}
