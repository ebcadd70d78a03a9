package model

import "time"

// HealthWindowSize is the number of recent frames used to compute the
// quality fraction component of a device's health score.
const HealthWindowSize = 20

// HealthInput is the pure-function input to ComputeHealthScore. Building
// it from a device's recent frame history is the Registry's job; scoring
// itself has no side effects so it is independently testable and always
// returns the same result for the same input.
type HealthInput struct {
	// RecentQualities holds up to HealthWindowSize entries, oldest first,
	// recording the Quality of the most recent frames.
	RecentQualities []Quality

	// LastFrameAt is when the most recent frame was received.
	LastFrameAt time.Time

	// Now is the evaluation instant (passed explicitly, not time.Now(),
	// so the function stays pure).
	Now time.Time

	// ExpectedCadence is the device's declared reporting interval; zero
	// means cadence is unknown and freshness is not penalized.
	ExpectedCadence time.Duration

	// BatteryVolts is the last reported battery voltage; zero means no
	// battery reading is available and the band contributes nothing.
	BatteryVolts float64
}

// ComputeHealthScore returns a score in [0,100]. It is a pure function:
// identical input always yields identical output.
func ComputeHealthScore(in HealthInput) int {
	qualityScore := qualityFraction(in.RecentQualities) * 60
	freshnessScore := freshnessFraction(in) * 30
	batteryScore := batteryBandFraction(in.BatteryVolts) * 10

	total := qualityScore + freshnessScore + batteryScore
	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}
	return int(total)
}

func qualityFraction(qualities []Quality) float64 {
	if len(qualities) == 0 {
		return 1 // no history yet; assume healthy until proven otherwise
	}
	good := 0
	for _, q := range qualities {
		if q == QualityGood {
			good++
		}
	}
	return float64(good) / float64(len(qualities))
}

func freshnessFraction(in HealthInput) float64 {
	if in.LastFrameAt.IsZero() {
		return 0
	}
	age := in.Now.Sub(in.LastFrameAt)
	if age < 0 {
		age = 0
	}
	if in.ExpectedCadence <= 0 {
		// Without a declared cadence, only penalize extreme staleness.
		if age > 24*time.Hour {
			return 0
		}
		return 1
	}
	// Linear falloff: on-cadence or better is fully fresh, 4x cadence is dead.
	ratio := float64(age) / float64(4*in.ExpectedCadence)
	if ratio > 1 {
		ratio = 1
	}
	return 1 - ratio
}

// Battery band thresholds for a typical 3.6V Li-SOCl2 sensor cell.
const (
	batteryFullVolts = 3.6
	batteryDeadVolts = 2.8
)

func batteryBandFraction(volts float64) float64 {
	if volts <= 0 {
		return 1 // no battery telemetry reported; don't penalize
	}
	if volts >= batteryFullVolts {
		return 1
	}
	if volts <= batteryDeadVolts {
		return 0
	}
	return (volts - batteryDeadVolts) / (batteryFullVolts - batteryDeadVolts)
}
