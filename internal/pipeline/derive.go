package pipeline

import (
	"math"

	"github.com/smartsensor/gateway/internal/model"
)

// seaLevelPressureKPa is the standard atmosphere reference pressure used
// for the barometric altitude approximation below.
const seaLevelPressureKPa = 101.325

// deriveAltitude computes an approximate altitude in meters from a
// barometric pressure reading, using the standard barometric formula. It
// is only meaningful for good-quality pressure readings; callers should
// not derive from invalid or suspect data.
func deriveAltitude(pressure model.Reading) model.Reading {
	altitudeM := 44330 * (1 - math.Pow(pressure.Value/seaLevelPressureKPa, 1/5.255))

	return model.Reading{
		DeviceID:        pressure.DeviceID,
		SensorKind:      model.SensorAltitude,
		Value:           altitudeM,
		Unit:            "m",
		DeviceTimestamp: pressure.DeviceTimestamp,
		IngestTimestamp: pressure.IngestTimestamp,
		Quality:         pressure.Quality,
	}
}
