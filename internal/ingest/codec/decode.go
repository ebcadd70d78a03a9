package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/smartsensor/gateway/internal/model"
)

// Range bounds per sensor kind, per the gateway's published range table.
// Other layers consume this table rather than reimplementing their own
// validation (firmware, UI, and any future ingest path share it).
var (
	pressureRangeKPa    = [2]float64{0, 600}
	tireTempRangeC      = [2]float64{-40, 120}
	humidityRangePct    = [2]float64{0, 100}
	batteryRangeVolts   = [2]float64{0, 5}
)

// MaxClockSkew bounds how far a device's reported timestamp may drift
// from server time before the frame is rejected outright.
const MaxClockSkew = 24 * time.Hour

// DecodeResult is the outcome of decoding one inbound frame.
type DecodeResult struct {
	DeviceID        string
	DeviceTimestamp time.Time
	Firmware        string
	Readings        []model.Reading
}

// Decode parses one raw JSON frame (MQTT payload or one element of an
// HTTP batch) into a DecodeResult. It never panics on malformed input;
// every failure returns a *DecodeError.
//
// Unknown sensor keys are preserved as a composite Reading with
// quality=suspect rather than dropped, for forward compatibility with
// firmware that reports fields this gateway doesn't yet recognize.
func Decode(raw []byte, now time.Time) (*DecodeResult, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		offset := int64(-1)
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) {
			offset = syntaxErr.Offset
		} else if errors.As(err, &typeErr) {
			offset = typeErr.Offset
		}
		return nil, newDecodeError(fmt.Errorf("%w: %w", ErrMalformed, err), offset)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		offset := int64(-1)
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			offset = typeErr.Offset
		}
		return nil, newDecodeError(fmt.Errorf("%w: %w", ErrMalformed, err), offset)
	}

	if env.DeviceID == "" {
		return nil, newDecodeError(ErrMissingDeviceID, -1)
	}

	deviceTS := now
	if env.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, env.Timestamp)
		if err != nil {
			return nil, newDecodeError(fmt.Errorf("%w: bad timestamp: %w", ErrMalformed, err), -1)
		}
		deviceTS = parsed
	}

	skew := now.Sub(deviceTS)
	if skew < 0 {
		skew = -skew
	}
	if skew > MaxClockSkew {
		return nil, newDecodeError(ErrClockSkew, -1)
	}

	result := &DecodeResult{
		DeviceID:        env.DeviceID,
		DeviceTimestamp: deviceTS,
		Firmware:        env.Firmware,
	}

	base := func(kind model.SensorKind, pos model.Position, value float64, unit string) model.Reading {
		return model.Reading{
			DeviceID:        env.DeviceID,
			SensorKind:      kind,
			Position:        pos,
			Unit:            unit,
			DeviceTimestamp: deviceTS,
			IngestTimestamp: now,
		}
	}

	if env.Sensors.Temperature != nil {
		r := base(model.SensorTemperature, model.PositionNone, *env.Sensors.Temperature, "celsius")
		setRangeChecked(&r, *env.Sensors.Temperature, tireTempRangeC)
		result.Readings = append(result.Readings, r)
	}
	if env.Sensors.Humidity != nil {
		r := base(model.SensorHumidity, model.PositionNone, *env.Sensors.Humidity, "percent")
		setRangeChecked(&r, *env.Sensors.Humidity, humidityRangePct)
		result.Readings = append(result.Readings, r)
	}
	if env.Sensors.Pressure != nil {
		r := base(model.SensorPressure, model.PositionNone, *env.Sensors.Pressure, "kPa")
		setRangeChecked(&r, *env.Sensors.Pressure, pressureRangeKPa)
		result.Readings = append(result.Readings, r)
	}
	if env.Sensors.BatteryV != nil {
		r := base(model.SensorBattery, model.PositionNone, *env.Sensors.BatteryV, "volts")
		setRangeChecked(&r, *env.Sensors.BatteryV, batteryRangeVolts)
		result.Readings = append(result.Readings, r)
	}
	for _, tire := range env.Sensors.Tires {
		pos := model.Position(tirePosition[tire.Position])
		if pos == "" {
			pos = model.PositionNone
		}
		if tire.PressureKPa != nil {
			r := base(model.SensorPressure, pos, *tire.PressureKPa, "kPa")
			setRangeChecked(&r, *tire.PressureKPa, pressureRangeKPa)
			result.Readings = append(result.Readings, r)
		}
		if tire.TemperatureC != nil {
			r := base(model.SensorTemperature, pos, *tire.TemperatureC, "celsius")
			setRangeChecked(&r, *tire.TemperatureC, tireTempRangeC)
			result.Readings = append(result.Readings, r)
		}
	}

	result.Readings = append(result.Readings, decodeUnknownKeys(top, env.DeviceID, deviceTS, now)...)

	return result, nil
}

// setRangeChecked sets Value/RawValue/Quality on r given a value and its
// valid range. Out-of-range values become quality=invalid with the
// original value retained in RawValue rather than being dropped.
func setRangeChecked(r *model.Reading, value float64, rng [2]float64) {
	r.RawValue = value
	if value < rng[0] || value > rng[1] {
		r.Value = value
		r.Quality = model.QualityInvalid
		return
	}
	r.Value = value
	r.Quality = model.QualityGood
}

var knownSensorKeys = map[string]struct{}{
	"temperature": {}, "humidity": {}, "pressure": {},
	"tires": {}, "battery_v": {}, "rssi": {},
}

// decodeUnknownKeys preserves sensor keys this gateway doesn't recognize
// as quality=suspect composite Readings, instead of silently dropping
// them, so firmware can add fields without breaking ingest.
func decodeUnknownKeys(top map[string]json.RawMessage, deviceID string, deviceTS, now time.Time) []model.Reading {
	rawSensors, ok := top["sensors"]
	if !ok {
		return nil
	}
	var sensors map[string]json.RawMessage
	if err := json.Unmarshal(rawSensors, &sensors); err != nil {
		return nil
	}

	var out []model.Reading
	for key, raw := range sensors {
		if _, known := knownSensorKeys[key]; known {
			continue
		}
		var value float64
		if err := json.Unmarshal(raw, &value); err != nil {
			// Non-numeric unknown field: still record its presence.
			value = 0
		}
		out = append(out, model.Reading{
			DeviceID:        deviceID,
			SensorKind:      model.SensorComposite,
			Position:        model.PositionNone,
			Value:           value,
			RawValue:        value,
			Unit:            key,
			DeviceTimestamp: deviceTS,
			IngestTimestamp: now,
			Quality:         model.QualitySuspect,
		})
	}
	return out
}
