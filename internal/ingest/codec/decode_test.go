package codec

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/smartsensor/gateway/internal/model"
)

func TestDecode_HappyPathTPMS(t *testing.T) {
	now := time.Date(2024, 1, 26, 14, 30, 30, 0, time.UTC)
	raw := []byte(`{"device_id":"HK_000001","timestamp":"2024-01-26T14:30:25Z",
		"sensors":{"tires":[{"position":"FL","pressure_kpa":220.0,"temperature_c":35.0}]}}`)

	result, err := Decode(raw, now)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if len(result.Readings) != 2 {
		t.Fatalf("expected 2 readings (pressure+temperature), got %d", len(result.Readings))
	}

	var pressure *model.Reading
	for i := range result.Readings {
		if result.Readings[i].SensorKind == model.SensorPressure {
			pressure = &result.Readings[i]
		}
	}
	if pressure == nil {
		t.Fatal("expected a pressure reading")
	}
	if pressure.Position != model.PositionFrontLeft {
		t.Errorf("Position = %q, want front_left", pressure.Position)
	}
	if pressure.Value != 220.0 {
		t.Errorf("Value = %v, want 220.0", pressure.Value)
	}
	if pressure.Quality != model.QualityGood {
		t.Errorf("Quality = %q, want good", pressure.Quality)
	}
}

func TestDecode_MissingDeviceID(t *testing.T) {
	_, err := Decode([]byte(`{"timestamp":"2024-01-26T14:30:25Z"}`), time.Now())
	if !errors.Is(err, ErrMissingDeviceID) {
		t.Errorf("error = %v, want ErrMissingDeviceID", err)
	}
}

func TestDecode_MalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`not json`), time.Now())
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("error = %v, want ErrMalformed", err)
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Errorf("expected *DecodeError, got %T", err)
	}
}

func TestDecode_ClockSkewRejected(t *testing.T) {
	now := time.Date(2024, 1, 26, 14, 30, 30, 0, time.UTC)
	raw := []byte(`{"device_id":"HK_1","timestamp":"2020-01-01T00:00:00Z"}`)

	_, err := Decode(raw, now)
	if !errors.Is(err, ErrClockSkew) {
		t.Errorf("error = %v, want ErrClockSkew", err)
	}
}

func TestDecode_OutOfRangePressureBecomesInvalid(t *testing.T) {
	now := time.Now()
	raw := []byte(`{"device_id":"HK_1","timestamp":"` + now.Format(time.RFC3339) + `",
		"sensors":{"pressure":9999}}`)

	result, err := Decode(raw, now)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(result.Readings) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(result.Readings))
	}
	r := result.Readings[0]
	if r.Quality != model.QualityInvalid {
		t.Errorf("Quality = %q, want invalid", r.Quality)
	}
	if r.RawValue != 9999 {
		t.Errorf("RawValue = %v, want 9999 (original value retained)", r.RawValue)
	}
}

func TestDecode_UnknownSensorKeyPreservedAsSuspect(t *testing.T) {
	now := time.Now()
	raw := []byte(`{"device_id":"HK_1","timestamp":"` + now.Format(time.RFC3339) + `",
		"sensors":{"vibration_hz":50.0}}`)

	result, err := Decode(raw, now)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(result.Readings) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(result.Readings))
	}
	r := result.Readings[0]
	if r.Quality != model.QualitySuspect {
		t.Errorf("Quality = %q, want suspect", r.Quality)
	}
	if r.SensorKind != model.SensorComposite {
		t.Errorf("SensorKind = %q, want composite", r.SensorKind)
	}
}

func TestDecode_NeverPanicsOnGarbage(t *testing.T) {
	inputs := [][]byte{
		nil,
		[]byte(``),
		[]byte(`{`),
		[]byte(`[]`),
		[]byte(`{"device_id":123}`),
		[]byte(`{"device_id":"x","sensors":"not-an-object"}`),
	}
	for _, in := range inputs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("Decode panicked on input %q: %v", in, r)
				}
			}()
			_, _ = Decode(in, time.Now())
		}()
	}
}

func TestEncodeSubscriberFrame_RoundTripIsByteIdentical(t *testing.T) {
	now := time.Date(2024, 1, 26, 14, 30, 30, 0, time.UTC)
	r := model.Reading{
		DeviceID:        "HK_1",
		SensorKind:      model.SensorPressure,
		Position:        model.PositionFrontLeft,
		Value:           220.0,
		Unit:            "kPa",
		DeviceTimestamp: now,
		IngestTimestamp: now,
		Quality:         model.QualityGood,
	}

	first, err := EncodeSubscriberFrame(r)
	if err != nil {
		t.Fatalf("EncodeSubscriberFrame() error = %v", err)
	}
	second, err := EncodeSubscriberFrame(r)
	if err != nil {
		t.Fatalf("EncodeSubscriberFrame() error = %v", err)
	}
	if string(first) != string(second) {
		t.Errorf("encoding not byte-identical across calls:\n%s\n%s", first, second)
	}

	var decoded SubscriberFrame
	if err := json.Unmarshal(first, &decoded); err != nil {
		t.Fatalf("failed to unmarshal encoded frame: %v", err)
	}
	if decoded.DeviceID != r.DeviceID {
		t.Errorf("decoded DeviceID = %q, want %q", decoded.DeviceID, r.DeviceID)
	}
}
