package sink

import (
	"strings"
	"testing"
	"time"

	"github.com/smartsensor/gateway/internal/model"
)

func TestReadingLine_EscapesAndOrdersDeterministically(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := model.Reading{
		DeviceID:        "HK 1,special=value",
		SensorKind:      model.SensorPressure,
		Position:        model.PositionFrontLeft,
		Value:           210.5,
		Quality:         model.QualityGood,
		IngestTimestamp: ts,
	}

	line := readingLine(r)

	if !strings.HasPrefix(line, "pressure,") {
		t.Fatalf("expected measurement prefix, got %q", line)
	}
	if !strings.Contains(line, `device_id=HK\ 1\,special\=value`) {
		t.Errorf("expected escaped device_id tag, got %q", line)
	}
	if !strings.Contains(line, "value=210.5") {
		t.Errorf("expected value field, got %q", line)
	}
	if !strings.HasSuffix(line, "1767225600000000000") {
		t.Errorf("expected nanosecond timestamp suffix, got %q", line)
	}
}

func TestReadingLine_InvalidQualityIncludesRawValue(t *testing.T) {
	r := model.Reading{
		DeviceID:   "HK_1",
		SensorKind: model.SensorPressure,
		Value:      600,
		RawValue:   9001,
		Quality:    model.QualityInvalid,
	}
	line := readingLine(r)
	if !strings.Contains(line, "raw_value=9001") {
		t.Errorf("expected raw_value field for invalid quality, got %q", line)
	}
}

func TestEscapeTag(t *testing.T) {
	got := escapeTag("a b,c=d\ne")
	want := `a\ b\,c\=de`
	if got != want {
		t.Errorf("escapeTag = %q, want %q", got, want)
	}
}
