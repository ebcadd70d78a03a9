package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartsensor/gateway/internal/model"
)

var errEmitFailed = errors.New("emit failed")

type recordingSink struct {
	mu     sync.Mutex
	alerts []model.Alert
	failN  int
}

func (s *recordingSink) Emit(_ context.Context, a model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failN > 0 {
		s.failN--
		return errEmitFailed
	}
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *recordingSink) snapshot() []model.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

func waitForCount(t *testing.T, sink *recordingSink, n int) []model.Alert {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		got := sink.snapshot()
		if len(got) >= n {
			return got
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d dispatched alerts, got %d", n, len(got))
		case <-time.After(time.Millisecond):
		}
	}
}

func reading(deviceID string, kind model.SensorKind, value float64) model.Reading {
	return model.Reading{
		DeviceID:        deviceID,
		SensorKind:      kind,
		Value:           value,
		Quality:         model.QualityGood,
		IngestTimestamp: time.Now(),
	}
}

func TestEngine_ThresholdBelowOpensAlert(t *testing.T) {
	rule := Rule{ID: "tpms_low", Scope: Scope{Devices: []string{"*"}}, Sensor: string(model.SensorPressure), Kind: PredicateThresholdBelow, Threshold: 200.0, Severity: "critical"}
	sink := &recordingSink{}
	e := New([]Rule{rule}, sink, nil, Config{})
	defer e.Close(context.Background())

	e.Evaluate(reading("HK_1", model.SensorPressure, 180.0))

	alerts := waitForCount(t, sink, 1)
	if alerts[0].State != model.AlertStateFiring {
		t.Fatalf("expected firing alert, got %+v", alerts[0])
	}
}

func TestEngine_DedupSuppressesRepeatFiring(t *testing.T) {
	rule := Rule{ID: "tpms_low", Scope: Scope{Devices: []string{"*"}}, Sensor: string(model.SensorPressure), Kind: PredicateThresholdBelow, Threshold: 200.0, Severity: "critical"}
	sink := &recordingSink{}
	e := New([]Rule{rule}, sink, nil, Config{})
	defer e.Close(context.Background())

	e.Evaluate(reading("HK_1", model.SensorPressure, 180.0))
	e.Evaluate(reading("HK_1", model.SensorPressure, 190.0))

	waitForCount(t, sink, 1)
	time.Sleep(50 * time.Millisecond)
	if got := len(sink.snapshot()); got != 1 {
		t.Fatalf("expected still only 1 dispatched alert, got %d", got)
	}
}

func TestEngine_HoldDownResolvesAfterSustainedFalse(t *testing.T) {
	rule := Rule{ID: "tpms_low", Scope: Scope{Devices: []string{"*"}}, Sensor: string(model.SensorPressure), Kind: PredicateThresholdBelow, Threshold: 200.0, Severity: "critical", HoldDown: 20 * time.Millisecond}
	sink := &recordingSink{}
	e := New([]Rule{rule}, sink, nil, Config{})
	defer e.Close(context.Background())

	e.Evaluate(reading("HK_1", model.SensorPressure, 180.0))
	waitForCount(t, sink, 1)

	e.Evaluate(reading("HK_1", model.SensorPressure, 210.0))
	time.Sleep(30 * time.Millisecond)
	e.Evaluate(reading("HK_1", model.SensorPressure, 210.0))

	alerts := waitForCount(t, sink, 2)
	if alerts[1].State != model.AlertStateResolved {
		t.Fatalf("expected second dispatch to be resolved, got %+v", alerts[1])
	}
}

func TestEngine_MissingDataFiresAfterSilence(t *testing.T) {
	rule := Rule{ID: "no_data", Scope: Scope{Devices: []string{"*"}}, Sensor: string(model.SensorTemperature), Kind: PredicateMissingData, ForDuration: 15 * time.Millisecond, Severity: "warning"}
	sink := &recordingSink{}
	e := New([]Rule{rule}, sink, nil, Config{})
	defer e.Close(context.Background())

	e.Evaluate(reading("HK_1", model.SensorTemperature, 21.0))

	alerts := waitForCount(t, sink, 1)
	if alerts[0].RuleID != "no_data" {
		t.Fatalf("expected no_data alert, got %+v", alerts[0])
	}
}

func TestEngine_OutOfScopeDeviceNeverFires(t *testing.T) {
	rule := Rule{ID: "tpms_low", Scope: Scope{Devices: []string{"HK_OTHER"}}, Sensor: string(model.SensorPressure), Kind: PredicateThresholdBelow, Threshold: 200.0, Severity: "critical"}
	sink := &recordingSink{}
	e := New([]Rule{rule}, sink, nil, Config{})
	defer e.Close(context.Background())

	e.Evaluate(reading("HK_1", model.SensorPressure, 100.0))

	time.Sleep(30 * time.Millisecond)
	if got := len(sink.snapshot()); got != 0 {
		t.Fatalf("expected no dispatch for out-of-scope device, got %d", got)
	}
}

func TestEngine_DispatchRetriesThenSucceeds(t *testing.T) {
	rule := Rule{ID: "tpms_low", Scope: Scope{Devices: []string{"*"}}, Sensor: string(model.SensorPressure), Kind: PredicateThresholdBelow, Threshold: 200.0, Severity: "critical"}
	sink := &recordingSink{failN: 2}
	e := New([]Rule{rule}, sink, nil, Config{RetryBackoffMin: time.Millisecond, RetryBackoffMax: 5 * time.Millisecond})
	defer e.Close(context.Background())

	e.Evaluate(reading("HK_1", model.SensorPressure, 180.0))

	waitForCount(t, sink, 1)
	if e.DeadLetterCount() != 0 {
		t.Fatalf("expected 0 dead letters, got %d", e.DeadLetterCount())
	}
}

func TestEngine_DispatchExhaustsRetriesAndDeadLetters(t *testing.T) {
	rule := Rule{ID: "tpms_low", Scope: Scope{Devices: []string{"*"}}, Sensor: string(model.SensorPressure), Kind: PredicateThresholdBelow, Threshold: 200.0, Severity: "critical"}
	sink := &recordingSink{failN: 100}
	e := New([]Rule{rule}, sink, nil, Config{RetryAttempts: 2, RetryBackoffMin: time.Millisecond, RetryBackoffMax: 2 * time.Millisecond})
	defer e.Close(context.Background())

	e.Evaluate(reading("HK_1", model.SensorPressure, 180.0))

	deadline := time.After(2 * time.Second)
	for e.DeadLetterCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for dead letter")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestEngine_OpenAlertsReturnsFiringOnly(t *testing.T) {
	rule := Rule{ID: "tpms_low", Scope: Scope{Devices: []string{"*"}}, Sensor: string(model.SensorPressure), Kind: PredicateThresholdBelow, Threshold: 200.0, Severity: "critical"}
	sink := &recordingSink{}
	e := New([]Rule{rule}, sink, nil, Config{})
	defer e.Close(context.Background())

	e.Evaluate(reading("HK_1", model.SensorPressure, 180.0))
	waitForCount(t, sink, 1)

	open := e.OpenAlerts()
	if len(open) != 1 || open[0].DeviceID != "HK_1" {
		t.Fatalf("expected 1 open alert for HK_1, got %+v", open)
	}
}
