package supervisor

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeMQTTIngest struct{ stopped bool }

func (f *fakeMQTTIngest) Stop(ctx context.Context) error {
	f.stopped = true
	return nil
}

type fakePipeline struct{ closed bool }

func (f *fakePipeline) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

type fakeSink struct {
	lost int
	err  error
}

func (f *fakeSink) Close(ctx context.Context) (int, error) { return f.lost, f.err }

type fakeAlerts struct{ closed bool }

func (f *fakeAlerts) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

type fakeHub struct{ shutdown bool }

func (f *fakeHub) Shutdown() { f.shutdown = true }

type fakeMQTTHealth struct{ connected bool }

func (f fakeMQTTHealth) IsConnected() bool { return f.connected }

func TestSupervisor_ShutdownRunsEveryStage(t *testing.T) {
	mqtt := &fakeMQTTIngest{}
	pipeline := &fakePipeline{}
	sink := &fakeSink{}
	alerts := &fakeAlerts{}
	hub := &fakeHub{}

	s := New(Config{MQTT: mqtt, Pipeline: pipeline, Sink: sink, Alerts: alerts, Hub: hub})

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if !mqtt.stopped || !pipeline.closed || !alerts.closed || !hub.shutdown {
		t.Fatal("expected every component to be shut down")
	}
}

func TestSupervisor_ShutdownIsIdempotent(t *testing.T) {
	mqtt := &fakeMQTTIngest{}
	s := New(Config{MQTT: mqtt})

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	mqtt.stopped = false
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
	if mqtt.stopped {
		t.Fatal("expected second Shutdown to be a no-op")
	}
}

func TestSupervisor_ShutdownRecordsLostReadings(t *testing.T) {
	sink := &fakeSink{lost: 42}
	s := New(Config{Sink: sink})

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if got := s.LostReadingsOnShutdown(); got != 42 {
		t.Fatalf("expected 42 lost readings, got %d", got)
	}
}

func TestSupervisor_ReadyFalseWhenMQTTDisconnected(t *testing.T) {
	s := New(Config{MQTTHealth: fakeMQTTHealth{connected: false}})
	if s.Ready() {
		t.Fatal("expected not ready when MQTT is disconnected")
	}
}

func TestSupervisor_ReadyFalseWhenSinkStale(t *testing.T) {
	s := New(Config{ReadyMaxSinceWrite: 10 * time.Millisecond})
	time.Sleep(20 * time.Millisecond)
	if s.Ready() {
		t.Fatal("expected not ready once the last write exceeds ReadyMaxSinceWrite")
	}
}

func TestSupervisor_ReadyTrueAfterRecordWrite(t *testing.T) {
	s := New(Config{ReadyMaxSinceWrite: time.Minute})
	s.RecordWrite(1, time.Millisecond, nil)
	if !s.Ready() {
		t.Fatal("expected ready after a recent successful write")
	}
}

func TestSupervisor_RecordWriteIgnoresFailedFlush(t *testing.T) {
	s := New(Config{ReadyMaxSinceWrite: 10 * time.Millisecond})
	time.Sleep(20 * time.Millisecond)
	s.RecordWrite(0, time.Millisecond, errors.New("write failed"))
	if s.Ready() {
		t.Fatal("expected a failed flush not to refresh readiness")
	}
}

func TestHandlers_HealthzAlwaysOK(t *testing.T) {
	s := New(Config{})
	rec := httptest.NewRecorder()
	s.HealthzHandler(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandlers_ReadyzReflectsReady(t *testing.T) {
	s := New(Config{MQTTHealth: fakeMQTTHealth{connected: false}})
	rec := httptest.NewRecorder()
	s.ReadyzHandler(rec, httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != 503 {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
