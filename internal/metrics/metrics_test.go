package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

type fakePipeline struct{ depths []int }

func (f fakePipeline) Depths() []int { return f.depths }

type fakeSink struct{ depth int }

func (f fakeSink) Depth() int { return f.depth }

type fakeHub struct {
	clients int
	dropped uint64
}

func (f fakeHub) ClientCount() int     { return f.clients }
func (f fakeHub) TotalDropped() uint64 { return f.dropped }

type fakeAlerts struct {
	open        int
	deadLetters uint64
}

func (f fakeAlerts) OpenAlertCount() int    { return f.open }
func (f fakeAlerts) DeadLetterCount() uint64 { return f.deadLetters }

func TestCollector_GaugesReflectLiveDependencies(t *testing.T) {
	c := New(Dependencies{
		Pipeline: fakePipeline{depths: []int{3, 5}},
		Sink:     fakeSink{depth: 42},
		Hub:      fakeHub{clients: 2, dropped: 7},
		Alerts:   fakeAlerts{open: 1, deadLetters: 9},
	})

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		"pipeline_queue_depth_total 8",
		"durable_wab_depth 42",
		"subscribers_connected 2",
		"subscriber_dropped_frames_total 7",
		"alerts_open 1",
		"alert_dead_letter_total 9",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected metrics output to contain %q, got:\n%s", want, body)
		}
	}
}

func TestCollector_CountersIncrement(t *testing.T) {
	c := New(Dependencies{})
	c.IngestFramesTotal.WithLabelValues("mqtt").Inc()
	c.IngestRejectedTotal.WithLabelValues("http", "rate_limited").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, `ingest_frames_total{transport="mqtt"} 1`) {
		t.Errorf("expected ingest_frames_total to reflect the increment, got:\n%s", body)
	}
	if !strings.Contains(body, `ingest_rejected_total{reason="rate_limited",transport="http"} 1`) {
		t.Errorf("expected ingest_rejected_total to reflect the increment, got:\n%s", body)
	}
}

func TestCollector_IncAcceptedAndIncRejected(t *testing.T) {
	c := New(Dependencies{})
	c.IncAccepted("http")
	c.IncAccepted("http")
	c.IncRejected("mqtt", "unauthorized")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, `ingest_frames_total{transport="http"} 2`) {
		t.Errorf("expected IncAccepted to increment ingest_frames_total, got:\n%s", body)
	}
	if !strings.Contains(body, `ingest_rejected_total{reason="unauthorized",transport="mqtt"} 1`) {
		t.Errorf("expected IncRejected to increment ingest_rejected_total, got:\n%s", body)
	}
}

func TestCollector_NilDependenciesOmitGauges(t *testing.T) {
	c := New(Dependencies{})

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if strings.Contains(body, "pipeline_queue_depth_total") {
		t.Error("expected no pipeline gauge when Dependencies.Pipeline is nil")
	}
}
