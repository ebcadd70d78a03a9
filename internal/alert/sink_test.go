package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartsensor/gateway/internal/model"
)

func TestWebhookSink_PostsAlertJSON(t *testing.T) {
	var received model.Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decoding posted body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL)
	alert := model.Alert{AlertID: "a1", DeviceID: "HK_1", RuleID: "tpms_low"}
	if err := sink.Emit(context.Background(), alert); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if received.AlertID != "a1" {
		t.Fatalf("expected server to receive alert a1, got %+v", received)
	}
}

func TestWebhookSink_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL)
	if err := sink.Emit(context.Background(), model.Alert{AlertID: "a1"}); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}

type fakePublisher struct {
	topic   string
	payload []byte
}

func (f *fakePublisher) Publish(topic string, payload []byte, _ byte, _ bool) error {
	f.topic = topic
	f.payload = payload
	return nil
}

type fakeTopics struct{}

func (fakeTopics) AlertNotification(ruleID string) string { return "telemetry/alerts/" + ruleID }

func TestMQTTSink_PublishesToRuleTopic(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewMQTTSink(pub, fakeTopics{})

	if err := sink.Emit(context.Background(), model.Alert{AlertID: "a1", RuleID: "tpms_low"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if pub.topic != "telemetry/alerts/tpms_low" {
		t.Fatalf("unexpected topic: %s", pub.topic)
	}
	var decoded model.Alert
	if err := json.Unmarshal(pub.payload, &decoded); err != nil {
		t.Fatalf("decoding published payload: %v", err)
	}
	if decoded.AlertID != "a1" {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
}
