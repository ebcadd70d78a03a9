package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/smartsensor/gateway/internal/model"
)

// Sink is the external alert delivery adapter spec.md §4.7 calls
// abstract: email, chat webhook, SMS, or an MQTT topic. The engine
// guarantees at-least-once handoff to whatever Sink is configured; the
// Sink itself does not need to be idempotent, since dedup already
// happens in the engine before Emit is ever called.
type Sink interface {
	Emit(ctx context.Context, a model.Alert) error
}

// WebhookSink posts each Alert as a JSON body to a configured URL,
// following the teacher's general preference for a plain net/http
// client over a dedicated webhook library anywhere in the pack.
type WebhookSink struct {
	url        string
	httpClient *http.Client
}

func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:        url,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func (w *WebhookSink) Emit(ctx context.Context, a model.Alert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshalling alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting alert webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Publisher is the narrow MQTT surface MQTTSink needs, satisfied by
// *internal/mqtt.Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Topics builds the alert notification topic. Satisfied by
// internal/mqtt.Topics.
type Topics interface {
	AlertNotification(ruleID string) string
}

// MQTTSink publishes each Alert to its rule's notification topic,
// reusing the ingest broker connection rather than opening a second
// one.
type MQTTSink struct {
	publisher Publisher
	topics    Topics
}

func NewMQTTSink(publisher Publisher, topics Topics) *MQTTSink {
	return &MQTTSink{publisher: publisher, topics: topics}
}

func (m *MQTTSink) Emit(_ context.Context, a model.Alert) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshalling alert: %w", err)
	}
	topic := m.topics.AlertNotification(a.RuleID)
	if err := m.publisher.Publish(topic, payload, 1, false); err != nil {
		return fmt.Errorf("publishing alert to %q: %w", topic, err)
	}
	return nil
}
