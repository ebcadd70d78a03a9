package mqtt

import (
	"errors"
	"testing"
	"time"

	"github.com/smartsensor/gateway/internal/config"
)

// testConfig returns a valid MQTT configuration for testing.
// Tests require a running broker at 127.0.0.1:1883.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Brokers:   []string{"tcp://127.0.0.1:1883"},
		ClientID:  "sensorgw-test",
		TopicRoot: "telemetry-test",
		QoS:       1,
		Reconnect: config.ReconnectConfig{InitialDelaySeconds: 1, MaxDelaySeconds: 5},
	}
}

func TestConnect(t *testing.T) {
	cfg := testConfig()

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
}

func TestConnectInvalidBroker(t *testing.T) {
	cfg := testConfig()
	cfg.Brokers = []string{"tcp://127.0.0.1:19999"}

	_, err := Connect(cfg)
	if err == nil {
		t.Fatal("Connect() expected error for invalid broker")
	}

	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClose(t *testing.T) {
	cfg := testConfig()

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if client.IsConnected() {
		t.Error("IsConnected() = true after Close(), want false")
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	cfg := testConfig()
	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topic := Topics{Root: cfg.TopicRoot}.DeviceData("sensor-1")
	received := make(chan []byte, 1)

	if err := client.Subscribe(topic, 1, func(_ string, payload []byte) error {
		received <- payload
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := client.Publish(topic, []byte(`{"value":21.5}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case payload := <-received:
		if string(payload) != `{"value":21.5}` {
			t.Errorf("received payload = %s, want %s", payload, `{"value":21.5}`)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestSubscribeManualAck_DefersAck(t *testing.T) {
	cfg := testConfig()
	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topic := Topics{Root: cfg.TopicRoot}.DeviceData("sensor-2")
	acked := make(chan struct{}, 1)

	if err := client.SubscribeManualAck(topic, 1, func(_ string, _ []byte, ack func()) {
		ack()
		acked <- struct{}{}
	}); err != nil {
		t.Fatalf("SubscribeManualAck() error = %v", err)
	}

	if err := client.Publish(topic, []byte(`{"value":1}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case <-acked:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for manual ack callback")
	}
}

func TestSubscribe_InvalidTopic(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}
	if err := client.Subscribe("", 1, func(string, []byte) error { return nil }); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe() error = %v, want ErrInvalidTopic", err)
	}
}

func TestPublish_PayloadTooLarge(t *testing.T) {
	client := &Client{}
	huge := make([]byte, maxPayloadSize+1)
	if err := client.Publish("t", huge, 1, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish() error = %v, want ErrPublishFailed", err)
	}
}
