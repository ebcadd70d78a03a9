package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartsensor/gateway/internal/model"
	"github.com/smartsensor/gateway/internal/mqtt"
)

type fakeSubscriber struct {
	handler mqtt.AckHandler
}

func (f *fakeSubscriber) SubscribeManualAck(topic string, qos byte, handler mqtt.AckHandler) error {
	f.handler = handler
	return nil
}

type fakeResolver struct {
	mu        sync.Mutex
	rejectAll bool
	seen      []string
}

func (f *fakeResolver) Resolve(ctx context.Context, deviceID, credentialsFingerprint string) (*model.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, deviceID)
	if f.rejectAll {
		return nil, errors.New("unknown device")
	}
	return &model.Device{DeviceID: deviceID}, nil
}

type fakeSubmitter struct {
	mu        sync.Mutex
	failNext  bool
	submitted []model.Reading
}

func (f *fakeSubmitter) Submit(ctx context.Context, r model.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		return errors.New("pipeline full")
	}
	f.submitted = append(f.submitted, r)
	return nil
}

type fakeMetrics struct {
	mu       sync.Mutex
	accepted []string
	rejected []string // "transport:reason"
}

func (f *fakeMetrics) IncAccepted(transport string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepted = append(f.accepted, transport)
}

func (f *fakeMetrics) IncRejected(transport, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected = append(f.rejected, transport+":"+reason)
}

func validFrame(deviceID string) []byte {
	return []byte(`{"device_id":"` + deviceID + `","sensors":{"battery_v":3.7}}`)
}

func waitForAck(t *testing.T, acked chan struct{}) {
	t.Helper()
	select {
	case <-acked:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ack")
	}
}

func TestMQTTIngest_SuccessfulFrameIsAckedAndSubmitted(t *testing.T) {
	sub := &fakeSubscriber{}
	resolver := &fakeResolver{}
	submitter := &fakeSubmitter{}
	ing := NewMQTTIngest(sub, mqtt.Topics{Root: "telemetry"}, resolver, submitter, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := ing.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer ing.Stop(context.Background())

	acked := make(chan struct{})
	sub.handler("telemetry/devices/dev-1/data", validFrame("dev-1"), func() { close(acked) })

	waitForAck(t, acked)

	submitter.mu.Lock()
	defer submitter.mu.Unlock()
	if len(submitter.submitted) != 1 {
		t.Fatalf("expected 1 submitted reading, got %d", len(submitter.submitted))
	}
}

func TestMQTTIngest_DecodeFailureStillAcks(t *testing.T) {
	sub := &fakeSubscriber{}
	resolver := &fakeResolver{}
	submitter := &fakeSubmitter{}
	ing := NewMQTTIngest(sub, mqtt.Topics{Root: "telemetry"}, resolver, submitter, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := ing.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer ing.Stop(context.Background())

	acked := make(chan struct{})
	sub.handler("telemetry/devices/dev-1/data", []byte("not json"), func() { close(acked) })

	waitForAck(t, acked)
}

func TestMQTTIngest_RegistryRejectionStillAcks(t *testing.T) {
	sub := &fakeSubscriber{}
	resolver := &fakeResolver{rejectAll: true}
	submitter := &fakeSubmitter{}
	ing := NewMQTTIngest(sub, mqtt.Topics{Root: "telemetry"}, resolver, submitter, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := ing.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer ing.Stop(context.Background())

	acked := make(chan struct{})
	sub.handler("telemetry/devices/dev-1/data", validFrame("dev-1"), func() { close(acked) })

	waitForAck(t, acked)
}

func TestMQTTIngest_SubmitFailureWithholdsAck(t *testing.T) {
	sub := &fakeSubscriber{}
	resolver := &fakeResolver{}
	submitter := &fakeSubmitter{failNext: true}
	ing := NewMQTTIngest(sub, mqtt.Topics{Root: "telemetry"}, resolver, submitter, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := ing.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer ing.Stop(context.Background())

	acked := make(chan struct{})
	sub.handler("telemetry/devices/dev-1/data", validFrame("dev-1"), func() { close(acked) })

	select {
	case <-acked:
		t.Fatal("expected ack to be withheld after a submit failure")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMQTTIngest_ReportsAcceptedAndRejectedToMetrics(t *testing.T) {
	sub := &fakeSubscriber{}
	resolver := &fakeResolver{}
	submitter := &fakeSubmitter{}
	metrics := &fakeMetrics{}
	ing := NewMQTTIngest(sub, mqtt.Topics{Root: "telemetry"}, resolver, submitter, 1)
	ing.SetMetrics(metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := ing.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer ing.Stop(context.Background())

	acked := make(chan struct{})
	sub.handler("telemetry/devices/dev-1/data", validFrame("dev-1"), func() { close(acked) })
	waitForAck(t, acked)

	decodeFailed := make(chan struct{})
	sub.handler("telemetry/devices/dev-1/data", []byte("not json"), func() { close(decodeFailed) })
	waitForAck(t, decodeFailed)

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if len(metrics.accepted) != 1 || metrics.accepted[0] != "mqtt" {
		t.Fatalf("expected one mqtt accept, got %v", metrics.accepted)
	}
	if len(metrics.rejected) != 1 || metrics.rejected[0] != "mqtt:decode_error" {
		t.Fatalf("expected one mqtt:decode_error rejection, got %v", metrics.rejected)
	}
}
