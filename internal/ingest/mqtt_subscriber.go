package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/smartsensor/gateway/internal/ingest/codec"
	"github.com/smartsensor/gateway/internal/mqtt"
	"github.com/smartsensor/gateway/internal/model"
)

// Logger is the narrow logging surface the ingest front-end depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Metrics is the narrow instrumentation surface both ingest front-ends
// report to, satisfied by *internal/metrics.Collector. transport is
// "mqtt" or "http"; reason identifies why a frame was rejected
// ("decode_error", "unauthorized", "rate_limited", "backpressure",
// "batch_too_large").
type Metrics interface {
	IncAccepted(transport string)
	IncRejected(transport, reason string)
}

type noopMetrics struct{}

func (noopMetrics) IncAccepted(string)         {}
func (noopMetrics) IncRejected(string, string) {}

// Resolver authenticates a device against the Device Registry.
// Satisfied by *internal/registry.Registry.
type Resolver interface {
	Resolve(ctx context.Context, deviceID, credentialsFingerprint string) (*model.Device, error)
}

// Submitter hands a decoded Reading to the Pipeline. Satisfied by
// *internal/pipeline.Pipeline.
type Submitter interface {
	Submit(ctx context.Context, r model.Reading) error
}

// Subscriber is the narrow MQTT surface the front-end needs, satisfied
// by *internal/mqtt.Client.
type Subscriber interface {
	SubscribeManualAck(topic string, qos byte, handler mqtt.AckHandler) error
}

type mqttMsg struct {
	topic   string
	payload []byte
	ack     func()
}

// MQTTIngest drains a device-data subscription across a fixed worker
// pool, decoding, authenticating, and submitting each frame's Readings
// to the Pipeline, acking the broker message only once every Reading
// has been accepted — per spec.md §4.3's at-least-once contract.
type MQTTIngest struct {
	client   Subscriber
	topics   mqtt.Topics
	registry Resolver
	pipeline Submitter
	logger   Logger
	metrics  Metrics

	workers int
	queue   chan mqttMsg
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewMQTTIngest builds the front-end; workers defaults to 8 if <= 0.
func NewMQTTIngest(client Subscriber, topics mqtt.Topics, registry Resolver, pipeline Submitter, workers int) *MQTTIngest {
	if workers <= 0 {
		workers = 8
	}
	return &MQTTIngest{
		client:   client,
		topics:   topics,
		registry: registry,
		pipeline: pipeline,
		logger:   noopLogger{},
		metrics:  noopMetrics{},
		workers:  workers,
		queue:    make(chan mqttMsg, workers*4),
		closeCh:  make(chan struct{}),
	}
}

func (m *MQTTIngest) SetLogger(l Logger) {
	if l != nil {
		m.logger = l
	}
}

// SetMetrics wires the ingest_frames_total/ingest_rejected_total
// counters; unset, the front-end reports nothing.
func (m *MQTTIngest) SetMetrics(c Metrics) {
	if c != nil {
		m.metrics = c
	}
}

// Start launches the worker pool and subscribes to every device's data
// topic. The subscription handler blocks on an already-full queue
// rather than dropping, which is what makes the broker redeliver on
// disconnect instead of the gateway silently losing a frame.
func (m *MQTTIngest) Start(ctx context.Context) error {
	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.workerLoop(ctx)
	}

	return m.client.SubscribeManualAck(m.topics.AllDeviceData(), 1, func(topic string, payload []byte, ack func()) {
		select {
		case m.queue <- mqttMsg{topic: topic, payload: payload, ack: ack}:
		case <-m.closeCh:
		case <-ctx.Done():
		}
	})
}

// Stop signals every worker to exit once its current frame is done and
// waits, subject to ctx. Frames still in the queue are not processed and
// stay unacknowledged, so the broker redelivers them.
func (m *MQTTIngest) Stop(ctx context.Context) error {
	close(m.closeCh)
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MQTTIngest) workerLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.closeCh:
			return
		case msg := <-m.queue:
			m.process(ctx, msg)
		}
	}
}

// process decodes, authenticates, and submits one MQTT frame. It acks
// unrecoverable frames (malformed payload, unknown/rejected device) so
// the broker doesn't redeliver a message that can never succeed, but
// withholds the ack on a pipeline submission failure so the broker
// retries the whole frame.
func (m *MQTTIngest) process(ctx context.Context, msg mqttMsg) {
	result, err := codec.Decode(msg.payload, time.Now())
	if err != nil {
		m.logger.Warn("ingest: decode failed, dropping frame", "topic", msg.topic, "error", err)
		m.metrics.IncRejected("mqtt", "decode_error")
		msg.ack()
		return
	}

	if _, err := m.registry.Resolve(ctx, result.DeviceID, fingerprint(msg.topic)); err != nil {
		m.logger.Warn("ingest: device auth failed", "device_id", result.DeviceID, "error", err)
		m.metrics.IncRejected("mqtt", "unauthorized")
		msg.ack()
		return
	}

	for _, r := range result.Readings {
		if err := m.pipeline.Submit(ctx, r); err != nil {
			m.logger.Error("ingest: pipeline submit failed, withholding ack", "device_id", result.DeviceID, "error", err)
			m.metrics.IncRejected("mqtt", "backpressure")
			return
		}
	}

	m.metrics.IncAccepted("mqtt")
	msg.ack()
}
