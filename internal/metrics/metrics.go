// Package metrics exposes the gateway's Prometheus instrumentation.
// Counters are incremented directly by the components that own the
// events they count; gauges that mirror another component's live state
// (queue depth, connected subscriber count) are registered as
// GaugeFuncs so the /metrics scrape always reads the current value
// without a separate polling goroutine, grounded on the teacher pack's
// only Prometheus reference (99souls-ariadne's telemetry/metrics
// provider) simplified down from its multi-backend Provider interface
// to direct client_golang usage, since this gateway only ever exports
// to one backend.
package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineStats is the narrow surface Collector needs from
// *internal/pipeline.Pipeline.
type PipelineStats interface {
	Depths() []int
}

// SinkStats is the narrow surface Collector needs from *internal/sink.Sink.
type SinkStats interface {
	Depth() int
}

// HubStats is the narrow surface Collector needs from *internal/hub.Hub.
type HubStats interface {
	ClientCount() int
	TotalDropped() uint64
}

// Dependencies wires the live components Collector reads gauges from.
// Any field left nil simply isn't registered as a gauge.
type Dependencies struct {
	Pipeline PipelineStats
	Sink     SinkStats
	Hub      HubStats
	Alerts   AlertsLen
}

// AlertsLen reports the number of currently open alerts and the
// dispatch dead-letter count. It exposes only counts, so Collector
// doesn't need to know the shape of model.Alert.
type AlertsLen interface {
	OpenAlertCount() int
	DeadLetterCount() uint64
}

// Collector holds every metric the gateway exports.
type Collector struct {
	registry *prom.Registry

	IngestFramesTotal    *prom.CounterVec
	IngestRejectedTotal  *prom.CounterVec
	DurableFlushLatency  prom.Histogram
	ShutdownLostReadings prom.Counter
	AlertDispatchFailure prom.Counter
}

// New builds a Collector and registers every metric, including
// GaugeFuncs bound to deps. Call Handler to obtain the /metrics
// http.Handler.
func New(deps Dependencies) *Collector {
	reg := prom.NewRegistry()

	c := &Collector{
		registry: reg,
		IngestFramesTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "ingest_frames_total",
			Help: "Frames accepted by an ingest front-end, by transport.",
		}, []string{"transport"}),
		IngestRejectedTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "ingest_rejected_total",
			Help: "Frames rejected by an ingest front-end, by transport and reason.",
		}, []string{"transport", "reason"}),
		DurableFlushLatency: prom.NewHistogram(prom.HistogramOpts{
			Name:    "durable_flush_latency_seconds",
			Help:    "Latency of a durable sink flush batch.",
			Buckets: prom.DefBuckets,
		}),
		ShutdownLostReadings: prom.NewCounter(prom.CounterOpts{
			Name: "shutdown_lost_readings_total",
			Help: "Readings still queued in the WAB when the shutdown drain deadline expired.",
		}),
		AlertDispatchFailure: prom.NewCounter(prom.CounterOpts{
			Name: "alert_dispatch_dead_letters_total",
			Help: "Alerts dropped after exhausting dispatch retries.",
		}),
	}

	reg.MustRegister(c.IngestFramesTotal, c.IngestRejectedTotal, c.DurableFlushLatency, c.ShutdownLostReadings, c.AlertDispatchFailure)

	if deps.Pipeline != nil {
		reg.MustRegister(prom.NewGaugeFunc(prom.GaugeOpts{
			Name: "pipeline_queue_depth_total",
			Help: "Sum of every shard's queue depth.",
		}, func() float64 {
			total := 0
			for _, d := range deps.Pipeline.Depths() {
				total += d
			}
			return float64(total)
		}))
	}
	if deps.Sink != nil {
		reg.MustRegister(prom.NewGaugeFunc(prom.GaugeOpts{
			Name: "durable_wab_depth",
			Help: "Readings currently buffered in the write-ahead buffer.",
		}, func() float64 { return float64(deps.Sink.Depth()) }))
	}
	if deps.Hub != nil {
		reg.MustRegister(prom.NewGaugeFunc(prom.GaugeOpts{
			Name: "subscribers_connected",
			Help: "Currently connected WebSocket subscribers.",
		}, func() float64 { return float64(deps.Hub.ClientCount()) }))
		reg.MustRegister(prom.NewGaugeFunc(prom.GaugeOpts{
			Name: "subscriber_dropped_frames_total",
			Help: "Frames evicted under slow_drop across all subscribers.",
		}, func() float64 { return float64(deps.Hub.TotalDropped()) }))
	}
	if deps.Alerts != nil {
		reg.MustRegister(prom.NewGaugeFunc(prom.GaugeOpts{
			Name: "alerts_open",
			Help: "Currently firing alerts.",
		}, func() float64 { return float64(deps.Alerts.OpenAlertCount()) }))
		reg.MustRegister(prom.NewGaugeFunc(prom.GaugeOpts{
			Name: "alert_dead_letter_total",
			Help: "Alerts dropped after exhausting dispatch retries, as an instantaneous gauge (mirrors AlertDispatchFailure for scrape convenience).",
		}, func() float64 { return float64(deps.Alerts.DeadLetterCount()) }))
	}

	return c
}

// Handler returns the /metrics HTTP handler for this Collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveFlush records one durable sink flush's latency, meant to be
// passed as Sink.OnFlush's callback.
func (c *Collector) ObserveFlush(count int, latency time.Duration, err error) {
	c.DurableFlushLatency.Observe(latency.Seconds())
}

// IncAccepted records one accepted frame for ingest_frames_total,
// satisfying internal/ingest.Metrics.
func (c *Collector) IncAccepted(transport string) {
	c.IngestFramesTotal.WithLabelValues(transport).Inc()
}

// IncRejected records one rejected frame for ingest_rejected_total,
// satisfying internal/ingest.Metrics.
func (c *Collector) IncRejected(transport, reason string) {
	c.IngestRejectedTotal.WithLabelValues(transport, reason).Inc()
}
