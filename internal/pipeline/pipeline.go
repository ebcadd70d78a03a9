// Package pipeline implements the gateway's sharded, per-device-ordered
// processing stage (C4): a hash of device_id selects one of S shards, each
// owning a single worker that drains a bounded FIFO. A shard's worker
// never advances to the next item for a device until the durable sink has
// accepted the current one and the broadcast/alert offers have returned,
// giving per-device total order across storage, broadcast, and alert
// evaluation without per-device locks.
package pipeline

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/smartsensor/gateway/internal/model"
)

// DurableSink is the subset of internal/sink.Sink the pipeline needs. A
// shard worker blocks (retrying) while Append returns sink.ErrWouldBlock,
// since the gateway prefers blocking ingest over dropping readings.
type DurableSink interface {
	Append(ctx context.Context, readings []model.Reading) (int64, error)
}

// Broadcaster fans a Reading out to matching WebSocket subscribers. It
// must never block the calling shard worker for more than outbox
// enqueue time; internal/hub.Hub satisfies this with non-blocking or
// bounded-blocking sends and its own drop policy.
type Broadcaster interface {
	Broadcast(r model.Reading)
}

// AlertEvaluator runs rule evaluation for a Reading. Like Broadcaster, it
// must not block the shard worker for any meaningful duration.
type AlertEvaluator interface {
	Evaluate(r model.Reading)
}

// RegistryToucher updates device last-seen/health state. Satisfied by
// *internal/registry.Registry.
type RegistryToucher interface {
	Touch(deviceID string, ingestTime time.Time, quality model.Quality, cadence time.Duration) error
}

// Logger is the subset of structured logging the pipeline needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Config controls shard count, per-shard queue depth, and session
// idle eviction.
type Config struct {
	Shards      int // must be a power of two
	DeviceQueue int
	SessionIdle time.Duration
}

// WouldBlocker is implemented by sink errors the pipeline treats as
// backpressure rather than failure: errors.Is(err, sink.ErrWouldBlock)
// is checked directly by callers wiring a concrete sink, so the pipeline
// itself only needs to know "retry" vs "give up", expressed as a
// predicate to keep this package free of a direct internal/sink import.
type WouldBlocker func(err error) bool

// Pipeline is the sharded processing stage described above.
type Pipeline struct {
	shards   []*shard
	cfg      Config
	logger   Logger
	wouldBlk WouldBlocker
}

// New constructs a Pipeline wired to its downstream components.
// wouldBlock classifies a DurableSink.Append error as retryable
// backpressure (true) or a hard failure (false, logged and dropped).
func New(cfg Config, sink DurableSink, hub Broadcaster, alerts AlertEvaluator, reg RegistryToucher, wouldBlock WouldBlocker) *Pipeline {
	if cfg.Shards <= 0 {
		cfg.Shards = 64
	}
	if cfg.DeviceQueue <= 0 {
		cfg.DeviceQueue = 256
	}
	if cfg.SessionIdle <= 0 {
		cfg.SessionIdle = 30 * time.Minute
	}

	p := &Pipeline{
		cfg:      cfg,
		logger:   noopLogger{},
		wouldBlk: wouldBlock,
		shards:   make([]*shard, cfg.Shards),
	}
	for i := range p.shards {
		p.shards[i] = newShard(cfg, sink, hub, alerts, reg, wouldBlock, p.logger)
		p.shards[i].start()
	}
	return p
}

// SetLogger overrides the default no-op logger on the pipeline and all of
// its shards.
func (p *Pipeline) SetLogger(l Logger) {
	p.logger = l
	for _, sh := range p.shards {
		sh.logger = l
	}
}

func (p *Pipeline) shardFor(deviceID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(deviceID))
	idx := h.Sum32() % uint32(len(p.shards))
	return p.shards[idx]
}

// Submit enqueues a Reading onto its device's shard, blocking (subject to
// ctx) if that shard's queue is full. This is the ingest front-end's
// backpressure signal: a blocked Submit should propagate to a 503 on the
// HTTP path or a stalled MQTT acknowledgment.
func (p *Pipeline) Submit(ctx context.Context, r model.Reading) error {
	return p.shardFor(r.DeviceID).submit(ctx, r)
}

// Depths returns the current queue depth of every shard, for the
// pipeline_queue_depth metric.
func (p *Pipeline) Depths() []int {
	out := make([]int, len(p.shards))
	for i, sh := range p.shards {
		out[i] = len(sh.queue)
	}
	return out
}

// Close stops accepting new work and waits for every shard to drain its
// queue, subject to ctx's deadline. Items still queued when ctx expires
// are not processed.
func (p *Pipeline) Close(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, sh := range p.shards {
		sh := sh
		wg.Add(1)
		go func() {
			defer wg.Done()
			sh.stop(ctx)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
