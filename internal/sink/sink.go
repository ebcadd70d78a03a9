// Package sink implements the durable sink adapter: a single Append
// contract backed by an in-memory write-ahead buffer (WAB) that batches
// writes to a pluggable Adapter with retry and exponential backoff.
//
// The WAB is explicitly not a write-ahead log: it is lost on process
// restart. Durability floor is the last acknowledged batch. A restart
// loses at most WABCapacity readings that were accepted but not yet
// flushed.
package sink

import (
	"context"
	"sync"
	"time"

	"github.com/smartsensor/gateway/internal/model"
)

// Logger is the subset of structured logging the sink needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config controls WAB sizing, batching, and retry backoff.
type Config struct {
	BatchSize       int
	BatchAge        time.Duration
	WABCapacity     int
	RetryBackoffMin time.Duration
	RetryBackoffMax time.Duration
}

// Sink batches Append calls into fixed-size or fixed-age flushes against
// an Adapter, retrying a failed flush indefinitely with exponential
// backoff while continuing to accept new readings until the WAB fills.
type Sink struct {
	adapter Adapter
	cfg     Config
	logger  Logger

	mu  sync.Mutex
	buf *ring
	hwm int64

	notify  chan struct{}
	closeCh chan struct{}
	done    chan struct{}

	onFlush func(count int, latency time.Duration, err error)
}

// New constructs a Sink and starts its background flush loop.
func New(adapter Adapter, cfg Config) *Sink {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.BatchAge <= 0 {
		cfg.BatchAge = 500 * time.Millisecond
	}
	if cfg.WABCapacity <= 0 {
		cfg.WABCapacity = 1_000_000
	}
	if cfg.RetryBackoffMin <= 0 {
		cfg.RetryBackoffMin = 100 * time.Millisecond
	}
	if cfg.RetryBackoffMax <= 0 {
		cfg.RetryBackoffMax = 30 * time.Second
	}

	s := &Sink{
		adapter: adapter,
		cfg:     cfg,
		logger:  noopLogger{},
		buf:     newRing(cfg.WABCapacity),
		notify:  make(chan struct{}, 1),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.flushLoop()
	return s
}

// SetLogger overrides the default no-op logger.
func (s *Sink) SetLogger(l Logger) { s.logger = l }

// OnFlush registers a callback invoked after every flush attempt
// (successful or not), for the durable_flush_latency_seconds and
// durable_wab_depth metrics.
func (s *Sink) OnFlush(fn func(count int, latency time.Duration, err error)) {
	s.onFlush = fn
}

// Append admits readings into the WAB. It returns the sink's monotonic
// high-water mark on success, or ErrWouldBlock if admitting the whole
// batch would exceed WABCapacity. Callers (the pipeline shard) must treat
// ErrWouldBlock as backpressure and retry rather than drop the batch.
func (s *Sink) Append(_ context.Context, readings []model.Reading) (int64, error) {
	s.mu.Lock()

	select {
	case <-s.closeCh:
		s.mu.Unlock()
		return 0, ErrClosed
	default:
	}

	if s.buf.Len()+len(readings) > s.buf.Cap() {
		s.mu.Unlock()
		return s.hwm, ErrWouldBlock
	}
	for _, r := range readings {
		s.buf.Push(r)
	}
	s.hwm += int64(len(readings))
	hwm := s.hwm
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}

	return hwm, nil
}

// Depth returns the current number of readings held in the WAB, for the
// durable_wab_depth gauge.
func (s *Sink) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}

// HighWaterMark returns the total number of readings ever admitted.
func (s *Sink) HighWaterMark() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hwm
}

func (s *Sink) flushLoop() {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.BatchAge)
	defer ticker.Stop()

	for {
		select {
		case <-s.closeCh:
			s.drain()
			return
		case <-ticker.C:
			s.flushOnce()
		case <-s.notify:
			s.mu.Lock()
			full := s.buf.Len() >= s.cfg.BatchSize
			s.mu.Unlock()
			if full {
				s.flushOnce()
			}
		}
	}
}

// drain flushes everything remaining in the WAB once, best-effort, during
// shutdown. It does not retry with backoff: Close's caller has its own
// deadline (shutdown.drain_deadline_seconds) and unflushed entries are
// reported as lost rather than blocking shutdown indefinitely.
func (s *Sink) drain() {
	for {
		s.mu.Lock()
		if s.buf.Len() == 0 {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		if !s.flushOnce() {
			return
		}
	}
}

// flushOnce peeks up to BatchSize entries and retries the write with
// exponential backoff until it succeeds or the sink is closed. It returns
// false if the sink was closed before the flush could succeed.
func (s *Sink) flushOnce() bool {
	s.mu.Lock()
	batch := s.buf.Peek(s.cfg.BatchSize)
	s.mu.Unlock()

	if len(batch) == 0 {
		return true
	}

	backoff := s.cfg.RetryBackoffMin
	for {
		start := time.Now()
		err := s.adapter.Append(context.Background(), batch)
		latency := time.Since(start)

		if s.onFlush != nil {
			s.onFlush(len(batch), latency, err)
		}

		if err == nil {
			s.mu.Lock()
			s.buf.Advance(len(batch))
			s.mu.Unlock()
			return true
		}

		s.logger.Warn("sink flush failed, retrying", "batch_size", len(batch), "backoff", backoff, "error", err)

		select {
		case <-s.closeCh:
			return false
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > s.cfg.RetryBackoffMax {
			backoff = s.cfg.RetryBackoffMax
		}
	}
}

// Close signals the flush loop to stop accepting new work, attempts one
// final best-effort drain, and returns the number of readings still
// unflushed when ctx expires (shutdown_lost_readings_total). It always
// closes the underlying Adapter.
func (s *Sink) Close(ctx context.Context) (lost int, err error) {
	s.mu.Lock()
	select {
	case <-s.closeCh:
		s.mu.Unlock()
		return 0, nil
	default:
		close(s.closeCh)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
	case <-ctx.Done():
	}

	lost = s.Depth()
	if closeErr := s.adapter.Close(); closeErr != nil {
		err = closeErr
	}
	if lost > 0 {
		s.logger.Error("sink closed with unflushed readings", "lost", lost)
	}
	return lost, err
}
