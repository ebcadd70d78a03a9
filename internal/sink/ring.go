package sink

import "github.com/smartsensor/gateway/internal/model"

// ring is a fixed-capacity circular buffer of readings. It supports
// peeking a batch without removing it, so a failed flush can be retried
// against the same entries, and advancing past a batch only once it has
// been durably written.
type ring struct {
	items []model.Reading
	head  int
	count int
}

func newRing(capacity int) *ring {
	return &ring{items: make([]model.Reading, capacity)}
}

func (r *ring) Cap() int { return len(r.items) }
func (r *ring) Len() int { return r.count }

// Push appends a single reading, returning false if the ring is full.
func (r *ring) Push(v model.Reading) bool {
	if r.count == len(r.items) {
		return false
	}
	idx := (r.head + r.count) % len(r.items)
	r.items[idx] = v
	r.count++
	return true
}

// Peek returns up to n of the oldest entries without removing them.
func (r *ring) Peek(n int) []model.Reading {
	if n > r.count {
		n = r.count
	}
	out := make([]model.Reading, n)
	for i := 0; i < n; i++ {
		out[i] = r.items[(r.head+i)%len(r.items)]
	}
	return out
}

// Advance discards the oldest n entries after they have been durably
// written.
func (r *ring) Advance(n int) {
	if n > r.count {
		n = r.count
	}
	r.head = (r.head + n) % len(r.items)
	r.count -= n
}
