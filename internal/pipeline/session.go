package pipeline

import "time"

// session is a shard's per-device state: last-assigned sequence number and
// the time of the most recent frame, used for idle eviction. A session is
// only ever touched by the single worker goroutine that owns its shard, so
// it needs no locking.
type session struct {
	lastSeq     uint64
	lastFrameAt time.Time
}

// nextSeq assigns the next per-device sequence number.
func (s *session) nextSeq() uint64 {
	s.lastSeq++
	return s.lastSeq
}
