package registry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/smartsensor/gateway/internal/model"
)

// shard owns a slice of the device keyspace. Writes take mu and then swap a
// fresh map into snapshot; reads go through snapshot without ever taking mu,
// so a burst of Snapshot/Resolve calls never contends with a slow writer.
type shard struct {
	mu       sync.Mutex
	devices  map[string]*deviceState
	snapshot atomic.Pointer[map[string]*deviceState]
}

// deviceState is the registry's internal record for a device: the public
// model.Device plus the rolling quality window Touch needs to recompute the
// health score. It is never mutated in place; every update builds a new
// deviceState and republishes the shard snapshot.
type deviceState struct {
	device    model.Device
	qualities []model.Quality // ring of up to model.HealthWindowSize entries, oldest first
	cadence   time.Duration
	quarantined bool
}

func newShard() *shard {
	s := &shard{devices: make(map[string]*deviceState)}
	empty := make(map[string]*deviceState)
	s.snapshot.Store(&empty)
	return s
}

// get returns the current state for id without locking.
func (s *shard) get(id string) (*deviceState, bool) {
	m := *s.snapshot.Load()
	st, ok := m[id]
	return st, ok
}

// publish replaces the device's entry under mu and republishes the
// snapshot pointer. fn may return nil to delete the entry (Evict).
func (s *shard) publish(id string, fn func(cur *deviceState) *deviceState) *deviceState {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.devices[id]
	next := fn(cur)

	fresh := make(map[string]*deviceState, len(s.devices)+1)
	for k, v := range s.devices {
		fresh[k] = v
	}
	if next == nil {
		delete(fresh, id)
		delete(s.devices, id)
	} else {
		fresh[id] = next
		s.devices[id] = next
	}
	s.snapshot.Store(&fresh)
	return next
}

func (s *shard) all() []*deviceState {
	m := *s.snapshot.Load()
	out := make([]*deviceState, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
