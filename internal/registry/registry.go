// Package registry tracks every device the gateway has ever admitted: who
// it is, when it was last seen, and its current health score. It is the
// gateway's only source of truth for "do we know this device" and
// "is its health score improving or decaying".
//
// Reads (Resolve, Snapshot) are lock-free against a per-shard snapshot
// pointer; writes (Touch, Evict, auto-provision) take a per-shard mutex and
// then republish that pointer. This keeps the hot ingest path — one
// Resolve and one Touch per frame — off any shared lock.
package registry

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/smartsensor/gateway/internal/model"
)

// UnknownDevicePolicy controls what Resolve does when a device_id has never
// been seen before.
type UnknownDevicePolicy string

const (
	PolicyReject        UnknownDevicePolicy = "reject"
	PolicyAutoProvision UnknownDevicePolicy = "auto_provision"
	PolicyQuarantine    UnknownDevicePolicy = "quarantine"
)

// Logger is the subset of structured logging the registry needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Config controls registry shape and admission behavior.
type Config struct {
	Shards               int
	UnknownDevicePolicy  UnknownDevicePolicy
	IdleEvictionInterval time.Duration
}

// Store persists device records so the registry survives a restart. The
// Reading stream itself is never persisted here; only device identity and
// health state are durable by this path.
type Store interface {
	Upsert(ctx context.Context, d model.Device) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]model.Device, error)
}

// Registry is the sharded device directory described above.
type Registry struct {
	shards []*shard
	cfg    Config
	store  Store
	logger Logger
}

// New constructs a Registry with cfg.Shards shards (must be a power of two;
// validated by internal/config.Config.Validate before it reaches here).
func New(cfg Config, store Store) *Registry {
	r := &Registry{
		shards: make([]*shard, cfg.Shards),
		cfg:    cfg,
		store:  store,
		logger: noopLogger{},
	}
	for i := range r.shards {
		r.shards[i] = newShard()
	}
	return r
}

// SetLogger overrides the default no-op logger.
func (r *Registry) SetLogger(l Logger) {
	r.logger = l
}

// LoadFromStore populates the registry from persisted device records. Call
// once at startup before accepting traffic.
func (r *Registry) LoadFromStore(ctx context.Context) error {
	devices, err := r.store.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices from store: %w", err)
	}
	for _, d := range devices {
		d := d
		sh := r.shardFor(d.DeviceID)
		sh.publish(d.DeviceID, func(_ *deviceState) *deviceState {
			return &deviceState{device: d}
		})
	}
	r.logger.Info("registry loaded from store", "count", len(devices))
	return nil
}

func (r *Registry) shardFor(deviceID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(deviceID))
	idx := h.Sum32() % uint32(len(r.shards))
	return r.shards[idx]
}

// Resolve authenticates a device against its registered credentials
// fingerprint, applying the unknown-device policy when the device has
// never been seen. It returns ErrUnknownDevice, ErrAuthFailed, or a copy of
// the resolved Device.
func (r *Registry) Resolve(ctx context.Context, deviceID, credentialsFingerprint string) (*model.Device, error) {
	sh := r.shardFor(deviceID)

	if st, ok := sh.get(deviceID); ok {
		if st.device.CredentialsFingerprint != "" && st.device.CredentialsFingerprint != credentialsFingerprint {
			return nil, ErrAuthFailed
		}
		d := st.device
		return &d, nil
	}

	switch r.cfg.UnknownDevicePolicy {
	case PolicyReject:
		return nil, ErrUnknownDevice

	case PolicyAutoProvision, PolicyQuarantine:
		now := time.Now().UTC()
		d := model.Device{
			DeviceID:               deviceID,
			Kind:                   model.DeviceKindUnknown,
			CredentialsFingerprint: credentialsFingerprint,
			KnownSince:             now,
			LastSeenAt:             now,
			HealthScore:            100,
			Slug:                   model.GenerateSlug(deviceID),
		}
		st := sh.publish(deviceID, func(cur *deviceState) *deviceState {
			if cur != nil {
				return cur // lost the race with a concurrent auto-provision
			}
			return &deviceState{
				device:      d,
				quarantined: r.cfg.UnknownDevicePolicy == PolicyQuarantine,
			}
		})
		if r.store != nil {
			if err := r.store.Upsert(ctx, st.device); err != nil {
				r.logger.Warn("failed to persist auto-provisioned device", "device_id", deviceID, "error", err)
			}
		}
		r.logger.Info("device auto-provisioned", "device_id", deviceID, "policy", r.cfg.UnknownDevicePolicy)
		out := st.device
		return &out, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidPolicy, r.cfg.UnknownDevicePolicy)
	}
}

// Quarantined reports whether the device is currently under the
// quarantine policy's suspect-until-confirmed hold.
func (r *Registry) Quarantined(deviceID string) bool {
	st, ok := r.shardFor(deviceID).get(deviceID)
	return ok && st.quarantined
}

// Confirm clears the quarantine flag, promoting a device to normal status.
// Admin path.
func (r *Registry) Confirm(deviceID string) error {
	sh := r.shardFor(deviceID)
	var found bool
	sh.publish(deviceID, func(cur *deviceState) *deviceState {
		if cur == nil {
			return nil
		}
		found = true
		next := *cur
		next.quarantined = false
		return &next
	})
	if !found {
		return ErrNotFound
	}
	return nil
}

// Touch records that a frame with the given quality arrived at ingestTime,
// updates last-seen, and recomputes the health score. cadence is the
// device's declared reporting interval (zero if unknown).
func (r *Registry) Touch(deviceID string, ingestTime time.Time, quality model.Quality, cadence time.Duration) error {
	sh := r.shardFor(deviceID)
	var found bool
	sh.publish(deviceID, func(cur *deviceState) *deviceState {
		if cur == nil {
			return nil
		}
		found = true
		next := *cur
		next.qualities = appendBounded(cur.qualities, quality, model.HealthWindowSize)
		next.cadence = cadence
		next.device.LastSeenAt = ingestTime
		next.device.HealthScore = model.ComputeHealthScore(model.HealthInput{
			RecentQualities: next.qualities,
			LastFrameAt:     ingestTime,
			Now:             ingestTime,
			ExpectedCadence: cadence,
		})
		return &next
	})
	if !found {
		return ErrNotFound
	}
	return nil
}

func appendBounded(qualities []model.Quality, q model.Quality, max int) []model.Quality {
	out := append(append([]model.Quality{}, qualities...), q)
	if len(out) > max {
		out = out[len(out)-max:]
	}
	return out
}

// Snapshot returns an immutable copy of the device's current state. It
// never blocks on a writer.
func (r *Registry) Snapshot(deviceID string) (*model.Device, error) {
	st, ok := r.shardFor(deviceID).get(deviceID)
	if !ok {
		return nil, ErrNotFound
	}
	d := st.device
	return d.DeepCopy(), nil
}

// Evict removes a device from the registry and its backing store. Admin
// path.
func (r *Registry) Evict(ctx context.Context, deviceID string) error {
	sh := r.shardFor(deviceID)
	var found bool
	sh.publish(deviceID, func(cur *deviceState) *deviceState {
		if cur == nil {
			return nil
		}
		found = true
		return nil
	})
	if !found {
		return ErrNotFound
	}
	if r.store != nil {
		if err := r.store.Delete(ctx, deviceID); err != nil {
			return fmt.Errorf("deleting device from store: %w", err)
		}
	}
	r.logger.Info("device evicted", "device_id", deviceID)
	return nil
}

// List returns a snapshot of every device across all shards, for the admin
// API. Order is unspecified.
func (r *Registry) List() []model.Device {
	var out []model.Device
	for _, sh := range r.shards {
		for _, st := range sh.all() {
			out = append(out, *st.device.DeepCopy())
		}
	}
	return out
}

// Count returns the total number of registered devices across all shards.
func (r *Registry) Count() int {
	n := 0
	for _, sh := range r.shards {
		n += len(sh.all())
	}
	return n
}

// EvictIdle removes devices whose last-seen time is older than maxAge, for
// the periodic idle-eviction sweep.
func (r *Registry) EvictIdle(ctx context.Context, now time.Time, maxAge time.Duration) int {
	evicted := 0
	for _, d := range r.List() {
		if now.Sub(d.LastSeenAt) > maxAge {
			if err := r.Evict(ctx, d.DeviceID); err == nil {
				evicted++
			}
		}
	}
	return evicted
}
