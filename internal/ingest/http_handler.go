package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/smartsensor/gateway/internal/authn"
	"github.com/smartsensor/gateway/internal/ingest/codec"
	"github.com/smartsensor/gateway/internal/registry"
)

// HandlerConfig configures the HTTP ingest endpoint.
type HandlerConfig struct {
	MaxBatchSize     int
	PerDeviceRateMin int
	PerIPRateMin     int
	SubmitTimeout    time.Duration
}

func (c HandlerConfig) withDefaults() HandlerConfig {
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 100
	}
	if c.PerDeviceRateMin <= 0 {
		c.PerDeviceRateMin = 120
	}
	if c.PerIPRateMin <= 0 {
		c.PerIPRateMin = 600
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = 250 * time.Millisecond
	}
	return c
}

// batchResult is the response body for a POST /v1/ingest call.
type batchResult struct {
	BatchID  string   `json:"batch_id"`
	Accepted int      `json:"accepted"`
	Rejected int      `json:"rejected"`
	Errors   []string `json:"errors,omitempty"`
}

// Handler serves the HTTP ingest front-end: batched frame submission
// gated by bearer-token scope, device-registry resolution, and
// per-device/per-source-IP rate limits, grounded on the teacher's
// internal/api router and middleware shape.
type Handler struct {
	registry Resolver
	pipeline Submitter
	logger   Logger
	metrics  Metrics

	cfg     HandlerConfig
	limiter *rateLimiter
}

// NewHandler builds the HTTP ingest handler.
func NewHandler(registry Resolver, pipeline Submitter, cfg HandlerConfig) *Handler {
	return &Handler{
		registry: registry,
		pipeline: pipeline,
		logger:   noopLogger{},
		metrics:  noopMetrics{},
		cfg:      cfg.withDefaults(),
		limiter:  newRateLimiter(),
	}
}

func (h *Handler) SetLogger(l Logger) {
	if l != nil {
		h.logger = l
	}
}

// SetMetrics wires the ingest_frames_total/ingest_rejected_total
// counters; unset, the handler reports nothing.
func (h *Handler) SetMetrics(c Metrics) {
	if c != nil {
		h.metrics = c
	}
}

// Routes mounts the single POST / route, meant to be mounted at
// /v1/ingest by the caller's router under authn.RequireBearer.
func (h *Handler) Routes(secret string) chi.Router {
	r := chi.NewRouter()
	r.With(authn.RequireBearer(secret)).Post("/", h.handleIngest)
	return r
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	claims, ok := authn.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	token := bearerTokenFromHeader(r)
	sourceIP := sourceIPOf(r)

	if allowed, retryAfter := h.limiter.allow("ip:"+sourceIP, h.cfg.PerIPRateMin, time.Minute, time.Now()); !allowed {
		h.metrics.IncRejected("http", "rate_limited")
		h.tooManyRequests(w, retryAfter)
		return
	}

	var frames []json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&frames); err != nil {
		h.metrics.IncRejected("http", "decode_error")
		http.Error(w, "malformed batch", http.StatusBadRequest)
		return
	}
	if len(frames) > h.cfg.MaxBatchSize {
		h.metrics.IncRejected("http", "batch_too_large")
		http.Error(w, "batch too large", http.StatusRequestEntityTooLarge)
		return
	}

	result := batchResult{BatchID: uuid.NewString()}

	for _, raw := range frames {
		if err := h.submitFrame(r.Context(), raw, claims, token); err != nil {
			result.Rejected++
			result.Errors = append(result.Errors, err.Error())
			h.metrics.IncRejected("http", rejectReason(err))
			if errors.Is(err, ErrBackpressure) {
				h.logger.Warn("ingest: http submit hit backpressure", "batch_id", result.BatchID)
				h.writeBackpressure(w, result)
				return
			}
			continue
		}
		h.metrics.IncAccepted("http")
		result.Accepted++
	}

	writeJSON(w, http.StatusAccepted, result)
}

// submitFrame decodes, scope-checks, device-authenticates, and submits
// one batch element. It returns ErrBackpressure verbatim so the caller
// can abort the batch early and answer 503 rather than keep accepting
// frames the pipeline has no room for.
func (h *Handler) submitFrame(ctx context.Context, raw json.RawMessage, claims *authn.Claims, token string) error {
	decoded, err := codec.Decode(raw, time.Now())
	if err != nil {
		return err
	}

	if !deviceInScope(claims, decoded.DeviceID) {
		return ErrForbiddenDevice
	}

	if allowed, _ := h.limiter.allow("device:"+decoded.DeviceID, h.cfg.PerDeviceRateMin, time.Minute, time.Now()); !allowed {
		return ErrRateLimited
	}

	if _, err := h.registry.Resolve(ctx, decoded.DeviceID, fingerprint(token)); err != nil {
		return err
	}

	submitCtx, cancel := context.WithTimeout(ctx, h.cfg.SubmitTimeout)
	defer cancel()

	for _, reading := range decoded.Readings {
		if err := h.pipeline.Submit(submitCtx, reading); err != nil {
			return ErrBackpressure
		}
	}
	return nil
}

// rejectReason classifies a submitFrame error for the
// ingest_rejected_total{reason} label.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrBackpressure):
		return "backpressure"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrForbiddenDevice):
		return "unauthorized"
	case errors.Is(err, registry.ErrUnknownDevice), errors.Is(err, registry.ErrAuthFailed):
		return "unauthorized"
	default:
		return "decode_error"
	}
}

func (h *Handler) tooManyRequests(w http.ResponseWriter, retryAfter time.Duration) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(retryAfter)))
	http.Error(w, "rate limited", http.StatusTooManyRequests)
}

func (h *Handler) writeBackpressure(w http.ResponseWriter, result batchResult) {
	w.Header().Set("Retry-After", "1")
	writeJSON(w, http.StatusServiceUnavailable, result)
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// deviceInScope reports whether claims authorizes posting readings for
// deviceID, mirroring the hub's authorizeFilter scoping: admins pass
// every device through, and a non-admin with an empty AllowedDevices
// list is scoped to nothing, the same least-privilege default
// authorizeFilter applies to an unscoped subscribe filter.
func deviceInScope(claims *authn.Claims, deviceID string) bool {
	if claims.IsAdmin {
		return true
	}
	for _, id := range claims.AllowedDevices {
		if id == deviceID {
			return true
		}
	}
	return false
}

func bearerTokenFromHeader(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}

func sourceIPOf(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
