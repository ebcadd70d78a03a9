// Package hub fans out ingested Readings to WebSocket subscribers,
// bounding each subscriber to its authorized device scope and applying a
// configurable drop policy when a subscriber falls behind.
package hub

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smartsensor/gateway/internal/ingest/codec"
	"github.com/smartsensor/gateway/internal/model"
)

// Logger is the narrow logging surface the hub depends on, satisfied by
// *slog.Logger and the package's noop default.
type Logger interface {
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}
func (noopLogger) Info(string, ...any) {}

// Config controls the subscriber hub's upgrade handler and per-client
// outbox behavior.
type Config struct {
	OutboxCapacity    int
	DropPolicy        model.DropPolicy
	HeartbeatInterval time.Duration
	PongTimeout       time.Duration
}

// Hub tracks connected WebSocket clients and fans out Readings to the
// ones whose Filter matches.
type Hub struct {
	cfg      Config
	auth     Authenticator
	logger   Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// New builds a Hub. auth resolves the bearer token presented at
// handshake time into a Principal; pass a permissive Authenticator in
// tests that don't exercise the auth-scope path.
func New(cfg Config, auth Authenticator) *Hub {
	if cfg.OutboxCapacity <= 0 {
		cfg.OutboxCapacity = 1024
	}
	if cfg.DropPolicy == "" {
		cfg.DropPolicy = model.DropPolicySlowDrop
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 15 * time.Second
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 30 * time.Second
	}
	return &Hub{
		cfg:     cfg,
		auth:    auth,
		logger:  noopLogger{},
		clients: make(map[*Client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *Hub) SetLogger(l Logger) {
	if l != nil {
		h.logger = l
	}
}

// ServeHTTP upgrades the connection, authenticates the bearer token,
// authorizes the initial filter, and spawns the client's read/write
// pumps. It never blocks past the handshake.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	principal, err := h.auth.Authenticate(token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	requested := parseFilterQuery(r)
	filter, err := authorizeFilter(principal, requested)
	if err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(h, conn, principal, filter, h.cfg.DropPolicy, h.cfg.OutboxCapacity)
	h.add(client)

	go client.writePump(h.cfg.HeartbeatInterval, h.cfg.PongTimeout)
	go client.readPump(h.cfg.PongTimeout)
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// ClientCount reports the number of connected subscribers, for the
// subscribers_connected metric.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TotalDropped sums Dropped() across every connected client, for the
// subscriber_dropped_frames_total metric.
func (h *Hub) TotalDropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var total uint64
	for c := range h.clients {
		total += c.Dropped()
	}
	return total
}

// Shutdown sends a close frame to every connected client, for use by
// the supervisor during ordered shutdown.
func (h *Hub) Shutdown() {
	h.closeAll()
}

// Broadcast encodes r once and offers it to every connected client whose
// filter matches. It implements pipeline.Broadcaster. Broadcast never
// blocks on a slow subscriber: each client's outbox send is
// non-blocking, with backpressure handled per-client per drop_policy.
func (h *Hub) Broadcast(r model.Reading) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	frame, err := codec.EncodeSubscriberFrame(r)
	if err != nil {
		h.logger.Warn("failed to encode subscriber frame", "error", err)
		return
	}

	for _, c := range clients {
		if c.matches(r) {
			c.offer(frame)
		}
	}
}

// closeAll sends a close frame to every connected client, used during
// supervised shutdown so subscribers see a clean disconnect rather than
// a dropped TCP connection.
func (h *Hub) closeAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.closeWithReason(errShuttingDown)
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return r.URL.Query().Get("token")
}

func parseFilterQuery(r *http.Request) model.Filter {
	q := r.URL.Query()
	devices := q["device"]
	if len(devices) == 0 {
		devices = []string{"*"}
	}
	var kinds []model.SensorKind
	for _, k := range q["kind"] {
		kinds = append(kinds, model.SensorKind(k))
	}
	return model.Filter{Devices: devices, Kinds: kinds}
}
