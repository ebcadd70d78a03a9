// Package api serves the gateway's admin HTTP surface and mounts the
// ingest, stream, health, and metrics handlers built by other packages
// into a single router, following the teacher's internal/api Server/
// buildRouter split.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smartsensor/gateway/internal/alert"
	"github.com/smartsensor/gateway/internal/model"
)

// Registry is the narrow Device Registry surface the admin routes need.
// Satisfied by *internal/registry.Registry.
type Registry interface {
	List() []model.Device
	Evict(ctx context.Context, deviceID string) error
}

// AlertEngine is the narrow Alert Engine surface the admin routes need.
// Satisfied by *internal/alert.Engine.
type AlertEngine interface {
	OpenAlerts() []model.Alert
}

// Server holds the dependencies the admin routes read from.
type Server struct {
	registry   Registry
	alerts     AlertEngine
	alertRules []alert.Rule
}

// NewServer builds the admin API server.
func NewServer(registry Registry, alerts AlertEngine, alertRules []alert.Rule) *Server {
	return &Server{registry: registry, alerts: alerts, alertRules: alertRules}
}

// Routes mounts the admin endpoints. Callers mount this under
// authn.RequireBearer and authn.RequireAdmin.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/devices", s.handleListDevices)
	r.Post("/devices/{id}/evict", s.handleEvictDevice)
	r.Get("/alerts", s.handleListAlerts)
	r.Get("/alerts/rules", s.handleListRules)
	return r
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"devices": s.registry.List()})
}

func (s *Server) handleEvictDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.registry.Evict(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"alerts": s.alerts.OpenAlerts()})
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"rules": s.alertRules})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
