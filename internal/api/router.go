package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smartsensor/gateway/internal/authn"
)

// RouterConfig collects every handler the top-level router mounts.
// Each field is a complete http.Handler built by its owning package;
// this package only wires routes together, matching the teacher's
// buildRouter which composes handlers rather than implementing them.
type RouterConfig struct {
	JWTSecret string

	Ingest  http.Handler // POST /v1/ingest, internal/ingest.Handler.Routes
	Stream  http.Handler // GET /v1/stream, internal/hub.Hub.ServeHTTP
	Admin   *Server      // /v1/admin/*, requires an admin principal
	Health  http.HandlerFunc
	Ready   http.HandlerFunc
	Metrics http.Handler
}

// BuildRouter assembles the gateway's single HTTP router.
func BuildRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", cfg.Health)
	r.Get("/readyz", cfg.Ready)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	if cfg.Ingest != nil {
		r.Mount("/v1/ingest", cfg.Ingest)
	}
	if cfg.Stream != nil {
		r.Get("/v1/stream", func(w http.ResponseWriter, req *http.Request) {
			cfg.Stream.ServeHTTP(w, req)
		})
	}
	if cfg.Admin != nil {
		r.Route("/v1/admin", func(r chi.Router) {
			r.Use(authn.RequireBearer(cfg.JWTSecret))
			r.Use(authn.RequireAdmin)
			r.Mount("/", cfg.Admin.Routes())
		})
	}

	return r
}
