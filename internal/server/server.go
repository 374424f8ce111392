// Package server exposes the valuation and CRM proxy endpoints over HTTP.
// Both proxies hold the provider credentials so they never reach the browser.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/truepricereport/leadgen/internal/config"
	"github.com/truepricereport/leadgen/internal/valuation"
	"github.com/truepricereport/leadgen/pkg/brivity"
)

// Estimator resolves an address to a valuation estimate.
type Estimator interface {
	Estimate(ctx context.Context, streetAddress, zipcode string) (*valuation.Estimate, error)
}

// Server wires configuration and clients into the proxy handlers.
type Server struct {
	cfg *config.Config
	val Estimator
	crm brivity.Client
}

// New creates a Server. val or crm may be nil when the corresponding
// credentials are absent; the handlers answer with configuration errors.
func New(cfg *config.Config, val Estimator, crm brivity.Client) *Server {
	return &Server{cfg: cfg, val: val, crm: crm}
}

// Router builds the chi router with permissive CORS on every route.
// Preflight OPTIONS requests are answered with 200 and the CORS headers
// independent of the handler logic.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/client-config", s.handleClientConfig)
	r.Post("/v1/estimate", s.handleEstimate)
	r.Options("/v1/estimate", s.handleOptions)
	r.Post("/v1/leads", s.handleLead)
	r.Options("/v1/leads", s.handleOptions)

	return r
}

// handleOptions answers OPTIONS on the proxy routes unconditionally. The cors
// middleware only intercepts requests shaped like a browser preflight; plain
// OPTIONS falls through to here and still gets 200 with the CORS headers.
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleClientConfig returns the public values the browser needs to boot the
// wizard: the maps key, the two proxy paths, and the prompt delay.
func (s *Server) handleClientConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mapsApiKey":      s.cfg.Maps.APIKey,
		"estimatePath":    "/v1/estimate",
		"leadsPath":       "/v1/leads",
		"promptDelaySecs": s.cfg.Flow.PromptDelaySecs,
	})
}
