// Package httpserver exposes Memory Kernel operations as an HTTP/JSON
// API (§6), mirroring the same operation surface the MCP stdio tools
// expose. Grounded on the teacher's handler-struct pattern in
// go/controller/internal/httpserver/handlers (a *Base-embedding handler
// per resource, JSON in/out, a single error-response path) — simplified
// here to the one apperr.HTTPStatus mapping this module already
// centralizes, instead of the teacher's bespoke k8s-flavored errors
// package.
package httpserver

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kagent-dev/memoryanchor/internal/checklist"
	"github.com/kagent-dev/memoryanchor/internal/httpserver/handlers"
	"github.com/kagent-dev/memoryanchor/internal/kernel"
)

// Config bundles a Server's collaborators.
type Config struct {
	Kernel    *kernel.Kernel
	Checklist *checklist.Store
	Logger    *zap.Logger
	APIKey    string // empty disables auth
}

// New builds the gorilla/mux router serving spec.md §6's HTTP surface.
func New(cfg Config) *http.Server {
	r := mux.NewRouter()
	r.Use(handlers.LoggingMiddleware(cfg.Logger))
	if cfg.APIKey != "" {
		r.Use(handlers.AuthMiddleware(cfg.APIKey))
	}

	cl := cfg.Checklist
	if cl == nil {
		cl = checklist.New()
	}
	h := handlers.New(cfg.Kernel, cl, cfg.Logger)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/memories", h.AddMemory).Methods(http.MethodPost)
	api.HandleFunc("/memories/search", h.SearchMemory).Methods(http.MethodPost)
	api.HandleFunc("/memories/{id}", h.DeleteMemory).Methods(http.MethodDelete)
	api.HandleFunc("/memories/{id}/status", h.UpdateMemoryStatus).Methods(http.MethodPatch)
	api.HandleFunc("/constitution", h.GetConstitution).Methods(http.MethodGet)
	api.HandleFunc("/events", h.LogEvent).Methods(http.MethodPost)
	api.HandleFunc("/events/search", h.SearchEvents).Methods(http.MethodPost)
	api.HandleFunc("/events/{id}/promote", h.PromoteEventToFact).Methods(http.MethodPost)
	api.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet)
	api.HandleFunc("/operations/search", h.SearchOperations).Methods(http.MethodPost)
	api.HandleFunc("/memories/refine", h.RefineMemory).Methods(http.MethodPost)

	api.HandleFunc("/checklist/items", h.CreateChecklistItem).Methods(http.MethodPost)
	api.HandleFunc("/checklist/briefing", h.GetChecklistBriefing).Methods(http.MethodGet)
	api.HandleFunc("/checklist/sync", h.SyncPlanToChecklist).Methods(http.MethodPost)

	api.HandleFunc("/identity-changes", h.ProposeChange).Methods(http.MethodPost)
	api.HandleFunc("/identity-changes/{id}/approve", h.ApproveChange).Methods(http.MethodPost)
	api.HandleFunc("/identity-changes/{id}/reject", h.RejectChange).Methods(http.MethodPost)

	api.HandleFunc("/pending/stats", h.GetPendingStats).Methods(http.MethodGet)
	api.HandleFunc("/pending/{id}/approve", h.ApprovePending).Methods(http.MethodPost)
	api.HandleFunc("/pending/{id}/reject", h.RejectPending).Methods(http.MethodPost)

	r.HandleFunc("/healthz", handlers.Healthz).Methods(http.MethodGet)

	return &http.Server{
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
