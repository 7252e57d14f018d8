package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heartmarshall/lexiflow-backend/internal/transport/middleware"
)

// RouterConfig holds everything NewRouter mounts.
type RouterConfig struct {
	Health  *HealthHandler
	Import  *ImportHandler
	Entries *EntryHandler

	// Global runs outermost, in order, on every route.
	Global []middleware.Middleware
	// ImportLimit guards the upload route; nil disables it.
	ImportLimit middleware.Middleware
}

// NewRouter builds the HTTP route table.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/live", cfg.Health.Live)
	r.Get("/ready", cfg.Health.Ready)
	r.Get("/health", cfg.Health.Health)

	r.Group(func(r chi.Router) {
		if cfg.ImportLimit != nil {
			r.Use(cfg.ImportLimit)
		}
		r.Post("/import_pdf", cfg.Import.ImportPDF)
	})
	r.Post("/entries/{id}/enrich", cfg.Entries.Enrich)

	return middleware.Chain(cfg.Global...)(r)
}
