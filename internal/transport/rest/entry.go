package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/heartmarshall/lexiflow-backend/internal/domain"
	"github.com/heartmarshall/lexiflow-backend/pkg/ctxutil"
)

type enrichService interface {
	EnrichEntry(ctx context.Context, userID, entryID uuid.UUID) (*domain.Entry, error)
}

// EntryHandler serves per-entry actions.
type EntryHandler struct {
	svc enrichService
	log *slog.Logger
}

// NewEntryHandler creates an EntryHandler.
func NewEntryHandler(svc enrichService, logger *slog.Logger) *EntryHandler {
	return &EntryHandler{svc: svc, log: logger.With("handler", "entry")}
}

// Enrich handles POST /entries/{id}/enrich. A pending entry is enriched
// synchronously; any other entry is returned as it is.
func (h *EntryHandler) Enrich(w http.ResponseWriter, r *http.Request) {
	userID, ok := ctxutil.UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	entryID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		handleError(h.log, w, r, domain.NewValidationError("id", "must be a UUID"))
		return
	}

	entry, err := h.svc.EnrichEntry(r.Context(), userID, entryID)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toItemResponse(*entry))
}
