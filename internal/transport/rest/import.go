package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/heartmarshall/lexiflow-backend/internal/domain"
	"github.com/heartmarshall/lexiflow-backend/internal/service/importer"
	"github.com/heartmarshall/lexiflow-backend/pkg/ctxutil"
)

const (
	fileField = "pdf_file"
	// multipart parts beyond this many bytes spill to disk.
	formMemory = 4 << 20
	// room for the non-file form fields and multipart framing.
	formOverhead = 1 << 20
)

type importService interface {
	Import(ctx context.Context, in importer.ImportInput) (*importer.ImportResult, error)
}

// ImportHandler serves PDF uploads.
type ImportHandler struct {
	svc      importService
	maxBytes int64
	log      *slog.Logger
}

// NewImportHandler creates an ImportHandler. maxUploadBytes caps the file;
// zero leaves the body uncapped.
func NewImportHandler(svc importService, maxUploadBytes int64, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{
		svc:      svc,
		maxBytes: maxUploadBytes,
		log:      logger.With("handler", "import"),
	}
}

// ImportPDF handles POST /import_pdf.
func (h *ImportHandler) ImportPDF(w http.ResponseWriter, r *http.Request) {
	userID, ok := ctxutil.UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+formOverhead)
	}
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			handleError(h.log, w, r, err)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	in := importer.ImportInput{
		UserID: userID,
		Mode:   r.FormValue("mode"),
		Title:  r.FormValue("title"),
	}

	file, header, err := r.FormFile(fileField)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		handleError(h.log, w, r, domain.NewValidationError("file", "required"))
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer file.Close()

	in.Filename = header.Filename
	in.Content = file
	in.Size = header.Size

	res, err := h.svc.Import(r.Context(), in)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toImportResponse(res))
}
