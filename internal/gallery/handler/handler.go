package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cardmill/internal/gallery/service"
	"cardmill/internal/platform/middleware"
	dErrors "cardmill/pkg/domain-errors"
	"cardmill/pkg/platform/httputil"
)

// Service defines the interface for gallery operations.
type Service interface {
	Save(ctx context.Context, img []byte) (string, error)
}

// Handler wires the image persistence endpoint to the gallery service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a gallery handler with its dependencies.
func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: svc,
		logger:  logger,
	}
}

// Register mounts gallery endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/persist-generated-image", h.HandlePersist)
}

type persistResponse struct {
	ImageURL string `json:"imageUrl"`
}

// HandlePersist handles POST /persist-generated-image multipart uploads.
func (h *Handler) HandlePersist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	// The +1 lets the service distinguish "exactly at the limit" from
	// "truncated at the limit" and reject the latter.
	r.Body = http.MaxBytesReader(w, r.Body, service.MaxImageBytes+1)

	if err := r.ParseMultipartForm(service.MaxImageBytes); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid multipart form"))
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "image field is required"))
		return
	}
	defer file.Close()

	img, err := io.ReadAll(file)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "read image"))
		return
	}

	url, err := h.service.Save(ctx, img)
	if err != nil {
		h.logger.ErrorContext(ctx, "image persistence failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, persistResponse{ImageURL: url})
}
