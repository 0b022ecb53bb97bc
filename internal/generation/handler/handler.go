package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cardmill/internal/platform/middleware"
	dErrors "cardmill/pkg/domain-errors"
	"cardmill/pkg/platform/httputil"
)

// Service defines the interface for generation operations.
type Service interface {
	Generate(ctx context.Context, description, customText string) ([]byte, error)
}

// Handler wires the generation endpoint to the generation service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a generation handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts generation endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/generate-image", h.HandleGenerate)
}

type generateRequest struct {
	Description string `json:"description"`
	CustomText  string `json:"customText"`
}

// HandleGenerate handles POST /generate-image requests.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	start := time.Now()

	var req generateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Description == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "description is required"))
		return
	}

	img, err := h.service.Generate(ctx, req.Description, req.CustomText)
	if err != nil {
		h.logger.ErrorContext(ctx, "image generation failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "image generation served",
		"request_id", requestID,
		"bytes", len(img),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}
