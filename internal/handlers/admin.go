package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/huanth/bi-a-manager/internal/services"
)

type exportResponse struct {
	Bucket    string `json:"bucket"`
	Object    string `json:"object"`
	Latest    string `json:"latest,omitempty"`
	Size      int    `json:"size"`
	CreatedAt string `json:"createdAt"`
}

// AdminHandlers exposes owner-only maintenance endpoints.
type AdminHandlers struct {
	exports services.ExportService
}

// NewAdminHandlers constructs a new AdminHandlers instance.
func NewAdminHandlers(exports services.ExportService) *AdminHandlers {
	return &AdminHandlers{exports: exports}
}

// Routes registers the /admin endpoints.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/export", h.export)
}

func (h *AdminHandlers) export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.exports == nil {
		serviceUnavailable(w, r, "export")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	result, err := h.exports.Export(ctx, actor)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, exportResponse{
		Bucket:    result.Bucket,
		Object:    result.Object,
		Latest:    result.Latest,
		Size:      result.Size,
		CreatedAt: result.CreatedAt.UTC().Format(time.RFC3339),
	})
}
