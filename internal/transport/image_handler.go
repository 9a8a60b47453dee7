package transport

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"product-catalog/internal/middleware"
	"product-catalog/internal/storage"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ImageHandler serves stored product images
type ImageHandler struct {
	store  storage.ImageStore
	logger *zap.Logger
}

// NewImageHandler creates a new ImageHandler
func NewImageHandler(store storage.ImageStore, logger *zap.Logger) *ImageHandler {
	return &ImageHandler{store: store, logger: logger}
}

// RegisterRoutes registers the static image route
func (h *ImageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/uploads/{filename}", h.ServeImage)
}

// ServeImage streams an image, honoring range and conditional requests
func (h *ImageHandler) ServeImage(w http.ResponseWriter, r *http.Request) {
	// chi routes on RawPath when it is set, leaving the parameter escaped
	name := chi.URLParam(r, "filename")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(name)
		if err != nil {
			middleware.RespondWithError(w, http.StatusNotFound, "Route not found")
			return
		}
		name = unescaped
	}

	obj, err := h.store.Open(r.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrImageNotFound) || errors.Is(err, storage.ErrInvalidImageName) {
			middleware.RespondWithError(w, http.StatusNotFound, "Route not found")
			return
		}
		h.logger.Error("Failed to open image", zap.String("image", name), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to read image")
		return
	}
	defer obj.Close()

	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, name, time.Time{}, obj)
}
