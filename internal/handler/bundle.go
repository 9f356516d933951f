package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/37-Inc/goose.gifts-sub000/internal/analytics"
	"github.com/37-Inc/goose.gifts-sub000/internal/store"
	"github.com/37-Inc/goose.gifts-sub000/pkg/logger"
)

// BundleHandler serves persisted bundles.
type BundleHandler struct {
	store    *store.Store
	recorder *analytics.Recorder
	logger   *logger.Logger
}

// NewBundleHandler creates a new bundle handler. store may be nil when no
// datastore is configured.
func NewBundleHandler(st *store.Store, rec *analytics.Recorder, log *logger.Logger) *BundleHandler {
	return &BundleHandler{store: st, recorder: rec, logger: log}
}

// Get handles GET /api/v1/bundles/{slug}
func (h *BundleHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotFound, "bundle storage is not configured")
		return
	}

	slug := chi.URLParam(r, "slug")
	if slug == "" {
		writeError(w, http.StatusBadRequest, "missing slug")
		return
	}

	bundle, err := h.store.Fetch(r.Context(), slug)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "bundle not found")
		return
	}
	if err != nil {
		h.logger.Error("bundle fetch failed", zap.String("slug", slug), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch bundle")
		return
	}

	if h.recorder != nil {
		h.recorder.Record(analytics.Event{
			Type: analytics.EventBundleViewed,
			Slug: slug,
		})
	}

	writeJSON(w, http.StatusOK, bundle)
}
