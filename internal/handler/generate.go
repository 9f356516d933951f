// Package handler provides HTTP handlers for the API server.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/37-Inc/goose.gifts-sub000/internal/model"
	"github.com/37-Inc/goose.gifts-sub000/internal/pipeline"
	"github.com/37-Inc/goose.gifts-sub000/pkg/logger"
)

// GenerateHandler handles bundle generation requests.
type GenerateHandler struct {
	orchestrator *pipeline.Orchestrator
	logger       *logger.Logger
}

// NewGenerateHandler creates a new generate handler.
func NewGenerateHandler(orch *pipeline.Orchestrator, log *logger.Logger) *GenerateHandler {
	return &GenerateHandler{orchestrator: orch, logger: log}
}

// Generate handles POST /api/v1/bundles
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req model.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.orchestrator.Generate(r.Context(), req)
	if err != nil {
		h.logger.Warn("generation failed", zap.Error(err))
		switch {
		case errors.Is(err, pipeline.ErrInvalidRequest):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, pipeline.ErrTimeout):
			writeError(w, http.StatusGatewayTimeout, "generation took too long, please try again")
		case errors.Is(err, pipeline.ErrConceptGeneration), errors.Is(err, pipeline.ErrSelection):
			writeError(w, http.StatusBadGateway, "generation is temporarily unavailable, please try again")
		default:
			writeError(w, http.StatusInternalServerError, "generation failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, result)
}
