package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/climatehealth/healthrisk/internal/models"
	"github.com/climatehealth/healthrisk/internal/services"
	"github.com/climatehealth/healthrisk/pkg/logger"
)

// PredictionHandler exposes the prediction service over HTTP.
type PredictionHandler struct {
	service *services.PredictionService
}

func NewPredictionHandler(service *services.PredictionService) *PredictionHandler {
	return &PredictionHandler{service: service}
}

// Predict handles POST /predict.
func (h *PredictionHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var input models.PredictionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	output, err := h.service.Predict(r.Context(), &input)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, output)
}

// PredictBatch handles POST /predict/batch.
func (h *PredictionHandler) PredictBatch(w http.ResponseWriter, r *http.Request) {
	var batch models.BatchPredictionInput
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	output, err := h.service.PredictBatch(r.Context(), &batch)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, output)
}

// Health handles GET /health.
func (h *PredictionHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := h.service.Health(r.Context())
	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// ModelInfo handles GET /model/info.
func (h *PredictionHandler) ModelInfo(w http.ResponseWriter, r *http.Request) {
	if !h.service.Ready() {
		http.Error(w, "model is not loaded", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, h.service.ModelInfo())
}

// writeServiceError maps service errors to HTTP status codes without leaking
// internals for unexpected failures.
func (h *PredictionHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrBatchTooLarge),
		errors.Is(err, services.ErrEmptyBatch):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrModelNotReady):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		logger.WithComponent("prediction_handler").Error().Err(err).Msg("Prediction failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.WithComponent("prediction_handler").Error().Err(err).Msg("Failed to encode response")
	}
}
