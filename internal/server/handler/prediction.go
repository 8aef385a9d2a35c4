package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethervenue/venue/internal/domain"
)

// PredictionRecorder is the slice of the registry the prediction handler
// needs. Declared locally so the handler package does not depend on the
// concrete registry.
type PredictionRecorder interface {
	RecordPrediction(ctx context.Context, p domain.Prediction) error
}

// PredictionHandler ingests agent predictions over HTTP.
type PredictionHandler struct {
	registry PredictionRecorder
	logger   *slog.Logger
}

// NewPredictionHandler creates a PredictionHandler.
func NewPredictionHandler(registry PredictionRecorder, logger *slog.Logger) *PredictionHandler {
	return &PredictionHandler{
		registry: registry,
		logger:   logger,
	}
}

type submitPredictionRequest struct {
	AgentID     string  `json:"agent_id"`
	Probability float64 `json:"probability"`
	Stake       float64 `json:"stake"`
}

type submitPredictionResponse struct {
	MarketID    string    `json:"market_id"`
	AgentID     string    `json:"agent_id"`
	Probability float64   `json:"probability"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// SubmitPrediction records one agent's forecast for a market. Resubmitting
// replaces the previous forecast without adding stake again.
// POST /api/markets/{id}/predictions
func (h *PredictionHandler) SubmitPrediction(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	var req submitPredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "missing agent_id")
		return
	}
	if req.Probability < 0 || req.Probability > 1 {
		writeError(w, http.StatusBadRequest, "probability must be in [0,1]")
		return
	}
	if req.Stake < 0 {
		writeError(w, http.StatusBadRequest, "stake must be non-negative")
		return
	}

	p := domain.Prediction{
		MarketID:    marketID,
		AgentID:     req.AgentID,
		Probability: req.Probability,
		Stake:       req.Stake,
		SubmittedAt: time.Now().UTC(),
	}

	if err := h.registry.RecordPrediction(r.Context(), p); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "market not found")
		case errors.Is(err, domain.ErrMarketClosed):
			writeError(w, http.StatusConflict, "market no longer accepts predictions")
		default:
			h.logger.ErrorContext(r.Context(), "handler: record prediction failed",
				slog.String("market_id", marketID),
				slog.String("agent_id", req.AgentID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to record prediction")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, submitPredictionResponse{
		MarketID:    p.MarketID,
		AgentID:     p.AgentID,
		Probability: p.Probability,
		SubmittedAt: p.SubmittedAt,
	})
}
