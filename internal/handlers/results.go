package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/lenshook/lenshook/internal/results"
)

// Deliverer relays a finished detection back to its chat.
type Deliverer interface {
	HandleCompletion(ctx context.Context, predictionID string) error
}

// ResultsHandler receives completion callbacks from the detection side.
type ResultsHandler struct {
	deliverer Deliverer
	logger    *slog.Logger
}

func NewResultsHandler(log *slog.Logger, deliverer Deliverer) *ResultsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ResultsHandler{
		deliverer: deliverer,
		logger:    log.With(slog.String("handler", "results")),
	}
}

func (h *ResultsHandler) Register(e *echo.Echo) {
	e.POST("/results", h.Complete)
}

type completionRequest struct {
	PredictionID string `json:"predictionId"`
}

// Complete validates the callback and delivers the result. Not-found is a
// distinct outcome, missing chat id a data-integrity error; anything
// unexpected becomes a generic 500 and never propagates.
func (h *ResultsHandler) Complete(c echo.Context) error {
	var req completionRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Error("decode completion body failed", slog.Any("error", err))
		return c.String(http.StatusBadRequest, "Prediction ID missing")
	}
	predictionID := strings.TrimSpace(req.PredictionID)
	if predictionID == "" {
		h.logger.Error("completion callback without prediction id")
		return c.String(http.StatusBadRequest, "Prediction ID missing")
	}

	err := h.deliverer.HandleCompletion(c.Request().Context(), predictionID)
	switch {
	case err == nil:
		return c.String(http.StatusOK, "Results sent to Telegram")
	case errors.Is(err, results.ErrNotFound):
		h.logger.Warn("no prediction found", slog.String("prediction_id", predictionID))
		return c.String(http.StatusNotFound, "No predictions found")
	case errors.Is(err, results.ErrMissingChatID):
		return c.String(http.StatusInternalServerError, "Chat ID missing in prediction")
	default:
		h.logger.Error("completion failed", slog.String("prediction_id", predictionID), slog.Any("error", err))
		return c.String(http.StatusInternalServerError, "Error")
	}
}
