package handlers

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"
)

// IntakeService runs the inbound photo pipeline.
type IntakeService interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update) error
}

// WebhookHandler receives Telegram webhook posts. The bot token rides in the
// path so only Telegram (which was given the registration URL) can reach it.
type WebhookHandler struct {
	intake IntakeService
	token  string
	logger *slog.Logger
}

func NewWebhookHandler(log *slog.Logger, intake IntakeService, token string) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		intake: intake,
		token:  token,
		logger: log.With(slog.String("handler", "webhook")),
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhook/:token", h.Receive)
}

// Receive handles one webhook update. Pipeline failures are absorbed (the
// user was already notified) so Telegram does not redeliver the update.
func (h *WebhookHandler) Receive(c echo.Context) error {
	token := c.Param("token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
		return echo.NewHTTPError(http.StatusNotFound)
	}

	var update tgbotapi.Update
	if err := c.Bind(&update); err != nil {
		h.logger.Error("decode webhook body failed", slog.Any("error", err))
		return c.String(http.StatusInternalServerError, "Error")
	}

	if err := h.intake.HandleUpdate(c.Request().Context(), update); err != nil {
		h.logger.Error("intake failed", slog.Any("error", err))
	}
	return c.String(http.StatusOK, "Ok")
}
