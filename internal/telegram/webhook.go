package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func newWebhookConfig(url string) (tgbotapi.Chattable, error) {
	webhook, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return nil, err
	}
	return webhook, nil
}

const (
	webhookMaxAttempts   = 5
	webhookRetryInterval = 2 * time.Second
)

// WebhookURL derives the registration URL for a public base URL; the token
// path segment authenticates inbound posts.
func WebhookURL(appURL, token string) string {
	return strings.TrimSuffix(strings.TrimSpace(appURL), "/") + "/webhook/" + token
}

// EnsureWebhook registers the bot webhook at appURL unless it is already
// registered there. Registration retries a bounded number of times: transport
// errors after a fixed delay, 429 responses after the retry-after delay
// Telegram supplies. Any other API error stops immediately.
func (c *Client) EnsureWebhook(ctx context.Context, appURL string) error {
	expected := WebhookURL(appURL, c.token)

	info, err := c.api.GetWebhookInfo()
	if err != nil {
		c.logger.Warn("check webhook status failed", slog.Any("error", err))
	} else if info.URL == expected {
		c.logger.Info("webhook already registered", slog.String("url", expected))
		return nil
	}

	webhook, err := newWebhookConfig(expected)
	if err != nil {
		return fmt.Errorf("build webhook config: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= webhookMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := c.api.Request(webhook)
		if err == nil {
			c.logger.Info("webhook registered", slog.String("url", expected))
			return nil
		}
		lastErr = err
		apiErr, isAPI := asAPIError(err)
		if isAPI && apiErr.Code != http.StatusTooManyRequests {
			return fmt.Errorf("set webhook: %w", err)
		}
		delay := webhookRetryInterval
		if isAPI {
			if d := retryAfterDelay(err); d > 0 {
				delay = d
			}
			c.logger.Warn("webhook registration rate limited",
				slog.Int("attempt", attempt),
				slog.Duration("retry_after", delay),
			)
		} else {
			c.logger.Warn("webhook registration failed",
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
		}
		c.sleep(delay)
	}
	return fmt.Errorf("set webhook: %w", lastErr)
}
