// Package telegram is the chat gateway: outbound text and photo messages,
// inbound photo downloads, and webhook registration.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

const maxMessageLength = 4096

// botAPI is the slice of tgbotapi.BotAPI the client uses. *tgbotapi.BotAPI
// satisfies it; tests substitute fakes.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
	GetWebhookInfo() (tgbotapi.WebhookInfo, error)
}

// Client wraps the Telegram Bot API for a single bot token.
type Client struct {
	api        botAPI
	token      string
	httpClient *http.Client
	sleep      func(time.Duration)
	logger     *slog.Logger
}

// NewClient authenticates the bot token against the Telegram API. The bot
// shares the client's timed HTTP client so no API call can block past the
// configured timeout.
func NewClient(log *slog.Logger, token string, timeout time.Duration) (*Client, error) {
	c := newClient(log, nil, token, timeout)
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, c.httpClient)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	c.api = bot
	return c, nil
}

func newClient(log *slog.Logger, api botAPI, token string, timeout time.Duration) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		api:        api,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		sleep:      time.Sleep,
		logger:     log.With(slog.String("component", "telegram")),
	}
}

// Token returns the bot token. Handlers compare it against the webhook path
// segment.
func (c *Client) Token() string {
	return c.token
}

// SendText sends a plain text message to a chat.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, truncateText(sanitizeText(text)))
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	return nil
}

// SendPhoto sends a local image file to a chat.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(localPath))
	if _, err := c.api.Send(photo); err != nil {
		return fmt.Errorf("send photo: %w", err)
	}
	return nil
}

// DownloadPhoto fetches the attachment behind fileID into dir under a name
// unique to this call, so concurrent downloads never collide. Returns the
// local path.
func (c *Client) DownloadPhoto(ctx context.Context, fileID, dir string) (string, error) {
	file, err := c.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("resolve file %s: %w", fileID, err)
	}
	downloadURL := file.Link(c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download attachment: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("download attachment status: %d", resp.StatusCode)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	localPath := filepath.Join(dir, localFileName(file.FilePath))
	out, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", localPath, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(localPath)
		return "", fmt.Errorf("write %s: %w", localPath, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(localPath)
		return "", err
	}
	return localPath, nil
}

// localFileName prefixes the platform file name with a fresh uuid.
func localFileName(remotePath string) string {
	base := path.Base(strings.TrimSpace(remotePath))
	if base == "." || base == "/" || base == "" {
		base = "photo.jpg"
	}
	return uuid.NewString() + "_" + base
}

// asAPIError unwraps a Telegram API error whether the library surfaced it by
// value or by pointer.
func asAPIError(err error) (tgbotapi.Error, bool) {
	var value tgbotapi.Error
	if errors.As(err, &value) {
		return value, true
	}
	var ptr *tgbotapi.Error
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	return tgbotapi.Error{}, false
}

func isTooManyRequests(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.Code == http.StatusTooManyRequests
}

// retryAfterDelay reads the server-supplied retry delay from a 429 response.
func retryAfterDelay(err error) time.Duration {
	if apiErr, ok := asAPIError(err); ok && apiErr.RetryAfter > 0 {
		return time.Duration(apiErr.RetryAfter) * time.Second
	}
	return 0
}

// sanitizeText ensures the text is valid UTF-8 for the Telegram API.
func sanitizeText(text string) string {
	if utf8.ValidString(text) {
		return text
	}
	return strings.ToValidUTF8(text, "")
}

// truncateText truncates to maxMessageLength characters, appending "..." when
// truncation occurs. The API limit counts characters, not bytes.
func truncateText(text string) string {
	if len(text) <= maxMessageLength || utf8.RuneCountInString(text) <= maxMessageLength {
		return text
	}
	const suffix = "..."
	runes := []rune(text)
	return string(runes[:maxMessageLength-len(suffix)]) + suffix
}
