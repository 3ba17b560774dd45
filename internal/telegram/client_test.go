package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeBotAPI struct {
	sent        []tgbotapi.Chattable
	sendErr     error
	requests    []tgbotapi.Chattable
	requestErrs []error
	file        tgbotapi.File
	fileErr     error
	webhookInfo tgbotapi.WebhookInfo
	webhookErr  error
}

func (f *fakeBotAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeBotAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	if len(f.requestErrs) > 0 {
		err := f.requestErrs[0]
		f.requestErrs = f.requestErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeBotAPI) GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error) {
	if f.fileErr != nil {
		return tgbotapi.File{}, f.fileErr
	}
	return f.file, nil
}

func (f *fakeBotAPI) GetWebhookInfo() (tgbotapi.WebhookInfo, error) {
	return f.webhookInfo, f.webhookErr
}

func newTestClient(api botAPI) *Client {
	c := newClient(nil, api, "test-token", time.Second)
	c.sleep = func(time.Duration) {}
	return c
}

func TestSendTextTruncatesLongMessages(t *testing.T) {
	t.Parallel()

	api := &fakeBotAPI{}
	c := newTestClient(api)
	long := strings.Repeat("x", maxMessageLength+100)
	if err := c.SendText(context.Background(), 42, long); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("unexpected chattable type: %T", api.sent[0])
	}
	if len(msg.Text) > maxMessageLength {
		t.Fatalf("text not truncated: %d", len(msg.Text))
	}
	if !strings.HasSuffix(msg.Text, "...") {
		t.Fatal("expected truncation suffix")
	}
}

func TestSendTextKeepsMultibyteTextUnderCharacterLimit(t *testing.T) {
	t.Parallel()

	api := &fakeBotAPI{}
	c := newTestClient(api)
	// 4096 two-byte runes exceed the limit in bytes but not in characters.
	exact := strings.Repeat("ж", maxMessageLength)
	if err := c.SendText(context.Background(), 42, exact); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msg := api.sent[0].(tgbotapi.MessageConfig)
	if msg.Text != exact {
		t.Fatalf("text at the character limit must not be truncated, got %d runes",
			utf8.RuneCountInString(msg.Text))
	}

	long := exact + "ж"
	if err := c.SendText(context.Background(), 42, long); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msg = api.sent[1].(tgbotapi.MessageConfig)
	if got := utf8.RuneCountInString(msg.Text); got > maxMessageLength {
		t.Fatalf("text not truncated to the character limit: %d runes", got)
	}
	if !strings.HasSuffix(msg.Text, "...") {
		t.Fatal("expected truncation suffix")
	}
}

func TestClientHTTPTimeoutFromConfig(t *testing.T) {
	t.Parallel()

	c := newClient(nil, &fakeBotAPI{}, "test-token", 5*time.Second)
	if c.httpClient.Timeout != 5*time.Second {
		t.Fatalf("unexpected timeout: %v", c.httpClient.Timeout)
	}
}

func TestSendTextCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	api := &fakeBotAPI{}
	if err := newTestClient(api).SendText(ctx, 42, "hi"); err == nil {
		t.Fatal("expected context error")
	}
	if len(api.sent) != 0 {
		t.Fatal("expected no send after cancellation")
	}
}

func TestLocalFileNameIsUniquePerCall(t *testing.T) {
	t.Parallel()

	a := localFileName("photos/file_1.jpg")
	b := localFileName("photos/file_1.jpg")
	if a == b {
		t.Fatalf("expected distinct names, got %q twice", a)
	}
	if !strings.HasSuffix(a, "_file_1.jpg") {
		t.Fatalf("expected original base name suffix: %q", a)
	}
}

func TestLocalFileNameFallback(t *testing.T) {
	t.Parallel()

	got := localFileName("")
	if !strings.HasSuffix(got, "_photo.jpg") {
		t.Fatalf("expected fallback name: %q", got)
	}
}

func TestSanitizeTextStripsInvalidUTF8(t *testing.T) {
	t.Parallel()

	got := sanitizeText("ok\xffbad")
	if !utf8.ValidString(got) {
		t.Fatalf("still invalid: %q", got)
	}
}

func TestRetryAfterDelay(t *testing.T) {
	t.Parallel()

	err := tgbotapi.Error{
		Code:               429,
		Message:            "Too Many Requests",
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 3},
	}
	if !isTooManyRequests(err) {
		t.Fatal("expected 429 detection")
	}
	if got := retryAfterDelay(err); got != 3*time.Second {
		t.Fatalf("unexpected delay: %v", got)
	}
	if isTooManyRequests(errors.New("boom")) {
		t.Fatal("plain errors are not rate limits")
	}
}
