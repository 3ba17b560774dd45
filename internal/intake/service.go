// Package intake runs the inbound photo pipeline: validate the chat event,
// download the photo, upload it to the blob store, enqueue a detection
// request, and keep the user informed at every step.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lenshook/lenshook/internal/queue"
	"github.com/lenshook/lenshook/internal/storage"
)

// User-facing replies. Deliberately generic: internal causes go to the log.
const (
	replyGuidance     = "Please send a photo."
	replyError        = "Error processing the image."
	replyNotQueued    = "Image uploaded, but detection could not be started. Please try again later."
	replyUploadedSpec = "Image uploaded: %s"
)

// ChatGateway is the slice of the Telegram client the pipeline uses.
type ChatGateway interface {
	SendText(ctx context.Context, chatID int64, text string) error
	DownloadPhoto(ctx context.Context, fileID, dir string) (string, error)
}

// BlobStore uploads a local file and reports its key and public URL.
type BlobStore interface {
	Upload(ctx context.Context, localPath string) (storage.Object, error)
}

// Publisher enqueues detection requests.
type Publisher interface {
	Publish(ctx context.Context, req queue.DetectionRequest) error
}

// Service orchestrates one inbound event end to end. It holds no state
// between invocations; concurrent updates only share the external stores.
type Service struct {
	gateway     ChatGateway
	blobs       BlobStore
	publisher   Publisher
	downloadDir string
	logger      *slog.Logger
}

func NewService(log *slog.Logger, gateway ChatGateway, blobs BlobStore, publisher Publisher, downloadDir string) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		gateway:     gateway,
		blobs:       blobs,
		publisher:   publisher,
		downloadDir: downloadDir,
		logger:      log.With(slog.String("service", "intake")),
	}
}

// HandleUpdate processes one webhook update. Every failure is absorbed here:
// the cause is logged, the user gets a generic reply whenever a chat id is
// known, and the returned error only describes what went wrong for the
// caller's log line.
func (s *Service) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		// Malformed event: nowhere to reply to, no observable effect.
		s.logger.Warn("update without chat, dropping")
		return nil
	}
	chatID := msg.Chat.ID
	s.logger.Info("incoming message", slog.Int64("chat_id", chatID))

	if len(msg.Photo) == 0 {
		s.reply(ctx, chatID, replyGuidance)
		return nil
	}

	// The last entry is the highest-resolution variant.
	photo := msg.Photo[len(msg.Photo)-1]
	if photo.FileID == "" {
		s.logger.Error("photo message without file id", slog.Int64("chat_id", chatID))
		s.reply(ctx, chatID, replyError)
		return errors.New("photo without file id")
	}

	localPath, err := s.gateway.DownloadPhoto(ctx, photo.FileID, s.downloadDir)
	if err != nil {
		s.logger.Error("download photo failed",
			slog.Int64("chat_id", chatID),
			slog.String("file_id", photo.FileID),
			slog.Any("error", err),
		)
		s.reply(ctx, chatID, replyError)
		return fmt.Errorf("download photo: %w", err)
	}
	defer func() {
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("remove temp file failed", slog.String("path", localPath), slog.Any("error", err))
		}
	}()

	obj, err := s.blobs.Upload(ctx, localPath)
	if err != nil {
		s.logger.Error("upload failed",
			slog.Int64("chat_id", chatID),
			slog.String("path", localPath),
			slog.Any("error", err),
		)
		s.reply(ctx, chatID, replyError)
		return fmt.Errorf("upload photo: %w", err)
	}

	req := queue.DetectionRequest{
		ImgName: obj.Key,
		ChatID:  chatID,
		S3URL:   obj.URL,
	}
	if err := s.publisher.Publish(ctx, req); err != nil {
		// The blob exists but detection will not run: degraded, not fatal.
		s.logger.Error("publish detection request failed",
			slog.Int64("chat_id", chatID),
			slog.String("key", obj.Key),
			slog.Any("error", err),
		)
		s.reply(ctx, chatID, replyNotQueued)
		return fmt.Errorf("publish detection request: %w", err)
	}

	s.reply(ctx, chatID, fmt.Sprintf(replyUploadedSpec, obj.URL))
	return nil
}

// reply sends a chat message and logs a delivery failure without letting it
// escape the pipeline.
func (s *Service) reply(ctx context.Context, chatID int64, text string) {
	if err := s.gateway.SendText(ctx, chatID, text); err != nil {
		s.logger.Error("send reply failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}
