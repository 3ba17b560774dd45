// Package delivery relays finished detection results back to the chat that
// requested them.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/lenshook/lenshook/internal/results"
)

const replyImageFailed = "Error sending predicted image."

// ResultStore looks up detection results by prediction id.
type ResultStore interface {
	Get(ctx context.Context, predictionID string) (results.DetectionResult, error)
}

// BlobStore fetches the annotated output image.
type BlobStore interface {
	Download(ctx context.Context, key, destPath string) error
}

// ChatGateway is the slice of the Telegram client delivery uses.
type ChatGateway interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, localPath string) error
}

// Service turns a completion notification into chat messages.
type Service struct {
	store       ResultStore
	blobs       BlobStore
	gateway     ChatGateway
	downloadDir string
	logger      *slog.Logger
}

func NewService(log *slog.Logger, store ResultStore, blobs BlobStore, gateway ChatGateway, downloadDir string) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:       store,
		blobs:       blobs,
		gateway:     gateway,
		downloadDir: downloadDir,
		logger:      log.With(slog.String("service", "delivery")),
	}
}

// HandleCompletion looks up the result for predictionID and delivers it.
// results.ErrNotFound and results.ErrMissingChatID pass through for the HTTP
// layer to map; the annotated image is best effort and never invalidates the
// already-sent text summary.
func (s *Service) HandleCompletion(ctx context.Context, predictionID string) error {
	result, err := s.store.Get(ctx, predictionID)
	if err != nil {
		return err
	}
	if err := result.Validate(); err != nil {
		s.logger.Error("undeliverable result", slog.String("prediction_id", predictionID), slog.Any("error", err))
		return err
	}

	summary := results.Summary(result)
	if err := s.gateway.SendText(ctx, result.ChatID, summary); err != nil {
		return fmt.Errorf("send summary: %w", err)
	}
	s.logger.Info("summary delivered",
		slog.String("prediction_id", predictionID),
		slog.Int64("chat_id", result.ChatID),
		slog.Int("labels", len(result.Labels)),
	)

	if result.PredictedImgPath != "" {
		s.sendAnnotatedImage(ctx, result)
	}
	return nil
}

// sendAnnotatedImage relays the annotated output image. Failures are reported
// to the chat as a distinct message and otherwise absorbed.
func (s *Service) sendAnnotatedImage(ctx context.Context, result results.DetectionResult) {
	if err := os.MkdirAll(s.downloadDir, 0o755); err != nil {
		s.logger.Error("create download dir failed", slog.Any("error", err))
		s.reply(ctx, result.ChatID, replyImageFailed)
		return
	}
	localPath := filepath.Join(s.downloadDir, uuid.NewString()+".jpg")
	defer func() {
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("remove temp file failed", slog.String("path", localPath), slog.Any("error", err))
		}
	}()

	if err := s.blobs.Download(ctx, result.PredictedImgPath, localPath); err != nil {
		s.logger.Error("fetch annotated image failed",
			slog.String("prediction_id", result.PredictionID),
			slog.String("key", result.PredictedImgPath),
			slog.Any("error", err),
		)
		s.reply(ctx, result.ChatID, replyImageFailed)
		return
	}
	if err := s.gateway.SendPhoto(ctx, result.ChatID, localPath); err != nil {
		s.logger.Error("send annotated image failed",
			slog.String("prediction_id", result.PredictionID),
			slog.Any("error", err),
		)
		s.reply(ctx, result.ChatID, replyImageFailed)
	}
}

func (s *Service) reply(ctx context.Context, chatID int64, text string) {
	if err := s.gateway.SendText(ctx, chatID, text); err != nil {
		s.logger.Error("send reply failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}
