// Package queue publishes detection requests to SQS.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// DetectionRequest is the message the external detector consumes. The queue
// provides at-least-once delivery; the detector tolerates duplicates.
type DetectionRequest struct {
	ImgName string `json:"imgName"`
	ChatID  int64  `json:"chat_id"`
	S3URL   string `json:"s3Url"`
}

// API is the SQS surface the publisher needs.
type API interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Publisher sends detection requests to a single named queue.
type Publisher struct {
	api      API
	queueURL string
	timeout  time.Duration
	logger   *slog.Logger
}

func NewPublisher(log *slog.Logger, api API, queueURL string, timeout time.Duration) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{
		api:      api,
		queueURL: queueURL,
		timeout:  timeout,
		logger:   log.With(slog.String("component", "queue")),
	}
}

// Publish sends one detection request. Single attempt; the caller decides how
// a failure surfaces to the user.
func (p *Publisher) Publish(ctx context.Context, req DetectionRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode detection request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err = p.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	p.logger.Info("detection request published",
		slog.String("img_name", req.ImgName),
		slog.Int64("chat_id", req.ChatID),
	)
	return nil
}
