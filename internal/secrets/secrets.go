// Package secrets overlays config values from AWS Secrets Manager at boot.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/lenshook/lenshook/internal/config"
)

// API is the Secrets Manager surface the loader needs.
type API interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Secret is the JSON document stored under the configured secret id.
type Secret struct {
	TelegramToken  string `json:"TELEGRAM_TOKEN"`
	TelegramAppURL string `json:"TELEGRAM_APP_URL"`
	S3BucketName   string `json:"S3_BUCKET_NAME"`
	SQSQueueURL    string `json:"SQS_QUEUE_URL"`
	MongoURI       string `json:"MONGO_URI"`
}

// Loader fetches a single JSON secret and applies it onto a Config.
type Loader struct {
	client API
	logger *slog.Logger
}

func NewLoader(log *slog.Logger, client API) *Loader {
	if log == nil {
		log = slog.Default()
	}
	return &Loader{
		client: client,
		logger: log.With(slog.String("component", "secrets")),
	}
}

// Apply fetches the secret named by cfg.AWS.SecretID and overlays its fields
// onto cfg. Secret values win over file values only where the secret field is
// non-empty. A missing secret id leaves cfg untouched.
func (l *Loader) Apply(ctx context.Context, cfg config.Config) (config.Config, error) {
	secretID := cfg.AWS.SecretID
	if secretID == "" {
		return cfg, nil
	}

	out, err := l.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return cfg, fmt.Errorf("fetch secret %s: %w", secretID, err)
	}
	if out.SecretString == nil {
		return cfg, fmt.Errorf("secret %s has no string payload", secretID)
	}

	var secret Secret
	if err := json.Unmarshal([]byte(*out.SecretString), &secret); err != nil {
		return cfg, fmt.Errorf("decode secret %s: %w", secretID, err)
	}

	cfg = overlay(cfg, secret)
	l.logger.Info("secrets applied", slog.String("secret_id", secretID))
	return cfg, nil
}

func overlay(cfg config.Config, secret Secret) config.Config {
	if secret.TelegramToken != "" {
		cfg.Telegram.Token = secret.TelegramToken
	}
	if secret.TelegramAppURL != "" {
		cfg.Telegram.AppURL = secret.TelegramAppURL
	}
	if secret.S3BucketName != "" {
		cfg.S3.Bucket = secret.S3BucketName
	}
	if secret.SQSQueueURL != "" {
		cfg.SQS.QueueURL = secret.SQSQueueURL
	}
	if secret.MongoURI != "" {
		cfg.Mongo.URI = secret.MongoURI
	}
	return cfg
}
