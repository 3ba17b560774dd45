package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath      = "config.toml"
	DefaultHTTPAddr        = ":8080"
	DefaultAWSRegion       = "eu-north-1"
	DefaultS3Host          = "s3.amazonaws.com"
	DefaultMongoDatabase   = "config"
	DefaultMongoCollection = "image_collection"
	DefaultDownloadDir     = "/tmp/lenshook"
	DefaultCallTimeoutSec  = 30
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Telegram TelegramConfig `toml:"telegram"`
	AWS      AWSConfig      `toml:"aws"`
	S3       S3Config       `toml:"s3"`
	SQS      SQSConfig      `toml:"sqs"`
	Mongo    MongoConfig    `toml:"mongo"`
	Intake   IntakeConfig   `toml:"intake"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type TelegramConfig struct {
	Token string `toml:"token" validate:"required"`
	// AppURL is the public base URL the webhook is registered under.
	AppURL string `toml:"app_url" validate:"required,url"`
}

type AWSConfig struct {
	Region string `toml:"region"`
	// SecretID names the Secrets Manager secret whose JSON fields overlay
	// this config at boot. Empty disables the overlay.
	SecretID string `toml:"secret_id"`
}

type S3Config struct {
	Bucket string `toml:"bucket" validate:"required"`
	// Host is the S3 endpoint host used to derive public object URLs,
	// https://<bucket>.<host>/<key>.
	Host string `toml:"host"`
}

type SQSConfig struct {
	QueueURL string `toml:"queue_url" validate:"required,url"`
}

type MongoConfig struct {
	URI        string `toml:"uri" validate:"required"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

type IntakeConfig struct {
	// DownloadDir holds transient photo files between download and upload.
	DownloadDir    string `toml:"download_dir"`
	CallTimeoutSec int    `toml:"call_timeout_seconds"`
}

// CallTimeout is the explicit deadline applied to every external call.
func (c IntakeConfig) CallTimeout() time.Duration {
	sec := c.CallTimeoutSec
	if sec <= 0 {
		sec = DefaultCallTimeoutSec
	}
	return time.Duration(sec) * time.Second
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		AWS: AWSConfig{
			Region: DefaultAWSRegion,
		},
		S3: S3Config{
			Host: DefaultS3Host,
		},
		Mongo: MongoConfig{
			Database:   DefaultMongoDatabase,
			Collection: DefaultMongoCollection,
		},
		Intake: IntakeConfig{
			DownloadDir:    DefaultDownloadDir,
			CallTimeoutSec: DefaultCallTimeoutSec,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks that every required field is set. It runs after the
// Secrets Manager overlay so file and secret values are judged together.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
