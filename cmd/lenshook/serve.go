package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/lenshook/lenshook/internal/config"
	"github.com/lenshook/lenshook/internal/delivery"
	"github.com/lenshook/lenshook/internal/handlers"
	"github.com/lenshook/lenshook/internal/intake"
	"github.com/lenshook/lenshook/internal/logger"
	"github.com/lenshook/lenshook/internal/queue"
	"github.com/lenshook/lenshook/internal/results"
	"github.com/lenshook/lenshook/internal/secrets"
	"github.com/lenshook/lenshook/internal/server"
	"github.com/lenshook/lenshook/internal/storage"
	"github.com/lenshook/lenshook/internal/telegram"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideAWSConfig,
			provideRuntimeConfig,
			provideTelegramClient,
			provideBlobStore,
			providePublisher,
			provideMongoClient,
			provideResultStore,
			provideIntakeService,
			provideDeliveryService,
			provideServerHandler(provideWebhookHandler),
			provideServerHandler(provideResultsHandler),
			provideServerHandler(handlers.NewPingHandler),
			provideServer,
		),
		fx.Invoke(
			registerWebhook,
			startServer,
		),
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideAWSConfig(cfg config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.AWS.Region),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

// runtimeConfig is the file config with the Secrets Manager overlay applied
// and every required field validated.
type runtimeConfig struct {
	config.Config
}

func provideRuntimeConfig(log *slog.Logger, cfg config.Config, awsCfg aws.Config) (*runtimeConfig, error) {
	loader := secrets.NewLoader(log, secretsmanager.NewFromConfig(awsCfg))
	resolved, err := loader.Apply(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	if err := resolved.Validate(); err != nil {
		return nil, err
	}
	return &runtimeConfig{Config: resolved}, nil
}

func provideTelegramClient(log *slog.Logger, rc *runtimeConfig) (*telegram.Client, error) {
	return telegram.NewClient(log, rc.Telegram.Token, rc.Intake.CallTimeout())
}

func provideBlobStore(log *slog.Logger, rc *runtimeConfig, awsCfg aws.Config) *storage.Client {
	return storage.NewClient(log, s3.NewFromConfig(awsCfg), rc.S3.Bucket, rc.S3.Host, rc.Intake.CallTimeout())
}

func providePublisher(log *slog.Logger, rc *runtimeConfig, awsCfg aws.Config) *queue.Publisher {
	return queue.NewPublisher(log, sqs.NewFromConfig(awsCfg), rc.SQS.QueueURL, rc.Intake.CallTimeout())
}

func provideMongoClient(lc fx.Lifecycle, rc *runtimeConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), rc.Intake.CallTimeout())
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(rc.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error {
		return client.Disconnect(ctx)
	}})
	return client, nil
}

func provideResultStore(log *slog.Logger, rc *runtimeConfig, client *mongo.Client) *results.Store {
	collection := client.Database(rc.Mongo.Database).Collection(rc.Mongo.Collection)
	return results.NewStore(log, collection, rc.Intake.CallTimeout())
}

func provideIntakeService(log *slog.Logger, gateway *telegram.Client, blobs *storage.Client, publisher *queue.Publisher, rc *runtimeConfig) *intake.Service {
	return intake.NewService(log, gateway, blobs, publisher, rc.Intake.DownloadDir)
}

func provideDeliveryService(log *slog.Logger, store *results.Store, blobs *storage.Client, gateway *telegram.Client, rc *runtimeConfig) *delivery.Service {
	return delivery.NewService(log, store, blobs, gateway, rc.Intake.DownloadDir)
}

func provideWebhookHandler(log *slog.Logger, svc *intake.Service, rc *runtimeConfig) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, svc, rc.Telegram.Token)
}

func provideResultsHandler(log *slog.Logger, svc *delivery.Service) *handlers.ResultsHandler {
	return handlers.NewResultsHandler(log, svc)
}

type serverParams struct {
	fx.In
	Logger   *slog.Logger
	Config   *runtimeConfig
	Handlers []server.Handler `group:"server_handlers"`
}

func provideServer(p serverParams) *server.Server {
	return server.NewServer(p.Logger, p.Config.Server.Addr, p.Handlers)
}

func registerWebhook(lc fx.Lifecycle, client *telegram.Client, rc *runtimeConfig) {
	lc.Append(fx.Hook{OnStart: func(ctx context.Context) error {
		return client.EnsureWebhook(ctx, rc.Telegram.AppURL)
	}})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, s *server.Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server stopped", slog.Any("error", err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return s.Shutdown(ctx)
		},
	})
}
