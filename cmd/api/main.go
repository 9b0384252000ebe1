package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/catalog"
	"server/internal/events"
	"server/internal/generation"
	"server/internal/http/handlers"
	httpapi "server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/providers/genai"
	"server/internal/providers/openaiimg"
	"server/internal/ratelimit"
	"server/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	redisClient, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer redisClient.Close()

	amqpConn, amqpChannel, err := infra.NewAMQPChannel(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect rabbitmq")
	}
	defer amqpConn.Close()

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init blob store")
	}

	gemini, err := genai.NewClient(genai.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		ImageModel: cfg.GeminiImageModel,
		TextModel:  cfg.GeminiTextModel,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init gemini client")
	}

	openai, err := openaiimg.NewClient(openaiimg.Options{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIImageModel,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init openai client")
	}

	defaultStrategy, err := generation.ParseStrategy(cfg.GenerationStrategy)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid GENERATION_STRATEGY")
	}

	publisher := events.NewPublisher(events.Options{
		Broker: events.NewAMQPBroker(amqpChannel, cfg.SaveQueue),
		Logger: logger,
	})

	limiter := ratelimit.New(ratelimit.Options{
		Store:  ratelimit.NewRedisCounter(redisClient),
		Logger: logger,
	})

	orchestrator := generation.New(generation.Options{
		Limiter:         limiter,
		Primary:         gemini,
		Describer:       gemini,
		Fallback:        openai,
		Publisher:       publisher,
		Logger:          logger,
		DailyLimit:      cfg.DailyGenerationLimit,
		AspectRatio:     cfg.AspectRatio,
		Resolution:      cfg.Resolution,
		FallbackSize:    cfg.OpenAIImageSize,
		FallbackQuality: cfg.OpenAIImageQuality,
		DefaultStrategy: defaultStrategy,
	})

	runner := infra.NewSQLRunner(pool, logger)

	app := &handlers.App{
		Config:    cfg,
		Logger:    logger,
		Generator: orchestrator,
		Publisher: publisher,
		Catalog:   catalog.NewPG(runner),
		Blobs:     blobs,
	}

	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app))

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}
}

func newBlobStore(ctx context.Context, cfg *infra.Config) (storage.BlobStore, error) {
	if cfg.StorageDriver == "filesystem" {
		return storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	}
	client, err := infra.NewMinioClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return storage.NewMinioStore(client, cfg.MinioBucket), nil
}
