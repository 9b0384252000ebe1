package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/catalog"
	"server/internal/infra"
	"server/internal/storage"
	"server/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	amqpConn, amqpChannel, err := infra.NewAMQPChannel(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect rabbitmq")
	}
	defer amqpConn.Close()

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init blob store")
	}

	w := worker.New(worker.Options{
		Store:  catalog.NewPG(infra.NewSQLRunner(pool, logger)),
		Blobs:  blobs,
		Logger: logger,
	})

	// One delivery at a time; prefetch of 1 keeps redeliveries ordered.
	if err := amqpChannel.Qos(1, 0, false); err != nil {
		logger.Fatal().Err(err).Msg("failed to set qos")
	}
	deliveries, err := amqpChannel.Consume(cfg.SaveQueue, "persistence-worker", false, false, false, false, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start consuming")
	}

	logger.Info().Str("queue", cfg.SaveQueue).Msg("worker consuming")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down")
			return
		case delivery, ok := <-deliveries:
			if !ok {
				logger.Error().Msg("delivery channel closed")
				return
			}
			// Handle swallows all processing errors; every message is acked
			// exactly once so a poison payload cannot loop forever.
			w.Handle(ctx, delivery.Body)
			if err := delivery.Ack(false); err != nil {
				logger.Error().Err(err).Msg("ack failed")
			}
		}
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
