// Package main runs the background job worker (recording upload to S3/MinIO).
package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/jenin-ai/interview-backend/config"
	"github.com/jenin-ai/interview-backend/internal/metrics"
	"github.com/jenin-ai/interview-backend/internal/recordings"
	"github.com/jenin-ai/interview-backend/internal/worker"
	"github.com/jenin-ai/interview-backend/pkg/database"
	"github.com/jenin-ai/interview-backend/pkg/queue"
	"github.com/jenin-ai/interview-backend/pkg/redis"
	"github.com/jenin-ai/interview-backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if !cfg.Redis.Enabled() {
		logger.Fatal("worker requires REDIS_ADDR")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Endpoint:             cfg.Storage.Endpoint,
		Region:               cfg.Storage.Region,
		AccessKeyID:          cfg.Storage.AccessKeyID,
		SecretAccessKey:      cfg.Storage.SecretAccessKey,
		Bucket:               cfg.Storage.Bucket,
		ForcePathStyle:       cfg.Storage.ForcePathStyle,
		PresignExpireMinutes: cfg.Storage.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	var statuses recordings.Statuses
	if cfg.Database.Enabled() {
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		statuses = recordings.NewRepository(pool)
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)
	m := metrics.New()

	n := cfg.Worker.Concurrency
	if n < 1 {
		n = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		processor := worker.NewRecordingProcessor(s3Client, statuses, jobQueue, m, logger.With(zap.Int("worker", i)))
		g.Go(func() error { return processor.Run(gctx) })
	}
	logger.Info("worker started", zap.Int("concurrency", n), zap.String("queue", queue.QueueRecordings))

	if err := g.Wait(); err != nil {
		logger.Error("worker", zap.Error(err))
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
