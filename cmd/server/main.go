// Package main runs the interview practice HTTP and WebSocket server with graceful shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/jenin-ai/interview-backend/config"
	"github.com/jenin-ai/interview-backend/internal/auth"
	"github.com/jenin-ai/interview-backend/internal/configs"
	"github.com/jenin-ai/interview-backend/internal/eval"
	"github.com/jenin-ai/interview-backend/internal/interview"
	"github.com/jenin-ai/interview-backend/internal/metrics"
	"github.com/jenin-ai/interview-backend/internal/middleware"
	"github.com/jenin-ai/interview-backend/internal/realtime"
	"github.com/jenin-ai/interview-backend/internal/recordings"
	"github.com/jenin-ai/interview-backend/internal/retention"
	"github.com/jenin-ai/interview-backend/internal/session"
	"github.com/jenin-ai/interview-backend/internal/transcript"
	"github.com/jenin-ai/interview-backend/internal/worker"
	"github.com/jenin-ai/interview-backend/pkg/database"
	"github.com/jenin-ai/interview-backend/pkg/queue"
	"github.com/jenin-ai/interview-backend/pkg/redis"
	"github.com/jenin-ai/interview-backend/pkg/response"
	"github.com/jenin-ai/interview-backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server", zap.Error(err))
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	m := metrics.New()

	var pool *pgxpool.Pool
	if cfg.Database.Enabled() {
		p, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer p.Close()
		if err := database.Migrate(ctx, p); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		pool = p
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		c, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer c.Close()
		rdb = c
	}

	var s3 *storage.S3
	if cfg.Storage.Enabled {
		c, err := storage.NewS3(ctx, storage.S3Config{
			Endpoint:             cfg.Storage.Endpoint,
			Region:               cfg.Storage.Region,
			AccessKeyID:          cfg.Storage.AccessKeyID,
			SecretAccessKey:      cfg.Storage.SecretAccessKey,
			Bucket:               cfg.Storage.Bucket,
			ForcePathStyle:       cfg.Storage.ForcePathStyle,
			PresignExpireMinutes: cfg.Storage.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("recording storage disabled", zap.Error(err))
		} else {
			s3 = c
		}
	}

	// Providers
	set := newProviders(cfg.Providers, m, logger)

	// Transcript log and retention
	store, err := newTranscriptStore(cfg.Transcript, pool)
	if err != nil {
		return err
	}
	tlog := transcript.NewLog(store, transcript.Options{
		WriteTimeout: time.Duration(cfg.Transcript.WriteTimeoutSec) * time.Second,
		Metrics:      m,
	}, logger)
	policy := retention.New(tlog, cfg.Transcript.MaxSessions, logger)

	// Recording archive
	var (
		statuses  recordings.Statuses
		lister    recordings.Lister
		objects   recordings.ObjectReader
		archiver  session.Archiver
		jobQueue  *queue.Queue
		processor *worker.RecordingProcessor
	)
	if pool != nil {
		repo := recordings.NewRepository(pool)
		statuses, lister = repo, repo
	}
	if rdb != nil {
		jobQueue = queue.NewQueue(rdb.Client, logger)
	}
	if s3 != nil {
		objects = s3
		var enq recordings.Enqueuer
		if jobQueue != nil {
			enq = jobQueue
			processor = worker.NewRecordingProcessor(s3, statuses, jobQueue, m, logger)
		}
		archiver = recordings.NewArchiver(s3, enq, statuses, m, logger)
	}

	// Realtime
	var (
		pub realtime.Publisher
		sub realtime.Subscriber
	)
	if rdb != nil {
		ps := realtime.NewRedisPubSub(rdb.Client, logger)
		pub, sub = ps, ps
	}
	hub := realtime.NewHub(logger, pub, sub)
	tlog.SetNotifier(hub)

	registry := session.NewRegistry(set.STT, tlog, policy, archiver, m, session.Config{
		Debounce:         cfg.Transcript.Debounce(),
		CallTimeout:      cfg.Providers.Timeout(),
		Language:         cfg.Providers.STT.Language,
		DefaultMimeType:  cfg.Interview.DefaultMime,
		DisconnectPolicy: session.ParseDisconnectPolicy(cfg.Transcript.DisconnectPolicy),
	}, logger)

	svc := interview.NewService(set, tlog, interview.Config{
		Instruction: cfg.Interview.Instruction,
		Timeout:     cfg.Interview.CallTimeout(),
		Generate:    generateOptions(cfg.Providers),
		Synthesize:  synthesizeOptions(cfg.Providers),
	}, logger)

	// Auth
	var tokens *auth.JWTService
	if cfg.Auth.JWTSecret != "" {
		tokens = auth.NewJWTService(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute)
	}
	gate := auth.NewGate(cfg.Auth.APIKey, tokens)

	var configStore configs.Store
	if pool != nil {
		configStore = configs.NewRepository(pool)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics(m))

	// Health and metrics
	router.GET("/health", func(c *gin.Context) {
		deps := gin.H{"transcript_store": cfg.Transcript.Store, "storage": s3 != nil}
		if rdb != nil {
			deps["redis"] = rdb.Healthy(c.Request.Context())
		}
		if pool != nil {
			deps["database"] = pool.Ping(c.Request.Context()) == nil
		}
		response.OK(c, gin.H{"status": "ok", "time": time.Now().UTC(), "dependencies": deps})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	// Protected API (API key when configured)
	api := router.Group("/api/v1")
	api.Use(middleware.APIKey(gate))
	{
		interview.NewHandler(svc).Register(api)
		transcript.NewHandler(tlog, policy).Register(api)
		eval.NewHandler(set, evalDefaults(cfg), logger).Register(api)
		configs.NewHandler(configStore, logger).Register(api)
		auth.NewHandler(tokens, logger).Register(api)
	}
	recordingHandler := recordings.NewHandler(objects, lister, logger)
	recordingHandler.Register(api)
	media := router.Group("")
	media.Use(middleware.APIKey(gate))
	recordingHandler.RegisterMedia(media)

	// WebSocket (API key or socket token checked on upgrade)
	realtime.NewServer(hub, registry, svc, gate, logger).Register(router)

	srv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     router,
		ReadTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		// Long enough for a full STT + LLM + TTS round trip.
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if processor != nil {
		g.Go(func() error { return processor.Run(gctx) })
		logger.Info("recording worker started")
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", zap.Error(err))
		}
		registry.CloseAll()
		tlog.Flush(shutdownCtx)
		hub.Close()
		return nil
	})
	return g.Wait()
}

func newTranscriptStore(tc config.TranscriptConfig, pool *pgxpool.Pool) (transcript.Store, error) {
	switch tc.Store {
	case "memory":
		return transcript.NewMemoryStore(), nil
	case "postgres":
		return transcript.NewPostgresStore(pool), nil
	default:
		fs, err := transcript.NewFileStore(tc.Dir)
		if err != nil {
			return nil, fmt.Errorf("transcript store: %w", err)
		}
		return fs, nil
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if os.Getenv("LOG_LEVEL") == "debug" {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, _ := config.Build()
	return logger
}
