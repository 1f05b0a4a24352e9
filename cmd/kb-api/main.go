package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/kb-api/api/swagger"
	"github.com/noah-isme/kb-api/internal/handler"
	"github.com/noah-isme/kb-api/internal/repository"
	"github.com/noah-isme/kb-api/internal/service"
	"github.com/noah-isme/kb-api/pkg/broker"
	"github.com/noah-isme/kb-api/pkg/cache"
	"github.com/noah-isme/kb-api/pkg/config"
	"github.com/noah-isme/kb-api/pkg/database"
	"github.com/noah-isme/kb-api/pkg/jobs"
	"github.com/noah-isme/kb-api/pkg/logger"
	"github.com/noah-isme/kb-api/pkg/storage"
)

// @title Knowledge Base API
// @version 1.0.0
// @description Q&A knowledge base with role-gated moderation
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if client, err := cache.NewRedis(ctx, cfg.Redis); err != nil {
		logr.Warn("redis unavailable, analytics cache disabled", zap.Error(err))
	} else {
		redisClient = client
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	producer := broker.NewProducer(cfg.Kafka)
	defer producer.Close() //nolint:errcheck

	blobs, err := storage.NewLocalStorage(cfg.Attachments.StorageDir)
	if err != nil {
		return err
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	answerRepo := repository.NewAnswerRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)

	var dispatcher service.Dispatcher = service.NewLogDispatcher(logr)
	if producer != nil {
		dispatcher = service.NewKafkaDispatcher(producer)
		logr.Info("notifications publish to kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	notifications := service.NewNotificationService(userRepo, dispatcher, metricsSvc, logr, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	})
	notifications.Start(ctx)
	defer notifications.Stop()
	go drainFailures(ctx, notifications.Failures(), logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Analytics.CacheTTL, logr, cfg.Analytics.CacheEnabled && redisClient != nil)
	activitySvc := service.NewActivityService(activityRepo, logr)
	rankingSvc := service.NewRankingService(questionRepo, cfg.Ranking.DefaultLimit)
	analyticsSvc := service.NewAnalyticsService(analyticsRepo, rankingSvc, cacheSvc, metricsSvc, logr)
	moderationSvc := service.NewModerationService(questionRepo, answerRepo, activitySvc, notifications, rankingSvc, analyticsSvc, metricsSvc, validate, logr)
	authSvc := service.NewAuthService(userRepo, activitySvc, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, activitySvc, validate, logr)
	attachmentSvc := service.NewAttachmentService(
		blobs,
		storage.NewSignedURLSigner(cfg.Attachments.SignedURLSecret, cfg.Attachments.SignedURLTTL),
		service.AttachmentConfig{MaxFileSize: cfg.Attachments.MaxFileSizeBytes, APIPrefix: cfg.APIPrefix},
		logr,
	)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := newRouter(cfg, logr, metricsSvc, authSvc, routeHandlers{
		auth:       handler.NewAuthHandler(authSvc),
		users:      handler.NewUserHandler(userSvc),
		activity:   handler.NewActivityHandler(activitySvc),
		questions:  handler.NewQuestionHandler(moderationSvc, rankingSvc),
		answers:    handler.NewAnswerHandler(moderationSvc),
		analytics:  handler.NewAnalyticsHandler(analyticsSvc),
		attachment: handler.NewAttachmentHandler(attachmentSvc),
		metrics: handler.NewMetricsHandler(metricsSvc, map[string]handler.Pinger{
			"database": db,
			"cache":    handler.PingFunc(cacheRepo.Ping),
		}),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func drainFailures(ctx context.Context, failures <-chan jobs.Failure, logr *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-failures:
			if !ok {
				return
			}
			logr.Error("notification dropped",
				zap.String("job_id", f.Job.ID),
				zap.String("type", f.Job.Type),
				zap.Int("attempts", f.Job.Attempt),
				zap.Error(f.Err),
			)
		}
	}
}
