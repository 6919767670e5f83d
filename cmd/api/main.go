package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/designhub-api/internal/config"
	"github.com/noah-isme/designhub-api/internal/database"
	"github.com/noah-isme/designhub-api/internal/handler"
	"github.com/noah-isme/designhub-api/internal/middleware"
	"github.com/noah-isme/designhub-api/internal/repository"
	"github.com/noah-isme/designhub-api/internal/router"
	"github.com/noah-isme/designhub-api/internal/service"
	"github.com/noah-isme/designhub-api/pkg/ai"
	cloud "github.com/noah-isme/designhub-api/pkg/cloudinary"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "designhub-api").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not set, fanout and leaderboard cache are node-local")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Drain()
	}

	var storage service.FileStorage
	imageStore, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
		Tags:      []string{"battle-entry"},
	}, logger)
	switch {
	case err == nil:
		storage = imageStore
	case errors.Is(err, cloud.ErrNotConfigured):
		logger.Warn().Msg("cloudinary not configured, battle uploads are disabled")
	default:
		logger.Fatal().Err(err).Msg("failed to create cloudinary client")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	limits := service.PlanLimits{FreeCharLimit: cfg.Plans.FreeCharLimit, ProCharLimit: cfg.Plans.ProCharLimit}

	profileRepo := repository.NewProfileRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	solutionRepo := repository.NewSolutionRepository(db)
	jobRepo := repository.NewEvaluationJobRepository(db)
	battleRepo := repository.NewBattleRepository(db)
	mentorRepo := repository.NewMentorRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notificationService := service.NewNotificationService(notificationRepo, redisClient, cfg.RedisChannel, natsConn, validate, logger)
	profileService := service.NewProfileService(profileRepo, limits, validate, logger)
	taskService := service.NewTaskService(taskRepo, validate, logger)
	solutionService := service.NewSolutionService(solutionRepo, jobRepo, taskRepo, profileService, notificationService, validate, logger, service.SolutionConfig{
		Limits:      limits,
		MaxAttempts: cfg.Evaluation.MaxAttempts,
	})
	battleLive := service.NewBattleLive(redisClient, cfg.RedisChannel, logger)
	battleService := service.NewBattleService(battleRepo, storage, redisClient, battleLive, notificationService, validate, logger, service.BattleConfig{
		MaxUploadBytes: int64(cfg.UploadMaxSizeMB) * 1024 * 1024,
		CacheTTL:       cfg.LeaderboardCacheTTL,
		CachePrefix:    cfg.AppName,
	})
	mentorService := service.NewMentorService(mentorRepo, notificationService, validate, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationService.Start(ctx)
	battleLive.Start(ctx)
	startEvaluation(ctx, cfg, jobRepo, notificationService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxSizeMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AccessLog: cfg.AppEnv == "development"})
	router.Register(app, cfg, router.Dependencies{
		TaskHandler:           handler.NewTaskHandler(taskService, logger),
		SolutionHandler:       handler.NewSolutionHandler(solutionService, logger),
		AdminSolutionHandler:  handler.NewAdminSolutionHandler(solutionService, logger),
		ProfileHandler:        handler.NewProfileHandler(profileService, logger),
		NotificationHandler:   handler.NewNotificationHandler(notificationService, logger, cfg.NotificationKeepAlive),
		BattleHandler:         handler.NewBattleHandler(battleService, battleLive, logger),
		MentorHandler:         handler.NewMentorHandler(mentorService, logger),
		HealthProbes:          healthProbes(db, redisClient, natsConn),
		JWTMiddleware:         middleware.JWTProtected(cfg.JWTSecret),
		OptionalJWTMiddleware: middleware.OptionalJWT(cfg.JWTSecret),
		SubmitRateLimit:       middleware.RateLimit("solutions", cfg.SubmissionRateLimit, cfg.SubmissionRateWindow),
		ExposeMetrics:         true,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(ctx, app, logger)
}

// startEvaluation runs the outbox dispatcher and its watchdog. Without an evaluator the
// queue still accepts jobs and drains once a key is configured.
func startEvaluation(ctx context.Context, cfg config.Config, jobs repository.EvaluationJobRepository, notifications service.NotificationPublisher, logger zerolog.Logger) {
	if cfg.OpenAIAPIKey == "" {
		logger.Warn().Msg("openai api key not set, evaluation dispatcher disabled")
		return
	}

	evaluator, err := ai.NewOpenAIEvaluator(ai.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
		Timeout: cfg.Evaluation.Timeout,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create evaluator")
	}

	dispatcher := service.NewEvaluationDispatcher(jobs, evaluator, notifications, logger, service.DispatcherConfig{
		Interval:  cfg.Evaluation.PollInterval,
		Batch:     cfg.Evaluation.BatchSize,
		Workers:   cfg.Evaluation.Workers,
		RetryBase: cfg.Evaluation.RetryBase,
		RetryMax:  cfg.Evaluation.RetryMax,
		Timeout:   cfg.Evaluation.Timeout,
	})
	watchdog := service.NewEvaluationWatchdog(jobs, cfg.Evaluation.Lease, logger)

	go dispatcher.Run(ctx)
	go watchdog.Start(ctx)
}

func healthProbes(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) []handler.HealthProbe {
	probes := []handler.HealthProbe{{
		Name: "database",
		Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}

	redisProbe := handler.HealthProbe{Name: "redis"}
	if redisClient != nil {
		redisProbe.Check = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	natsProbe := handler.HealthProbe{Name: "nats"}
	if natsConn != nil {
		natsProbe.Check = func(context.Context) error {
			if !natsConn.IsConnected() {
				return errors.New("nats disconnected")
			}
			return nil
		}
	}

	return append(probes, redisProbe, natsProbe)
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
