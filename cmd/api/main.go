package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/brainboost-api/internal/config"
	"github.com/noah-isme/brainboost-api/internal/database"
	"github.com/noah-isme/brainboost-api/internal/handler"
	"github.com/noah-isme/brainboost-api/internal/middleware"
	"github.com/noah-isme/brainboost-api/internal/observability"
	"github.com/noah-isme/brainboost-api/internal/repository"
	"github.com/noah-isme/brainboost-api/internal/router"
	"github.com/noah-isme/brainboost-api/internal/scheduler"
	"github.com/noah-isme/brainboost-api/internal/service"
	cloud "github.com/noah-isme/brainboost-api/pkg/cloudinary"
	"github.com/noah-isme/brainboost-api/pkg/events"
)

const leaderboardCacheTTL = 10 * time.Minute

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.AppEnv == "development" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnLifetime,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := database.ConnectRedis(context.Background(), cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not set; dashboard and leaderboard caching disabled")
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to nats")
	}
	var publisher events.Publisher = events.Nop{}
	if natsConn != nil {
		defer natsConn.Drain()
		publisher = events.NewNATSPublisher(natsConn, cfg.NATSSubject, logger)
	} else {
		logger.Warn().Msg("nats url not set; progress events are not published")
	}

	var uploader service.FileUploader
	if cfg.CloudinaryCloudName != "" {
		media, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create cloudinary client")
		}
		uploader = media
	}

	observability.RegisterMetrics()
	validate := validator.New(validator.WithRequiredStructEnabled())
	store := repository.NewStore(db)

	var leaderboard *service.LeaderboardCache
	if redisClient != nil {
		leaderboard = service.NewLeaderboardCache(redisClient, leaderboardCacheTTL)
	}

	activityService := service.NewActivityService(store.Activity, logger)
	dashboardService := service.NewDashboardService(store, redisClient, cfg.DashboardCacheTTL, cfg.Location(), logger)
	rewardService := service.NewRewardService(store, leaderboard, publisher, activityService, validate, cfg.LeaderboardSize, logger)
	progressService := service.NewProgressService(store, rewardService, publisher, dashboardService, cfg.LessonCompletionPoints, logger)
	quizService := service.NewQuizService(store, activityService, dashboardService, validate, cfg.QuizQuestionLimit, logger)
	streakService := service.NewStreakService(store, cfg.Location(), dashboardService, logger)
	certificateService := service.NewCertificateService(store, cfg.Location(), logger)
	enrollmentService := service.NewEnrollmentService(store, logger)
	catalogService := service.NewCatalogService(store, uploader, activityService, validate, logger)

	healthChecks := map[string]handler.HealthCheckFunc{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		healthChecks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    256 << 20,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		CatalogHandler:     handler.NewCatalogHandler(catalogService, validate, logger),
		EnrollmentHandler:  handler.NewEnrollmentHandler(enrollmentService, logger),
		ProgressHandler:    handler.NewProgressHandler(progressService, logger),
		QuizHandler:        handler.NewQuizHandler(quizService, logger),
		RewardHandler:      handler.NewRewardHandler(rewardService, logger),
		StreakHandler:      handler.NewStreakHandler(streakService, logger),
		CertificateHandler: handler.NewCertificateHandler(certificateService, logger),
		DashboardHandler:   handler.NewDashboardHandler(dashboardService, logger),
		ActivityHandler:    handler.NewActivityHandler(activityService, logger),
		HealthChecks:       healthChecks,
		JWTMiddleware:      middleware.JWTProtected(cfg.JWTSecret),
	})

	jobs := scheduler.New(cfg.Location(), logger)
	if leaderboard != nil {
		if err := jobs.ScheduleLeaderboardRebuild(cfg.LeaderboardRefreshCron, rewardService); err != nil {
			logger.Fatal().Err(err).Msg("failed to schedule leaderboard rebuild")
		}
	}
	jobs.Start()

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, jobs, logger)
}

func waitForShutdown(app *fiber.App, jobs *scheduler.Scheduler, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	jobs.Stop(ctx)

	logger.Info().Msg("server stopped")
}
