package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sahilchouksey/fitcamp-api/api"
	"github.com/sahilchouksey/fitcamp-api/config"
	"github.com/sahilchouksey/fitcamp-api/database"
	"github.com/sahilchouksey/fitcamp-api/events"
	"github.com/sahilchouksey/fitcamp-api/router"
	"github.com/sahilchouksey/fitcamp-api/services/cron"
	"github.com/sahilchouksey/fitcamp-api/utils/cache"
	"github.com/sahilchouksey/fitcamp-api/utils/logger"
)

func SetupAndRunServer() error {
	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	cfg, err := config.Get()
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	}); err != nil {
		return err
	}
	log := logger.Global()

	// Initialize GORM database connection
	store, err := database.StartGORM(cfg)
	if err != nil {
		log.Error().Err(err).Str("driver", cfg.DBDriver).Msg("failed to connect to database; is it running? set DB_DRIVER=sqlite for local mode")
		return err
	}

	if err := store.Init(); err != nil {
		log.Error().Err(err).Msg("failed to run migrations")
		return err
	}

	// Redis backs brute force protection; the API runs without it
	var redisCache *cache.RedisCache
	if cfg.RedisURL != "" {
		redisCache, err = cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis; brute force protection disabled")
			redisCache = nil
		}
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing events to kafka")
	}

	// Init API
	server := api.NewAPIServer(fmt.Sprintf(":%d", cfg.Port))
	app := server.GetEngine()

	// Setup Routes
	svc, err := router.SetupRoutes(app, router.Dependencies{
		Store:     store,
		Config:    cfg,
		Publisher: publisher,
		Cache:     redisCache,
	})
	if err != nil {
		return err
	}

	// Initialize Cron Manager (only if enabled)
	var cronManager *cron.CronManager
	if cfg.CronEnabled {
		cronConfig := cron.DefaultConfig()
		cronConfig.SessionSweepSchedule = cfg.SessionSweepSchedule
		cronManager = cron.NewCronManager(store.GetDB(), svc.Sessions, cronConfig)
		if err := cronManager.Start(); err != nil {
			// Don't fail the app, just log the warning
			log.Warn().Err(err).Msg("failed to start cron jobs")
			cronManager = nil
		}
	}

	// Defer closing DB, event writer and stopping cron jobs
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		if err := publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close event publisher")
		}
		if redisCache != nil {
			redisCache.Close()
		}
		store.Close()
	}()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info().Msg("shutting down API server")
		if err := server.Shutdown(); err != nil {
			log.Error().Err(err).Msg("server shutdown failed")
		}
	}()

	// Start the Server
	return server.Run()
}
