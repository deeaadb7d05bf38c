package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"moim/cache"
	"moim/config"
	"moim/feed"
	"moim/middleware"
	"moim/routes"
	"moim/utils"
	"moim/worker"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	if dsn := config.AppConfig.SentryDSN; dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         dsn,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Warnf("Sentry initialization failed: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Cache and feed run on redis when configured, in process otherwise
	var store cache.Store = cache.NewMemory()
	var publisher feed.Publisher = feed.NopFeed{}
	var liveFeed *feed.RedisFeed
	if config.AppConfig.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     config.AppConfig.Redis.Address,
			Password: config.AppConfig.Redis.Password,
			DB:       config.AppConfig.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			logger.Fatalf("Failed to connect to redis: %v", err)
		}
		store = cache.NewRedis(client)
		liveFeed = feed.NewRedisFeed(client, logger)
		publisher = liveFeed
	}
	sessions := cache.NewSessions(store)

	app := fiber.New()
	app.Use(middleware.CORS())

	mailer := utils.NewMailer(config.AppConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reminderWorker := worker.NewReminderWorker(config.DB, mailer, log.New(os.Stdout, "REMINDER: ", log.Ldate|log.Ltime|log.Lshortfile))
	go reminderWorker.Start(ctx)

	routes.SetupRoutes(app, config.DB, routes.Deps{
		Store:    store,
		Sessions: sessions,
		Feed:     publisher,
		LiveFeed: liveFeed,
		Mailer:   mailer,
		Logger:   logger,
	})

	logger.Infof("Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
