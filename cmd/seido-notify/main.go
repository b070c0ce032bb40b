package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aumugisha-umu/seido-sub001/common/database"
	"github.com/aumugisha-umu/seido-sub001/common/logger"
	"github.com/aumugisha-umu/seido-sub001/common/mqtt"
	commonredis "github.com/aumugisha-umu/seido-sub001/common/redis"
	"github.com/aumugisha-umu/seido-sub001/internal/config"
	httpapi "github.com/aumugisha-umu/seido-sub001/internal/http"
	"github.com/aumugisha-umu/seido-sub001/internal/repository"
	"github.com/aumugisha-umu/seido-sub001/internal/service"
	"github.com/aumugisha-umu/seido-sub001/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "seido-notify")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	var (
		db            *sql.DB
		graph         repository.GraphRepository
		notifications repository.NotificationsRepository
		activityLogs  repository.ActivityLogsRepository
	)
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			log.Info("DB enabled for seido-notify")
		} else {
			log.Warn("DB enabled but connection failed, falling back to memory store", zap.Error(err))
		}
	}
	if db != nil {
		graph = repository.NewPostgresGraphRepository(db)
		notifications = repository.NewPostgresNotificationsRepository(db)
		activityLogs = repository.NewPostgresActivityLogsRepository(db)
	} else {
		mem := repository.NewMemoryStore()
		graph, notifications, activityLogs = mem, mem, mem
	}

	var (
		redisClient *redis.Client
		cache       store.Cache = store.NewMemoryKV()
	)
	if cfg.CacheEnabled {
		c := commonredis.NewRedisClient(&cfg.Redis)
		pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
		if err := commonredis.Ping(pingCtx, c); err == nil {
			redisClient = c
			cache = store.NewRedisKV(c)
			log.Info("Redis team cache enabled", zap.String("addr", cfg.Redis.Addr))
		} else {
			log.Warn("Redis unavailable, using in-process team cache", zap.Error(err))
			_ = c.Close()
		}
		cancelPing()
	}

	publisher := newPublisher(cfg, redisClient, log)
	reader := service.NewOwnershipReader(graph, cache, cfg.Notify.TeamCacheTTL, log)
	activity := service.NewActivityLogger(activityLogs, log)
	notifier := service.NewNotificationService(notifications, reader, activity, publisher, cfg.Notify.Concurrency, log)

	router := httpapi.NewRouter(log)
	router.RegisterEventRoutes(httpapi.NewEventHandler(notifier, activity, graph, log))
	router.RegisterNotificationRoutes(httpapi.NewNotificationHandler(notifier, log))
	router.RegisterActivityLogRoutes(httpapi.NewActivityLogHandler(activity, log))

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("HTTP server stopped", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	_ = publisher.Close()
	_ = commonredis.Close(redisClient)
	_ = database.Close(db)
}

// newPublisher falls back to no publishing when the selected backend is not
// reachable.
func newPublisher(cfg *config.Config, redisClient *redis.Client, log *zap.Logger) service.Publisher {
	switch cfg.Notify.Publisher {
	case config.PublisherStream:
		if redisClient == nil {
			log.Warn("stream publisher needs Redis, notifications will not be published")
			return service.NoopPublisher{}
		}
		return service.NewStreamPublisher(redisClient, cfg.Stream.Name, cfg.Stream.MaxLen)
	case config.PublisherMQTT:
		client, err := mqtt.NewClient(&cfg.MQTT, log)
		if err != nil {
			log.Warn("MQTT unavailable, notifications will not be published", zap.Error(err))
			return service.NoopPublisher{}
		}
		return service.NewMQTTPublisher(client, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS)
	case config.PublisherWebhook:
		if cfg.Webhook.URL == "" {
			log.Warn("PUBLISHER=webhook without WEBHOOK_URL, notifications will not be published")
			return service.NoopPublisher{}
		}
		return service.NewWebhookPublisher(cfg.Webhook.URL, cfg.Webhook.Token, cfg.Webhook.Timeout, cfg.Webhook.Retries, log)
	}
	return service.NoopPublisher{}
}
