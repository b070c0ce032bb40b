package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	commoncfg "github.com/aumugisha-umu/seido-sub001/common/config"
)

// Publisher backends for created notifications.
const (
	PublisherNone    = "none"
	PublisherStream  = "stream"
	PublisherMQTT    = "mqtt"
	PublisherWebhook = "webhook"
)

// Config seido-notify (HTTP API) configuration
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled bool
	Database  commoncfg.DatabaseConfig
	// CacheEnabled false keeps the team cache in process memory.
	CacheEnabled bool
	Redis        commoncfg.RedisConfig
	Log          struct {
		Level  string
		Format string
	}
	Notify struct {
		Concurrency  int
		TeamCacheTTL time.Duration
		Publisher    string
	}
	Stream struct {
		Name   string
		MaxLen int64
	}
	MQTT    commoncfg.MQTTConfig
	Webhook struct {
		URL     string
		Token   string
		Timeout time.Duration
		Retries int
	}
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	// without a database the service runs on the in-memory store
	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database = commoncfg.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "seido",
		SSLMode:  "disable",
		MaxConns: 20,
		MaxIdle:  5,
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.CacheEnabled = getEnv("REDIS_ENABLED", "true") == "true"
	cfg.Redis = commoncfg.RedisConfig{Addr: "localhost:6379"}
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Notify.Concurrency = parseInt(getEnv("NOTIFY_CONCURRENCY", "8"), 8)
	if cfg.Notify.Concurrency <= 0 {
		cfg.Notify.Concurrency = 8
	}
	cfg.Notify.TeamCacheTTL = parseDuration(getEnv("TEAM_CACHE_TTL", "5m"), 5*time.Minute)
	cfg.Notify.Publisher = strings.ToLower(getEnv("PUBLISHER", PublisherNone))
	switch cfg.Notify.Publisher {
	case PublisherNone, PublisherStream, PublisherMQTT, PublisherWebhook:
	default:
		cfg.Notify.Publisher = PublisherNone
	}

	cfg.Stream.Name = getEnv("NOTIFY_STREAM", "seido:notifications")
	cfg.Stream.MaxLen = int64(parseInt(getEnv("NOTIFY_STREAM_MAXLEN", "10000"), 10000))

	cfg.MQTT = commoncfg.MQTTConfig{
		Broker:      "tcp://localhost:1883",
		ClientID:    "seido-notify",
		QoS:         1,
		TopicPrefix: "seido/notifications",
	}
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Webhook.URL = getEnv("WEBHOOK_URL", "")
	cfg.Webhook.Token = getEnv("WEBHOOK_TOKEN", "")
	cfg.Webhook.Timeout = parseDuration(getEnv("WEBHOOK_TIMEOUT", "5s"), 5*time.Second)
	cfg.Webhook.Retries = parseInt(getEnv("WEBHOOK_RETRIES", "2"), 2)

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
