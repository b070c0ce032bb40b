package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aumugisha-umu/seido-sub001/common/redis"
	"github.com/aumugisha-umu/seido-sub001/internal/domain"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Publisher pushes a freshly created notification to connected clients.
// Publishing is best effort: the row is already persisted.
type Publisher interface {
	Publish(ctx context.Context, n *domain.Notification) error
	Close() error
}

// NoopPublisher used when PUBLISHER=none.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, *domain.Notification) error { return nil }
func (NoopPublisher) Close() error                                        { return nil }

// StreamPublisher appends notifications to a Redis stream.
type StreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewStreamPublisher(client *redis.Client, stream string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *StreamPublisher) Publish(ctx context.Context, n *domain.Notification) error {
	_, err := redis.PublishJSONToStream(ctx, p.client, p.stream, p.maxLen, n.ToJSON())
	if err != nil {
		return fmt.Errorf("publish notification %s to stream %s: %w", n.NotificationID, p.stream, err)
	}
	return nil
}

// Close the redis client is owned by main.
func (p *StreamPublisher) Close() error { return nil }

// mqttClient is the part of common/mqtt.Client the publisher needs.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Disconnect()
}

// MQTTPublisher sends each notification to <prefix>/<user_id>.
type MQTTPublisher struct {
	client      mqttClient
	topicPrefix string
	qos         byte
}

func NewMQTTPublisher(client mqttClient, topicPrefix string, qos byte) *MQTTPublisher {
	return &MQTTPublisher{
		client:      client,
		topicPrefix: strings.TrimRight(topicPrefix, "/"),
		qos:         qos,
	}
}

func (p *MQTTPublisher) Topic(userID string) string {
	return p.topicPrefix + "/" + userID
}

func (p *MQTTPublisher) Publish(_ context.Context, n *domain.Notification) error {
	payload, err := json.Marshal(n.ToJSON())
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	return p.client.Publish(p.Topic(n.UserID), p.qos, false, payload)
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect()
	return nil
}

// WebhookPublisher POSTs notifications to a push gateway.
type WebhookPublisher struct {
	client *resty.Client
	url    string
	logger *zap.Logger
}

func NewWebhookPublisher(url, token string, timeout time.Duration, retries int, logger *zap.Logger) *WebhookPublisher {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &WebhookPublisher{client: client, url: url, logger: logger}
}

func (p *WebhookPublisher) Publish(ctx context.Context, n *domain.Notification) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"event":        "notification.created",
			"notification": n.ToJSON(),
		}).
		Post(p.url)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}
	p.logger.Debug("notification pushed to webhook",
		zap.String("notification_id", n.NotificationID),
		zap.Int("status", resp.StatusCode()),
	)
	return nil
}

func (p *WebhookPublisher) Close() error { return nil }
