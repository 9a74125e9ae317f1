package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"voicetask-service/pkg/mq"
)

// Channel selects how reminder notifications leave the process.
const (
	ChannelLog     = "log"
	ChannelWebhook = "webhook"
	ChannelMQ      = "mq"
	ChannelNone    = "none"
)

// Sender delivers a local notification given a title and body. Delivery is
// best-effort: a failed or disabled send never blocks the caller.
type Sender interface {
	Send(ctx context.Context, title, body string) error
	Channel() string
}

// LogSender writes the notification to the structured log. This is the
// stand-in for a desktop notification on a headless host.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, title, body string) error {
	s.logger.Info("Notification",
		zap.String("title", title),
		zap.String("body", body),
	)
	return nil
}

func (s *LogSender) Channel() string { return ChannelLog }

// WebhookSender POSTs the notification as JSON to a configured URL
// (ntfy, Slack webhook, or similar).
type WebhookSender struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewWebhookSender(url string, logger *zap.Logger) *WebhookSender {
	return &WebhookSender{
		url: url,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger: logger,
	}
}

func (s *WebhookSender) Send(ctx context.Context, title, body string) error {
	payload, err := json.Marshal(map[string]string{
		"title": title,
		"body":  body,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}

func (s *WebhookSender) Channel() string { return ChannelWebhook }

// MQSender publishes reminder.fired events to the topic exchange so another
// consumer can fan them out.
type MQSender struct {
	publisher *mq.Publisher
}

func NewMQSender(publisher *mq.Publisher) *MQSender {
	return &MQSender{publisher: publisher}
}

func (s *MQSender) Send(ctx context.Context, title, body string) error {
	payload := map[string]interface{}{
		"title":    title,
		"body":     body,
		"fired_at": time.Now(),
	}
	return s.publisher.Publish("reminder.fired", payload)
}

func (s *MQSender) Channel() string { return ChannelMQ }

// NopSender is used when notification permission has not been granted.
// Reminders are still consumed, silently.
type NopSender struct{}

func (NopSender) Send(ctx context.Context, title, body string) error { return nil }

func (NopSender) Channel() string { return ChannelNone }
