package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"microgrid-market/internal/eventing"
)

type webhookPayload struct {
	Event   string         `json:"event"`
	Payload eventing.Event `json:"payload"`
	SentAt  time.Time      `json:"sent_at"`
}

// WebhookChannel posts events to a webhook endpoint as JSON.
type WebhookChannel struct {
	url    string
	client *http.Client
}

// WebhookOption configures the webhook channel.
type WebhookOption func(*WebhookChannel)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(ch *WebhookChannel) {
		if client != nil {
			ch.client = client
		}
	}
}

// NewWebhookChannel constructs a webhook channel.
func NewWebhookChannel(url string, opts ...WebhookOption) (*WebhookChannel, error) {
	if url == "" {
		return nil, errors.New("webhook channel: empty url")
	}
	channel := &WebhookChannel{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(channel)
	}
	return channel, nil
}

// Send implements Channel.
func (c *WebhookChannel) Send(ctx context.Context, event eventing.Event) error {
	if event == nil {
		return nil
	}
	body, err := json.Marshal(webhookPayload{
		Event:   event.EventType(),
		Payload: event,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("webhook channel: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook channel: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook channel: post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook channel: status %d", resp.StatusCode)
	}
	return nil
}
