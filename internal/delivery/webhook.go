package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookConfig configures the webhook channel
type WebhookConfig struct {
	URL     string
	Token   string // optional bearer token
	Timeout time.Duration
}

// Webhook posts each delivery as JSON to a configured endpoint
type Webhook struct {
	url    string
	token  string
	client *http.Client
}

// NewWebhook creates a webhook channel
func NewWebhook(cfg WebhookConfig) *Webhook {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Webhook{
		url:    cfg.URL,
		token:  cfg.Token,
		client: &http.Client{Timeout: timeout},
	}
}

// Name identifies the channel
func (w *Webhook) Name() string { return "webhook" }

// Deliver posts the payload and treats any non-2xx response as failure
func (w *Webhook) Deliver(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post delivery: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
