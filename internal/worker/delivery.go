package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"fintrack/internal/log"
)

// PINDeliverer hands a login PIN to the user.
type PINDeliverer interface {
	DeliverPIN(ctx context.Context, email, pin string, expiresAt time.Time) error
}

// LogDeliverer writes PINs to the log. It is the fallback when no bot
// webhook is configured.
type LogDeliverer struct {
	Logger *log.Logger
}

func (d LogDeliverer) DeliverPIN(ctx context.Context, email, pin string, expiresAt time.Time) error {
	d.Logger.InfoContext(ctx, "Login PIN issued (no bot configured)",
		log.FieldEmail, email,
		"pin", pin,
		"expires_at", expiresAt.Format(time.RFC3339))
	return nil
}

type webhookPayload struct {
	Email     string    `json:"email"`
	PIN       string    `json:"pin"`
	ExpiresAt time.Time `json:"expires_at"`
}

// WebhookDeliverer POSTs PINs to the messaging bot.
type WebhookDeliverer struct {
	url    string
	client *http.Client
	logger *log.Logger
}

func NewWebhookDeliverer(url string, logger *log.Logger) *WebhookDeliverer {
	return &WebhookDeliverer{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// DeliverPIN returns an error for transport failures and 5xx answers so the
// event is redelivered. Other non-2xx answers are logged and dropped.
func (d *WebhookDeliverer) DeliverPIN(ctx context.Context, email, pin string, expiresAt time.Time) error {
	body, err := json.Marshal(webhookPayload{Email: email, PIN: pin, ExpiresAt: expiresAt.UTC()})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("webhook answered %d", resp.StatusCode)
	case resp.StatusCode >= 300:
		d.logger.WarnContext(ctx, "Bot rejected PIN delivery",
			log.FieldEmail, email, log.FieldStatusCode, resp.StatusCode)
	}
	return nil
}
