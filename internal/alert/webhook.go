package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Webhook posts notifications as JSON to a configured URL.
type Webhook struct {
	URL    string
	Client *http.Client
}

// NewWebhook creates a webhook notifier. Returns nil when no URL is
// configured so the result can go straight into a Multi.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	if url == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

type webhookPayload struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Send implements Notifier.
func (w *Webhook) Send(ctx context.Context, subject, body string) error {
	if w == nil || w.URL == "" {
		return errors.New("webhook disabled")
	}

	payload, _ := json.Marshal(webhookPayload{Subject: subject, Body: body})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
