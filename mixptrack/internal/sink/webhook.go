package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/mixptrack/mixptrack/directive"
)

// Webhook POSTs each call as JSON to a URL with retry and exponential backoff.
type Webhook struct {
	*Callback
	url        string
	client     *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

// WebhookOption configures a Webhook sink.
type WebhookOption func(*Webhook)

// WithWebhookRetries sets the maximum number of retries. Default: 3.
func WithWebhookRetries(n int) WebhookOption {
	return func(w *Webhook) { w.maxRetries = n }
}

// WithWebhookBackoff sets the first retry delay, doubled on each attempt.
// Default: 1s.
func WithWebhookBackoff(d time.Duration) WebhookOption {
	return func(w *Webhook) { w.backoff = d }
}

// WithWebhookClient sets a custom HTTP client.
func WithWebhookClient(c *http.Client) WebhookOption {
	return func(w *Webhook) { w.client = c }
}

// WithWebhookLogger sets a custom logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = l }
}

// NewWebhook creates a Webhook sink targeting the given URL.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		backoff:    time.Second,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	w.Callback = NewCallback(w.post)
	return w
}

func (w *Webhook) post(ctx context.Context, call directive.Call) error {
	body, err := json.Marshal(envelope{Type: string(call.Op), Data: call})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}
	return postWithRetry(ctx, w.client, w.url, body, w.maxRetries, w.backoff, w.logger)
}

// postWithRetry POSTs a JSON body until a 2xx answer or the retry budget
// is spent.
func postWithRetry(ctx context.Context, client *http.Client, url string, body []byte,
	maxRetries int, backoff time.Duration, logger *slog.Logger) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("sink: new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			logger.Warn("sink: request failed", "url", url, "attempt", attempt+1, "error", err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("status %d", resp.StatusCode)
		logger.Warn("sink: bad status", "url", url, "attempt", attempt+1, "status", resp.StatusCode)
	}
	return fmt.Errorf("sink: all retries exhausted: %w", lastErr)
}
