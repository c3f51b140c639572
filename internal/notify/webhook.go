package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

// webhook request/response shapes for the push gateway.
type scheduleRequest struct {
	FireAt        time.Time `json:"fire_at"`
	Message       string    `json:"message"`
	CorrelationID string    `json:"correlation_id"`
}

type scheduleResponse struct {
	ID string `json:"id"`
}

// WebhookNotifier delivers schedule and cancel requests to an
// HTTP push gateway. Transient failures (5xx, network) are retried
// with exponential backoff up to maxRetries; notifications are
// best-effort so the cap is deliberate.
type WebhookNotifier struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	maxRetries uint64
	baseDelay  time.Duration
}

// NewWebhook creates a notifier against the gateway at baseURL.
func NewWebhook(baseURL, apiKey string, maxRetries uint64) *WebhookNotifier {
	return &WebhookNotifier{
		baseURL:    baseURL,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: 15 * time.Second},
		maxRetries: maxRetries,
		baseDelay:  500 * time.Millisecond,
	}
}

// ScheduleAt posts a delivery request and returns the gateway token.
func (n *WebhookNotifier) ScheduleAt(ctx context.Context, fireAt time.Time, message, correlationID string) (string, error) {
	body, err := json.Marshal(scheduleRequest{
		FireAt:        fireAt,
		Message:       message,
		CorrelationID: correlationID,
	})
	if err != nil {
		return "", fmt.Errorf("marshal schedule request: %w", err)
	}

	var token string
	err = retry.Do(ctx, n.backoff(), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			n.baseURL+"/v1/notifications", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		n.authorize(req)

		resp, err := n.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK:
			var sr scheduleResponse
			if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
				return fmt.Errorf("decode schedule response: %w", err)
			}
			token = sr.ID
			return nil
		case resp.StatusCode >= 500:
			io.Copy(io.Discard, resp.Body)
			return retry.RetryableError(fmt.Errorf("gateway returned %d", resp.StatusCode))
		default:
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("gateway rejected schedule: %d", resp.StatusCode)
		}
	})
	if err != nil {
		return "", err
	}

	return token, nil
}

// Cancel revokes a scheduled delivery. A 404 counts as success: the
// delivery is gone either way.
func (n *WebhookNotifier) Cancel(ctx context.Context, token string) error {
	return retry.Do(ctx, n.backoff(), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
			n.baseURL+"/v1/notifications/"+token, nil)
		if err != nil {
			return err
		}
		n.authorize(req)

		resp, err := n.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		switch {
		case resp.StatusCode == http.StatusNoContent,
			resp.StatusCode == http.StatusOK,
			resp.StatusCode == http.StatusNotFound:
			return nil
		case resp.StatusCode >= 500:
			return retry.RetryableError(fmt.Errorf("gateway returned %d", resp.StatusCode))
		default:
			return fmt.Errorf("gateway rejected cancel: %d", resp.StatusCode)
		}
	})
}

func (n *WebhookNotifier) backoff() retry.Backoff {
	return retry.WithMaxRetries(n.maxRetries, retry.NewExponential(n.baseDelay))
}

func (n *WebhookNotifier) authorize(req *http.Request) {
	if n.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.apiKey)
	}
}
