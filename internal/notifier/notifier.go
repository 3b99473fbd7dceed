// Package notifier signals the scorecard computation service that new data
// is available for a user. Delivery is best-effort: the receiving side is
// idempotent and recomputation can always be triggered independently, so a
// failure here never changes an import's completed status.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vitalsync/healthimport/internal/config"
	"github.com/vitalsync/healthimport/internal/util"
)

const secretHeader = "X-Internal-Token"

var retryDelays = []time.Duration{time.Second, 3 * time.Second, 9 * time.Second}

// Notifier posts recompute requests to the scorecard service.
type Notifier struct {
	client  *http.Client
	baseURL string
	secret  string
}

// New builds a notifier. A notifier with an empty base URL is valid and
// turns Notify into a no-op, for deployments without a scorecard service.
func New(cfg config.ScorecardConfig) *Notifier {
	return &Notifier{
		client:  util.DefaultHTTPClient(),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		secret:  cfg.Secret,
	}
}

// Notify tells the scorecard service to recompute for userID. Server-side
// and network errors are retried with increasing delays; client-side
// rejections are not, since repeating an invalid request cannot succeed.
// The returned error is informational; callers log and swallow it.
func (n *Notifier) Notify(ctx context.Context, logger *slog.Logger, userID string) error {
	if n.baseURL == "" {
		logger.Debug("Scorecard base URL not configured, skipping notification.")
		return nil
	}

	payload, err := json.Marshal(map[string]string{"user_id": userID})
	if err != nil {
		return fmt.Errorf("marshal recompute payload: %w", err)
	}
	url := n.baseURL + "/internal/scorecards/recompute"

	var lastErr error
	for attempt := 0; attempt <= len(retryDelays); attempt++ {
		if attempt > 0 {
			delay := retryDelays[attempt-1]
			logger.Warn("Retrying scorecard notification.",
				slog.Int("attempt", attempt+1), slog.Duration("delay", delay), "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = n.post(ctx, url, payload)
		if lastErr == nil {
			logger.Info("Scorecard recompute notified.", slog.String("user_id", userID))
			return nil
		}
		var cr *clientRejection
		if errors.As(lastErr, &cr) {
			logger.Warn("Scorecard service rejected notification, not retrying.", "error", lastErr)
			return lastErr
		}
	}
	return fmt.Errorf("scorecard notification exhausted retries: %w", lastErr)
}

// clientRejection marks a 4xx response, which is never retried.
type clientRejection struct {
	status int
	body   string
}

func (e *clientRejection) Error() string {
	return fmt.Sprintf("scorecard service rejected request: status %d: %s", e.status, e.body)
}

func (n *Notifier) post(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build recompute request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(secretHeader, n.secret)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &clientRejection{status: resp.StatusCode, body: string(body)}
	}
	return fmt.Errorf("bad status '%s' from %s: %s", resp.Status, url, string(body))
}
