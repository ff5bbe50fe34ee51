package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Arseniidemydov/Relo-Radar-Dialer/internal/domain"
	"github.com/Arseniidemydov/Relo-Radar-Dialer/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AutomationClient delivers transfer-leg notifications to the downstream
// automation webhook. Fire-and-forget: no retries, failures are logged only.
type AutomationClient struct {
	WebhookURL string
	HTTPClient *http.Client

	// Twilio can replay status callbacks in bursts; keep the downstream sane.
	limiter *rate.Limiter
}

// NewAutomationClient creates a new automation webhook client
func NewAutomationClient(webhookURL string) *AutomationClient {
	return &AutomationClient{
		WebhookURL: webhookURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

// Enabled reports whether a webhook URL is configured
func (c *AutomationClient) Enabled() bool {
	return c.WebhookURL != ""
}

// NotifyTransferLeg posts {transferLegId, calleePhone} to the automation webhook
func (c *AutomationClient) NotifyTransferLeg(ctx context.Context, notification domain.TransferNotification) error {
	if !c.Enabled() {
		return fmt.Errorf("automation webhook url not configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notification rate limit wait aborted: %w", err)
	}

	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal transfer notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("automation webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("automation webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	logger.Base().Info("transfer leg notification delivered",
		zap.String("transfer_leg_id", notification.TransferLegID),
		zap.String("callee_phone", notification.CalleePhone),
	)
	return nil
}
