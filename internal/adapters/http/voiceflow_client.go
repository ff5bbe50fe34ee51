package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Arseniidemydov/Relo-Radar-Dialer/pkg/logger"
	"go.uber.org/zap"
)

// VoiceflowClient talks to the Voiceflow general-runtime state API. It is only
// used for best-effort context priming before a voicemail drop; every failure
// here is logged and swallowed by the caller.
type VoiceflowClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewVoiceflowClient creates a new Voiceflow state API client
func NewVoiceflowClient(baseURL, apiKey string) *VoiceflowClient {
	return &VoiceflowClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Enabled reports whether an API key is configured
func (c *VoiceflowClient) Enabled() bool {
	return c.APIKey != ""
}

// UpdateUserVariables patches the per-user variable state for the given user.
// The user id is the outbound caller ID so the bot can look up who is calling.
func (c *VoiceflowClient) UpdateUserVariables(ctx context.Context, userID string, variables map[string]string) error {
	if !c.Enabled() {
		return fmt.Errorf("voiceflow api key not configured")
	}

	body, err := json.Marshal(variables)
	if err != nil {
		return fmt.Errorf("failed to marshal voiceflow variables: %w", err)
	}

	endpoint := fmt.Sprintf("%s/state/user/%s/variables", c.BaseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build voiceflow request: %w", err)
	}
	req.Header.Set("Authorization", c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("voiceflow state request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("voiceflow state request returned %d: %s", resp.StatusCode, string(respBody))
	}

	logger.Base().Info("voiceflow user variables primed",
		zap.String("user_id", userID),
		zap.Int("variables", len(variables)),
	)
	return nil
}
