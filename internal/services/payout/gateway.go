package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/starbank/backend/internal/config"
)

// Gateway delivers funds externally for a settled withdrawal. A timeout is
// treated identically to any other delivery failure.
type Gateway interface {
	Payout(ctx context.Context, userID, amount int64, reference string) error
}

// HTTPGateway calls the payout collaborator over HTTP with a bounded timeout.
type HTTPGateway struct {
	cfg    config.PayoutConfig
	client *http.Client
}

// NewHTTPGateway creates a new HTTP payout gateway
func NewHTTPGateway(cfg config.PayoutConfig) *HTTPGateway {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type payoutRequest struct {
	UserID    int64  `json:"user_id"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

// Payout attempts to deliver amount to the user through the configured
// collaborator endpoint.
func (g *HTTPGateway) Payout(ctx context.Context, userID, amount int64, reference string) error {
	if g.cfg.URL == "" {
		return fmt.Errorf("payout gateway URL is not configured")
	}

	body, err := json.Marshal(payoutRequest{
		UserID:    userID,
		Amount:    amount,
		Reference: reference,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create payout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("payout call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("payout gateway returned status %d", resp.StatusCode)
	}
	return nil
}
