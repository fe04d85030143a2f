package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/noah-isme/backend-koperasi/internal/common"
	"github.com/noah-isme/backend-koperasi/internal/resilience"
)

// SignatureHeader is set on deliveries when a secret is configured.
const SignatureHeader = common.SignatureHeader

// WebhookSink posts alerts as JSON to a configured URL.
type WebhookSink struct {
	URL    string
	Secret string
	HTTP   resilience.HTTPClient
}

// Deliver implements AlertSink.
func (s WebhookSink) Deliver(ctx context.Context, alert LowStockAlert) error {
	if s.URL == "" {
		return errors.New("inventory: webhook url not configured")
	}
	headers := map[string]string{"X-Koperasi-Event": TaskTypeLowStock}
	if s.Secret != "" {
		body, err := json.Marshal(alert)
		if err != nil {
			return fmt.Errorf("encode alert: %w", err)
		}
		headers[SignatureHeader] = Sign(s.Secret, body)
	}
	resp, err := s.HTTP.PostJSON(ctx, s.URL, alert, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook responded %s", resp.Status)
	}
	return nil
}

// Sign returns the hex encoded HMAC-SHA256 of body.
func Sign(secret string, body []byte) string { return common.SignBody(secret, body) }
