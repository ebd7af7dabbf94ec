package shopclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/StockPilotApp/StockPilot/app/models"
)

// TransientError marks an infrastructure failure (network, rate limit,
// storefront 5xx) that is safe to retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient storefront error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a storefront rejection that retrying cannot fix.
type PermanentError struct {
	StatusCode int
	Message    string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("storefront rejected update (status %d): %s", e.StatusCode, e.Message)
}

// IsTransient reports whether err should be retried
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent reports whether err is a non-retryable storefront rejection
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Client is the outbound storefront API boundary. Implementations must
// classify failures as transient or permanent via the error types above.
type Client interface {
	SetInventoryLevel(ctx context.Context, store *models.Store, sku string, quantity int) error
}

// HTTPClient talks to a store's admin inventory API over HTTPS
type HTTPClient struct {
	httpClient *http.Client
}

// NewHTTPClient creates a storefront API client with a bounded timeout
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
	}
}

type setInventoryRequest struct {
	SKU       string `json:"sku"`
	Available int    `json:"available"`
}

// SetInventoryLevel sets the absolute quantity for a SKU on the store
func (c *HTTPClient) SetInventoryLevel(ctx context.Context, store *models.Store, sku string, quantity int) error {
	body, err := json.Marshal(setInventoryRequest{SKU: sku, Available: quantity})
	if err != nil {
		return fmt.Errorf("failed to marshal inventory request: %w", err)
	}

	url := fmt.Sprintf("https://%s/admin/api/inventory_levels/set.json", store.Domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build inventory request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Access-Token", store.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &TransientError{Err: fmt.Errorf("storefront %s returned status %d", store.Domain, resp.StatusCode)}
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &PermanentError{StatusCode: resp.StatusCode, Message: string(msg)}
	}
}
