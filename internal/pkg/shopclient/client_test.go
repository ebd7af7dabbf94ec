package shopclient

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/StockPilotApp/StockPilot/app/models"
)

var testStore = models.Store{Domain: "store.invalid", AccessToken: "token"}

func TestErrorClassification(t *testing.T) {
	transient := &TransientError{Err: fmt.Errorf("connection reset")}
	permanent := &PermanentError{StatusCode: 422, Message: "unknown sku"}

	assert.True(t, IsTransient(transient))
	assert.False(t, IsPermanent(transient))

	assert.True(t, IsPermanent(permanent))
	assert.False(t, IsTransient(permanent))

	// Classification must survive wrapping
	wrapped := fmt.Errorf("sync failed: %w", permanent)
	assert.True(t, IsPermanent(wrapped))

	assert.False(t, IsTransient(errors.New("plain")))
	assert.False(t, IsPermanent(errors.New("plain")))
	assert.False(t, IsTransient(nil))
	assert.False(t, IsPermanent(nil))
}

func TestTransientError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := &TransientError{Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "timeout")
}

func TestPermanentError_Message(t *testing.T) {
	err := &PermanentError{StatusCode: 404, Message: "no such inventory item"}
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "no such inventory item")
}

func TestNewHTTPClient_TimeoutDefault(t *testing.T) {
	c := NewHTTPClient(0)
	assert.Equal(t, 10*time.Second, c.httpClient.Timeout)

	c = NewHTTPClient(3 * time.Second)
	assert.Equal(t, 3*time.Second, c.httpClient.Timeout)
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	c := NewHTTPClient(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.SetInventoryLevel(ctx, &testStore, "SKU-1", 5)
	assert.Error(t, err)
	assert.True(t, IsTransient(err), "request-level failures are transient")
}
