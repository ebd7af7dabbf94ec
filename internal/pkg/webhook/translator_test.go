package webhook

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StockPilotApp/StockPilot/internal/pkg/jobqueue"
)

func TestTranslate_OrderCreate(t *testing.T) {
	evt := Event{
		EventID:    "evt-1",
		Topic:      TopicOrderCreate,
		ShopDomain: "alpha.example.com",
		Payload: json.RawMessage(`{
			"id": 450789469,
			"line_items": [
				{"sku": "SKU-1", "quantity": 2},
				{"sku": "SKU-2", "quantity": 1}
			]
		}`),
	}

	req, err := Translate(evt)
	require.NoError(t, err)

	assert.Equal(t, jobqueue.QueueWebhookProcessing, req.Queue)
	assert.Equal(t, jobqueue.JobTypeOrderCreated, req.Type)
	assert.Equal(t, "evt-1", req.Options.JobID, "the event id is the idempotency key")
	assert.Equal(t, jobqueue.PriorityOrderEvents, req.Options.Priority)

	payload, ok := req.Payload.(jobqueue.OrderPayload)
	require.True(t, ok)
	assert.Equal(t, "450789469", payload.OrderID)
	assert.Equal(t, "alpha.example.com", payload.ShopDomain)
	require.Len(t, payload.LineItems, 2)
	assert.Equal(t, "SKU-1", payload.LineItems[0].SKU)
	assert.Equal(t, 2, payload.LineItems[0].Quantity)
}

func TestTranslate_OrderCancelled(t *testing.T) {
	evt := Event{
		EventID:    "evt-2",
		Topic:      TopicOrderCancelled,
		ShopDomain: "alpha.example.com",
		Payload:    json.RawMessage(`{"id": 1, "line_items": [{"sku": "SKU-1", "quantity": 3}]}`),
	}

	req, err := Translate(evt)
	require.NoError(t, err)
	assert.Equal(t, jobqueue.JobTypeOrderCancelled, req.Type)
	assert.Equal(t, jobqueue.PriorityOrderEvents, req.Options.Priority)
}

func TestTranslate_RefundCarriesAllLineItems(t *testing.T) {
	evt := Event{
		EventID:    "evt-3",
		Topic:      TopicRefundCreate,
		ShopDomain: "alpha.example.com",
		Payload: json.RawMessage(`{
			"id": 7,
			"order_id": 450789469,
			"refund_line_items": [
				{"restock_type": "return", "quantity": 1, "line_item": {"sku": "SKU-1"}},
				{"restock_type": "no_restock", "quantity": 2, "line_item": {"sku": "SKU-2"}}
			]
		}`),
	}

	req, err := Translate(evt)
	require.NoError(t, err)
	assert.Equal(t, jobqueue.JobTypeRefundCreated, req.Type)
	assert.Equal(t, jobqueue.PriorityStockEvents, req.Options.Priority)

	payload, ok := req.Payload.(jobqueue.RefundPayload)
	require.True(t, ok)
	assert.Equal(t, "450789469", payload.OrderID)

	// no_restock lines travel with the job; the consumer filters them when
	// computing the delta
	require.Len(t, payload.LineItems, 2)
	assert.True(t, payload.LineItems[0].Restocks())
	assert.False(t, payload.LineItems[1].Restocks())
}

func TestTranslate_InventoryLevelUpdate(t *testing.T) {
	evt := Event{
		EventID:    "evt-4",
		Topic:      TopicInventoryLevelUpdate,
		ShopDomain: "beta.example.com",
		Payload:    json.RawMessage(`{"sku": "SKU-9", "available": 17}`),
	}

	req, err := Translate(evt)
	require.NoError(t, err)
	assert.Equal(t, jobqueue.JobTypeInventoryLevelUpdate, req.Type)

	payload, ok := req.Payload.(jobqueue.InventoryLevelPayload)
	require.True(t, ok)
	assert.Equal(t, "SKU-9", payload.SKU)
	assert.Equal(t, "beta.example.com", payload.ShopDomain)
	assert.Equal(t, 17, payload.Available)
}

func TestTranslate_UnknownTopic(t *testing.T) {
	evt := Event{
		EventID:    "evt-5",
		Topic:      "customers/create",
		ShopDomain: "alpha.example.com",
		Payload:    json.RawMessage(`{}`),
	}

	req, err := Translate(evt)
	assert.Nil(t, req)

	var unknown *ErrUnknownTopic
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "customers/create", unknown.Topic)
}

func TestTranslate_MissingEventID(t *testing.T) {
	evt := Event{
		Topic:      TopicOrderCreate,
		ShopDomain: "alpha.example.com",
		Payload:    json.RawMessage(`{"id": 1, "line_items": []}`),
	}

	_, err := Translate(evt)
	assert.Error(t, err)
}

func TestTranslate_MalformedPayload(t *testing.T) {
	evt := Event{
		EventID:    "evt-6",
		Topic:      TopicOrderCreate,
		ShopDomain: "alpha.example.com",
		Payload:    json.RawMessage(`{broken`),
	}

	_, err := Translate(evt)
	assert.Error(t, err)
}

func TestTranslate_InvalidRestockType(t *testing.T) {
	evt := Event{
		EventID:    "evt-7",
		Topic:      TopicRefundCreate,
		ShopDomain: "alpha.example.com",
		Payload: json.RawMessage(`{
			"id": 7,
			"order_id": 1,
			"refund_line_items": [
				{"restock_type": "maybe", "quantity": 1, "line_item": {"sku": "SKU-1"}}
			]
		}`),
	}

	_, err := Translate(evt)
	assert.Error(t, err)
}
