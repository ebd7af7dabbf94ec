package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/StockPilotApp/StockPilot/internal/pkg/jobqueue"
)

// Commerce topics handled by the translator
const (
	TopicOrderCreate          = "orders/create"
	TopicOrderCancelled       = "orders/cancelled"
	TopicRefundCreate         = "refunds/create"
	TopicInventoryLevelUpdate = "inventory_levels/update"
)

// Event is one inbound webhook delivery after upstream signature
// verification.
type Event struct {
	EventID    string          `json:"event_id"`
	Topic      string          `json:"topic"`
	ShopDomain string          `json:"shop_domain"`
	Payload    json.RawMessage `json:"payload"`
}

// ErrUnknownTopic marks a topic the engine has no translation for
type ErrUnknownTopic struct {
	Topic string
}

func (e *ErrUnknownTopic) Error() string {
	return fmt.Sprintf("no job translation for webhook topic %q", e.Topic)
}

var validate = validator.New()

// Raw commerce payload shapes as delivered on the wire

type rawLineItem struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

type rawOrder struct {
	ID        json.Number   `json:"id"`
	LineItems []rawLineItem `json:"line_items"`
}

type rawRefundLineItem struct {
	RestockType string      `json:"restock_type"`
	Quantity    int         `json:"quantity"`
	LineItem    rawLineItem `json:"line_item"`
}

type rawRefund struct {
	ID              json.Number         `json:"id"`
	OrderID         json.Number         `json:"order_id"`
	RefundLineItems []rawRefundLineItem `json:"refund_line_items"`
}

type rawInventoryLevel struct {
	SKU       string `json:"sku"`
	Available int    `json:"available"`
}

// Translate maps one commerce event to its typed job request. The job id is
// the webhook event id, which enforces the enqueue-level idempotency
// invariant: duplicate deliveries collapse onto one job.
func Translate(evt Event) (*jobqueue.JobRequest, error) {
	if evt.EventID == "" {
		return nil, fmt.Errorf("webhook event for topic %q has no event id", evt.Topic)
	}

	switch evt.Topic {
	case TopicOrderCreate:
		return translateOrder(evt, jobqueue.JobTypeOrderCreated)
	case TopicOrderCancelled:
		return translateOrder(evt, jobqueue.JobTypeOrderCancelled)
	case TopicRefundCreate:
		return translateRefund(evt)
	case TopicInventoryLevelUpdate:
		return translateInventoryLevel(evt)
	}
	return nil, &ErrUnknownTopic{Topic: evt.Topic}
}

// translateOrder handles orders/create (consumer decreases inventory per
// line item) and orders/cancelled (consumer restores it). The full line-item
// list travels with the job so the consumer needs no second fetch.
func translateOrder(evt Event, jobType jobqueue.JobType) (*jobqueue.JobRequest, error) {
	var raw rawOrder
	if err := json.Unmarshal(evt.Payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", evt.Topic, err)
	}

	payload := jobqueue.OrderPayload{
		OrderID:    raw.ID.String(),
		ShopDomain: evt.ShopDomain,
		LineItems:  make([]jobqueue.OrderLineItem, 0, len(raw.LineItems)),
	}
	for _, li := range raw.LineItems {
		payload.LineItems = append(payload.LineItems, jobqueue.OrderLineItem{
			SKU:      li.SKU,
			Quantity: li.Quantity,
		})
	}

	if err := validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", evt.Topic, err)
	}

	return &jobqueue.JobRequest{
		Queue:   jobqueue.QueueWebhookProcessing,
		Type:    jobType,
		Payload: payload,
		Options: jobqueue.EnqueueOptions{
			JobID:    evt.EventID,
			Priority: jobqueue.PriorityOrderEvents,
		},
	}, nil
}

// translateRefund carries every refund line item, including its restock
// type. The delta computation downstream restores inventory only for
// return/cancel lines; no_restock lines must contribute nothing.
func translateRefund(evt Event) (*jobqueue.JobRequest, error) {
	var raw rawRefund
	if err := json.Unmarshal(evt.Payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", evt.Topic, err)
	}

	payload := jobqueue.RefundPayload{
		OrderID:    raw.OrderID.String(),
		ShopDomain: evt.ShopDomain,
		LineItems:  make([]jobqueue.RefundLineItem, 0, len(raw.RefundLineItems)),
	}
	for _, li := range raw.RefundLineItems {
		payload.LineItems = append(payload.LineItems, jobqueue.RefundLineItem{
			SKU:         li.LineItem.SKU,
			Quantity:    li.Quantity,
			RestockType: li.RestockType,
		})
	}

	if err := validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", evt.Topic, err)
	}

	return &jobqueue.JobRequest{
		Queue:   jobqueue.QueueWebhookProcessing,
		Type:    jobqueue.JobTypeRefundCreated,
		Payload: payload,
		Options: jobqueue.EnqueueOptions{
			JobID:    evt.EventID,
			Priority: jobqueue.PriorityStockEvents,
		},
	}, nil
}

// translateInventoryLevel handles an external admin-originated change to a
// store's inventory level.
func translateInventoryLevel(evt Event) (*jobqueue.JobRequest, error) {
	var raw rawInventoryLevel
	if err := json.Unmarshal(evt.Payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", evt.Topic, err)
	}

	payload := jobqueue.InventoryLevelPayload{
		SKU:        raw.SKU,
		ShopDomain: evt.ShopDomain,
		Available:  raw.Available,
	}

	if err := validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", evt.Topic, err)
	}

	return &jobqueue.JobRequest{
		Queue:   jobqueue.QueueWebhookProcessing,
		Type:    jobqueue.JobTypeInventoryLevelUpdate,
		Payload: payload,
		Options: jobqueue.EnqueueOptions{
			JobID:    evt.EventID,
			Priority: jobqueue.PriorityStockEvents,
		},
	}, nil
}
