// Package events carries order lifecycle events to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
)

// Publisher delivers an event. key selects the partition, so events of
// one order stay in order.
type Publisher interface {
	Publish(ctx context.Context, key string, ev Envelope) error
}

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type ItemPayload struct {
	ProductID  int64           `json:"product_id"`
	FarmerID   int64           `json:"farmer_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	PricePerKg decimal.Decimal `json:"price_per_kg"`
	LineTotal  decimal.Decimal `json:"line_total"`
}

type OrderPlacedPayload struct {
	OrderID       int64           `json:"order_id"`
	OrderUUID     string          `json:"order_uuid"`
	BuyerID       int64           `json:"buyer_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentMethod string          `json:"payment_method"`
	Items         []ItemPayload   `json:"items"`
}

type OrderStatusChangedPayload struct {
	OrderID       int64  `json:"order_id"`
	OrderUUID     string `json:"order_uuid"`
	From          string `json:"from"`
	To            string `json:"to"`
	ActorID       int64  `json:"actor_id"`
	StockRestored bool   `json:"stock_restored,omitempty"`
}

// New wraps payload in a version-1 envelope.
func New(producer, eventType, correlationID string, at time.Time, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    at.UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

// UnwrapPayload decodes an envelope's payload into T.
func UnwrapPayload[T any](ev Envelope) (T, error) {
	var t T
	err := json.Unmarshal(ev.Payload, &t)
	return t, err
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, string, Envelope) error { return nil }
