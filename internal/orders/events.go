package orders

import (
	"context"
	"encoding/json"
	"time"
)

const (
	EventOrderCreated = "OrderCreated"
	EventOrderUpdated = "OrderUpdated"
	EventOrderDeleted = "OrderDeleted"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// OrderEventPayload is the payload of every order event. CacheKeys lists the
// read-cache keys the producing operation invalidated.
type OrderEventPayload struct {
	OrderID   int64    `json:"order_id"`
	Order     Order    `json:"order"`
	CacheKeys []string `json:"cache_keys"`
}

type OrderEvent struct {
	Type    string
	Payload OrderEventPayload
}

// Publisher ships committed order events. Publishing is best effort: a
// failure is logged by the caller and never undoes the committed write.
type Publisher interface {
	PublishOrderEvent(ctx context.Context, ev OrderEvent) error
}
