package kafka

import (
	"context"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-stock-orders/internal/orders"
)

// OrderEventPublisher wraps order events in the v1 envelope and hands them
// to the producer.
type OrderEventPublisher struct {
	Producer *Producer
	Service  string
}

var _ orders.Publisher = (*OrderEventPublisher)(nil)

func (p *OrderEventPublisher) PublishOrderEvent(ctx context.Context, ev orders.OrderEvent) error {
	env := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     ev.Type,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      p.Service,
		TraceID:       middleware.GetReqID(ctx),
		CorrelationID: strconv.FormatInt(ev.Payload.OrderID, 10),
		Payload:       MustMarshal(ev.Payload),
	}
	return p.Producer.Publish(ctx, orders.PartitionKey(ev.Payload.OrderID), MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(ev.Type)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
