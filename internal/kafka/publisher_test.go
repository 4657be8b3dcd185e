package kafka

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-stock-orders/internal/orders"
)

func TestPublishOrderEventEnvelope(t *testing.T) {
	prod := NewProducer([]string{"localhost:9092"}, orders.TopicOrderEvents, 4, zerolog.Nop())
	pub := &OrderEventPublisher{Producer: prod, Service: "order-api"}
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")

	err := pub.PublishOrderEvent(ctx, orders.OrderEvent{
		Type: orders.EventOrderCreated,
		Payload: orders.OrderEventPayload{
			OrderID:   11,
			Order:     orders.Order{ID: 11, ProductID: 3, Quantity: 2, Status: orders.StatusPending},
			CacheKeys: []string{"orders:all", "product:3"},
		},
	})
	require.NoError(t, err)

	m := <-prod.inbox
	assert.Equal(t, "11", string(m.Key))
	require.Len(t, m.Headers, 2)
	assert.Equal(t, "x-event-type", m.Headers[0].Key)
	assert.Equal(t, orders.EventOrderCreated, string(m.Headers[0].Value))

	var env orders.Envelope
	require.NoError(t, json.Unmarshal(m.Value, &env))
	assert.Equal(t, orders.EventOrderCreated, env.EventType)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, "order-api", env.Producer)
	assert.Equal(t, "req-42", env.TraceID)
	assert.Equal(t, "11", env.CorrelationID)
	assert.NotEmpty(t, env.EventID)

	p, err := UnwrapPayload[orders.OrderEventPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, int64(11), p.OrderID)
	assert.Equal(t, []string{"orders:all", "product:3"}, p.CacheKeys)
}

func TestPublishAfterClose(t *testing.T) {
	prod := NewProducer([]string{"localhost:9092"}, orders.TopicOrderEvents, 1, zerolog.Nop())
	prod.Close()
	prod.Close()

	err := prod.Publish(context.Background(), []byte("k"), []byte("v"))
	assert.ErrorIs(t, err, ErrProducerClosed)
}

func TestPublishRespectsContextWhenInboxFull(t *testing.T) {
	prod := NewProducer([]string{"localhost:9092"}, orders.TopicOrderEvents, 1, zerolog.Nop())
	require.NoError(t, prod.Publish(context.Background(), []byte("k"), []byte("v1")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := prod.Publish(ctx, []byte("k"), []byte("v2"))
	assert.ErrorIs(t, err, context.Canceled)
}
