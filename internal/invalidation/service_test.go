package invalidation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-stock-orders/internal/cache"
	kafkax "github.com/ariefcatur/go-stock-orders/internal/kafka"
	"github.com/ariefcatur/go-stock-orders/internal/orders"
)

func envelope(t *testing.T, eventType string, p orders.OrderEventPayload) kafkago.Message {
	t.Helper()
	env := orders.Envelope{
		EventID:      "evt-1",
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     "order-api",
		Payload:      kafkax.MustMarshal(p),
	}
	return kafkago.Message{Key: orders.PartitionKey(p.OrderID), Value: kafkax.MustMarshal(env)}
}

func TestReplaysCarriedKeys(t *testing.T) {
	mem := cache.NewMemory()
	svc := &Service{Cache: cache.New(mem, time.Hour, zerolog.Nop()), Log: zerolog.Nop()}
	ctx := context.Background()
	for _, k := range []string{"order:7", "orders:all", "product:3", "product:4"} {
		require.NoError(t, mem.Set(ctx, k, []byte(`{}`), 0))
	}

	err := svc.HandleOrderEvent(ctx, envelope(t, orders.EventOrderUpdated, orders.OrderEventPayload{
		OrderID:   7,
		CacheKeys: []string{"order:7", "orders:all", "product:3"},
	}))
	require.NoError(t, err)

	assert.False(t, mem.Has("order:7"))
	assert.False(t, mem.Has("orders:all"))
	assert.False(t, mem.Has("product:3"))
	assert.True(t, mem.Has("product:4"))
}

func TestFallbackKeys(t *testing.T) {
	p := orders.OrderEventPayload{OrderID: 5, Order: orders.Order{ID: 5, ProductID: 2}}
	assert.ElementsMatch(t,
		[]string{"orders:all", "products:all", "product:2"},
		KeysFor(orders.EventOrderCreated, p))
	assert.ElementsMatch(t,
		[]string{"orders:all", "products:all", "product:2", "order:5"},
		KeysFor(orders.EventOrderDeleted, p))
}

func TestIgnoresUnknownEventsAndRejectsGarbage(t *testing.T) {
	svc := &Service{Cache: cache.New(cache.NewMemory(), time.Hour, zerolog.Nop()), Log: zerolog.Nop()}
	ctx := context.Background()

	assert.NoError(t, svc.HandleOrderEvent(ctx, envelope(t, "StockReserved", orders.OrderEventPayload{OrderID: 1})))
	err := svc.HandleOrderEvent(ctx, kafkago.Message{Value: []byte("{")})
	require.Error(t, err)
	assert.True(t, kafkax.IsPermanent(err))

	bad := kafkago.Message{Value: []byte(`{"event_type":"OrderCreated","payload":"nope"}`)}
	err = svc.HandleOrderEvent(ctx, bad)
	require.Error(t, err)
	assert.True(t, kafkax.IsPermanent(err))
}

type downStore struct{}

func (downStore) Get(context.Context, string) ([]byte, error)              { return nil, cache.ErrMiss }
func (downStore) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (downStore) Delete(context.Context, ...string) error {
	return errors.New("redis: connection refused")
}

func TestCacheOutageIsRetried(t *testing.T) {
	svc := &Service{Cache: cache.New(downStore{}, time.Hour, zerolog.Nop()), Log: zerolog.Nop()}

	err := svc.HandleOrderEvent(context.Background(), envelope(t, orders.EventOrderDeleted, orders.OrderEventPayload{
		OrderID:   3,
		CacheKeys: []string{"order:3"},
	}))
	require.Error(t, err)
	assert.ErrorIs(t, err, cache.ErrUnavailable)
	assert.False(t, kafkax.IsPermanent(err))
}
