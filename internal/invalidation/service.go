// Package invalidation replays the cache invalidations carried by order
// events, evicting entries a concurrent reader may have repopulated between
// a commit and its synchronous invalidation.
package invalidation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-stock-orders/internal/cache"
	kafkax "github.com/ariefcatur/go-stock-orders/internal/kafka"
	"github.com/ariefcatur/go-stock-orders/internal/metrics"
	"github.com/ariefcatur/go-stock-orders/internal/orders"
)

type Service struct {
	Cache *cache.Cache
	Log   zerolog.Logger
}

// HandleOrderEvent is installed as the consumer handler. Undecodable events
// are permanent failures; a cache outage is returned as is so the consumer
// retries the event.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		metrics.EventsReplayed.WithLabelValues("unknown", metrics.OutcomeFail).Inc()
		return kafkax.Permanent(fmt.Errorf("decode envelope: %w", err))
	}
	switch env.EventType {
	case orders.EventOrderCreated, orders.EventOrderUpdated, orders.EventOrderDeleted:
	default:
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderEventPayload](env.Payload)
	if err != nil {
		metrics.EventsReplayed.WithLabelValues(env.EventType, metrics.OutcomeFail).Inc()
		return kafkax.Permanent(err)
	}

	keys := KeysFor(env.EventType, p)
	if err := s.Cache.Invalidate(ctx, keys...); err != nil {
		metrics.EventsReplayed.WithLabelValues(env.EventType, metrics.OutcomeFail).Inc()
		return err
	}
	metrics.EventsReplayed.WithLabelValues(env.EventType, metrics.OutcomeOK).Inc()
	s.Log.Debug().
		Str("event_id", env.EventID).
		Str("event_type", env.EventType).
		Int64("order_id", p.OrderID).
		Strs("keys", keys).
		Msg("replayed invalidation")
	return nil
}

// KeysFor returns the keys carried by the event, or the keys any order
// mutation touches when the producer sent none.
func KeysFor(eventType string, p orders.OrderEventPayload) []string {
	if len(p.CacheKeys) > 0 {
		return p.CacheKeys
	}
	keys := []string{cache.KeyOrdersAll, cache.KeyProductsAll, cache.ProductKey(p.Order.ProductID)}
	if eventType != orders.EventOrderCreated {
		keys = append(keys, cache.OrderKey(p.OrderID))
	}
	return keys
}
