package orders

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-stock-orders/internal/cache"
	"github.com/ariefcatur/go-stock-orders/internal/metrics"
)

// OrderService owns the order/stock protocol: every mutation is one store
// transaction, followed by cache invalidation and an order event once it
// has committed.
type OrderService struct {
	Store   Store
	Cache   *cache.Cache
	Events  Publisher // optional
	Log     zerolog.Logger
	Timeout time.Duration // per operation, on top of the caller's deadline
}

func (s *OrderService) Get(ctx context.Context, id int64) (Order, error) {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	o, err := cache.GetOrPopulate(ctx, s.Cache, cache.OrderKey(id), 0, func(ctx context.Context) (Order, error) {
		return s.Store.GetOrder(ctx, id)
	})
	return o, classify("get order", err)
}

func (s *OrderService) List(ctx context.Context) ([]Order, error) {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	out, err := cache.GetOrPopulate(ctx, s.Cache, cache.KeyOrdersAll, 0, func(ctx context.Context) ([]Order, error) {
		return s.Store.ListOrders(ctx)
	})
	return out, classify("list orders", err)
}

// Create reserves in.Quantity units of the product and records the order
// priced at the product's current price.
func (s *OrderService) Create(ctx context.Context, in CreateOrderInput) (Order, error) {
	status := in.Status
	if status == "" {
		status = StatusPending
	}
	if !status.Valid() {
		return Order{}, ErrInvalidStatus
	}
	if in.Quantity < 1 {
		return Order{}, ErrInvalidQuantity
	}

	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	created, err := InTx(ctx, s.Store, func(tx Tx) (Order, error) {
		if _, err := tx.GetUser(ctx, in.UserID); err != nil {
			return Order{}, err
		}
		p, err := tx.GetProduct(ctx, in.ProductID)
		if err != nil {
			return Order{}, err
		}
		if p.Stock < in.Quantity {
			return Order{}, &InsufficientStockError{ProductID: p.ID, Requested: in.Quantity, Available: p.Stock}
		}
		// the conditional decrement re-checks against writers that committed after the read
		if _, err := tx.AdjustStock(ctx, p.ID, -in.Quantity); err != nil {
			return Order{}, err
		}
		o, err := tx.InsertOrder(ctx, Order{
			UserID:     in.UserID,
			ProductID:  p.ID,
			Quantity:   in.Quantity,
			TotalPrice: LineTotal(p.Price, in.Quantity),
			Status:     status,
		})
		if err != nil {
			return Order{}, err
		}
		return tx.GetOrder(ctx, o.ID)
	})
	metrics.ObserveOp("order_create", err)
	if err != nil {
		return Order{}, classify("create order", err)
	}

	keys := []string{cache.KeyOrdersAll, cache.ProductKey(created.ProductID), cache.KeyProductsAll}
	s.afterCommit(ctx, EventOrderCreated, created, keys)
	return created, nil
}

// Update applies the set fields of in. Setting product or quantity, even to
// the current value, moves the reservation and reprices the order: the
// original units go back to the original product and the target quantity is
// taken from the target product at its current price, all in one transaction.
func (s *OrderService) Update(ctx context.Context, id int64, in UpdateOrderInput) (Order, error) {
	if in.Status != nil && !in.Status.Valid() {
		return Order{}, ErrInvalidStatus
	}
	if in.Quantity != nil && *in.Quantity < 1 {
		return Order{}, ErrInvalidQuantity
	}

	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	var before Order
	updated, err := InTx(ctx, s.Store, func(tx Tx) (Order, error) {
		cur, err := tx.LockOrder(ctx, id)
		if err != nil {
			return Order{}, err
		}
		before = cur

		next := cur
		next.User, next.Product = nil, nil
		if in.Status != nil {
			if !CanTransition(cur.Status, *in.Status) {
				return Order{}, &TransitionError{OrderID: id, From: cur.Status, To: *in.Status}
			}
			next.Status = *in.Status
		}
		if in.UserID != nil && *in.UserID != cur.UserID {
			if _, err := tx.GetUser(ctx, *in.UserID); err != nil {
				return Order{}, err
			}
			next.UserID = *in.UserID
		}
		if in.ProductID != nil {
			next.ProductID = *in.ProductID
		}
		if in.Quantity != nil {
			next.Quantity = *in.Quantity
		}

		if in.rebalances() {
			if !cur.Status.HoldsStock() {
				return Order{}, &TransitionError{OrderID: id, From: cur.Status, To: cur.Status}
			}
			if _, err := tx.AdjustStock(ctx, cur.ProductID, cur.Quantity); err != nil {
				return Order{}, err
			}
			target, err := tx.GetProduct(ctx, next.ProductID)
			if err != nil {
				return Order{}, err
			}
			if target.Stock < next.Quantity {
				return Order{}, &InsufficientStockError{ProductID: target.ID, Requested: next.Quantity, Available: target.Stock}
			}
			if _, err := tx.AdjustStock(ctx, target.ID, -next.Quantity); err != nil {
				return Order{}, err
			}
			next.TotalPrice = LineTotal(target.Price, next.Quantity)
		}

		if _, err := tx.UpdateOrder(ctx, next); err != nil {
			return Order{}, err
		}
		return tx.GetOrder(ctx, id)
	})
	metrics.ObserveOp("order_update", err)
	if err != nil {
		return Order{}, classify("update order", err)
	}

	keys := []string{cache.OrderKey(id), cache.KeyOrdersAll, cache.ProductKey(before.ProductID)}
	if updated.ProductID != before.ProductID {
		keys = append(keys, cache.ProductKey(updated.ProductID))
	}
	if in.rebalances() {
		keys = append(keys, cache.KeyProductsAll)
	}
	s.afterCommit(ctx, EventOrderUpdated, updated, keys)
	return updated, nil
}

// Delete removes the order. Units of a non-DELIVERED order go back to stock
// in the same transaction; a DELIVERED order's units stay consumed.
func (s *OrderService) Delete(ctx context.Context, id int64) (Order, error) {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	deleted, err := InTx(ctx, s.Store, func(tx Tx) (Order, error) {
		cur, err := tx.LockOrder(ctx, id)
		if err != nil {
			return Order{}, err
		}
		if cur.Status.HoldsStock() {
			if _, err := tx.AdjustStock(ctx, cur.ProductID, cur.Quantity); err != nil {
				return Order{}, err
			}
		}
		if err := tx.DeleteOrder(ctx, id); err != nil {
			return Order{}, err
		}
		return cur, nil
	})
	metrics.ObserveOp("order_delete", err)
	if err != nil {
		return Order{}, classify("delete order", err)
	}

	keys := []string{cache.OrderKey(id), cache.KeyOrdersAll, cache.ProductKey(deleted.ProductID)}
	if deleted.Status.HoldsStock() {
		keys = append(keys, cache.KeyProductsAll)
	}
	s.afterCommit(ctx, EventOrderDeleted, deleted, keys)
	return deleted, nil
}

func (s *OrderService) afterCommit(ctx context.Context, eventType string, o Order, keys []string) {
	invalidate(ctx, s.Cache, keys...)

	if s.Events == nil {
		return
	}
	ev := OrderEvent{Type: eventType, Payload: OrderEventPayload{OrderID: o.ID, Order: o, CacheKeys: keys}}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), afterCommitTimeout)
	defer cancel()
	if err := s.Events.PublishOrderEvent(pctx, ev); err != nil {
		s.Log.Warn().Err(err).Str("event_type", eventType).Int64("order_id", o.ID).Msg("publish order event")
	}
}
