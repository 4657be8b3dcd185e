package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-stock-orders/internal/orders"
)

func seeded(t *testing.T) (*Store, orders.User, orders.Product) {
	t.Helper()
	s := New()
	u := s.AddUser(orders.User{Email: "u@example.com"})
	p := s.AddProduct(orders.Product{Name: "p", Price: decimal.NewFromInt(3), Stock: 5})
	return s, u, p
}

func TestAdjustStockRejectsNegative(t *testing.T) {
	s, _, p := seeded(t)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(tx orders.Tx) error {
		_, err := tx.AdjustStock(ctx, p.ID, -6)
		return err
	})
	var is *orders.InsufficientStockError
	require.ErrorAs(t, err, &is)
	assert.Equal(t, 6, is.Requested)
	assert.Equal(t, 5, is.Available)

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)
}

func TestRollbackRestoresSnapshot(t *testing.T) {
	s, u, p := seeded(t)
	ctx := context.Background()
	abort := errors.New("abort")

	err := s.WithinTx(ctx, func(tx orders.Tx) error {
		if _, err := tx.AdjustStock(ctx, p.ID, -2); err != nil {
			return err
		}
		if _, err := tx.InsertOrder(ctx, orders.Order{UserID: u.ID, ProductID: p.ID, Quantity: 2, Status: orders.StatusPending}); err != nil {
			return err
		}
		return abort
	})
	assert.ErrorIs(t, err, abort)

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)
	all, err := s.ListOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	// ids handed out inside the aborted transaction are reused
	var id int64
	require.NoError(t, s.WithinTx(ctx, func(tx orders.Tx) error {
		o, err := tx.InsertOrder(ctx, orders.Order{UserID: u.ID, ProductID: p.ID, Quantity: 1, Status: orders.StatusPending})
		id = o.ID
		return err
	}))
	assert.Equal(t, int64(1), id)
}

func TestOrderReadsCarryRelations(t *testing.T) {
	s, u, p := seeded(t)
	ctx := context.Background()
	require.NoError(t, s.WithinTx(ctx, func(tx orders.Tx) error {
		_, err := tx.InsertOrder(ctx, orders.Order{UserID: u.ID, ProductID: p.ID, Quantity: 1, Status: orders.StatusPending})
		return err
	}))

	o, err := s.GetOrder(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, o.User)
	require.NotNil(t, o.Product)
	assert.Equal(t, u.Email, o.User.Email)
	assert.Equal(t, p.Name, o.Product.Name)
}

func TestForeignKeysEnforced(t *testing.T) {
	s, u, p := seeded(t)
	ctx := context.Background()
	var nf *orders.NotFoundError

	err := s.WithinTx(ctx, func(tx orders.Tx) error {
		_, err := tx.InsertOrder(ctx, orders.Order{UserID: 42, ProductID: p.ID, Quantity: 1})
		return err
	})
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, orders.EntityUser, nf.Entity)

	require.NoError(t, s.WithinTx(ctx, func(tx orders.Tx) error {
		_, err := tx.InsertOrder(ctx, orders.Order{UserID: u.ID, ProductID: p.ID, Quantity: 1})
		return err
	}))
	err = s.WithinTx(ctx, func(tx orders.Tx) error { return tx.DeleteProduct(ctx, p.ID) })
	assert.ErrorIs(t, err, orders.ErrProductInUse)
}

func TestExpiredContextFailsCommit(t *testing.T) {
	s, _, p := seeded(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := s.WithinTx(ctx, func(tx orders.Tx) error {
		_, err := tx.AdjustStock(ctx, p.ID, -1)
		cancel()
		return err
	})
	assert.ErrorIs(t, err, context.Canceled)

	got, err := s.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)
}

func TestProductWritesRejectNegativeValues(t *testing.T) {
	s, _, p := seeded(t)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(tx orders.Tx) error {
		_, err := tx.InsertProduct(ctx, orders.Product{Name: "bad", Price: decimal.NewFromInt(-1)})
		return err
	})
	assert.ErrorIs(t, err, orders.ErrInvalidProduct)

	err = s.WithinTx(ctx, func(tx orders.Tx) error {
		p.Stock = -1
		_, err := tx.UpdateProduct(ctx, p)
		return err
	})
	assert.ErrorIs(t, err, orders.ErrInvalidProduct)
}
