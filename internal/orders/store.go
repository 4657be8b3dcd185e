package orders

import "context"

// Queries are the point and collection reads shared by Store and Tx.
// Missing rows come back as *NotFoundError.
type Queries interface {
	GetUser(ctx context.Context, id int64) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	// GetOrder and ListOrders fill in Order.User and Order.Product.
	GetOrder(ctx context.Context, id int64) (Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
}

// Tx is the transactional handle handed to a unit of work.
type Tx interface {
	Queries

	// LockOrder reads the order like GetOrder and holds it against concurrent
	// writers until the transaction ends.
	LockOrder(ctx context.Context, id int64) (Order, error)
	InsertOrder(ctx context.Context, o Order) (Order, error)
	UpdateOrder(ctx context.Context, o Order) (Order, error)
	DeleteOrder(ctx context.Context, id int64) error

	// AdjustStock adds delta (possibly negative) to the product's stock as one
	// atomic check-and-set. A result below zero fails with
	// *InsufficientStockError and leaves the row untouched.
	AdjustStock(ctx context.Context, productID int64, delta int) (Product, error)
	// LockProduct reads the product and holds its row until the transaction
	// ends, so a read-modify-write of the row cannot lose a concurrent
	// AdjustStock.
	LockProduct(ctx context.Context, id int64) (Product, error)
	InsertProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, p Product) (Product, error)
	// DeleteProduct fails with ErrProductInUse while orders reference the product.
	DeleteProduct(ctx context.Context, id int64) error
}

type Store interface {
	Queries

	// WithinTx runs fn inside one transaction: commit when fn returns nil,
	// roll back otherwise. fn's error is returned unchanged.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// InTx is WithinTx for units of work that produce a value. The zero value is
// returned alongside any error.
func InTx[T any](ctx context.Context, st Store, fn func(tx Tx) (T, error)) (T, error) {
	var out T
	err := st.WithinTx(ctx, func(tx Tx) error {
		v, err := fn(tx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
