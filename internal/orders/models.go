package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Order is the persisted order row. User and Product are filled in on reads
// (GetOrder/ListOrders/LockOrder) and ignored on writes.
type Order struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"userId"`
	ProductID  int64           `json:"productId"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Status     Status          `json:"status"` // see status.go
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`

	User    *User    `json:"user,omitempty"`
	Product *Product `json:"product,omitempty"`
}

// LineTotal is price × quantity.
func LineTotal(price decimal.Decimal, qty int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(qty)))
}

type CreateOrderInput struct {
	UserID    int64
	ProductID int64
	Quantity  int
	Status    Status // empty means PENDING
}

// UpdateOrderInput carries only the fields the caller wants to change.
type UpdateOrderInput struct {
	UserID    *int64
	ProductID *int64
	Quantity  *int
	Status    *Status
}

// rebalances reports whether the update touches the stock reservation and
// therefore the price.
func (in UpdateOrderInput) rebalances() bool {
	return in.ProductID != nil || in.Quantity != nil
}

type CreateProductInput struct {
	Name        string
	Description *string
	Price       decimal.Decimal
	Stock       int
}

type UpdateProductInput struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
}
