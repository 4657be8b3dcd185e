package httpx

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-stock-orders/internal/orders"
)

// amount renders money as a JSON number with two decimals (15.00).
type amount decimal.Decimal

func (a amount) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(a).StringFixed(2)), nil
}

type productView struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Price       amount    `json:"price"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type orderView struct {
	ID         int64         `json:"id"`
	UserID     int64         `json:"userId"`
	ProductID  int64         `json:"productId"`
	Quantity   int           `json:"quantity"`
	TotalPrice amount        `json:"totalPrice"`
	Status     orders.Status `json:"status"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`

	User    *orders.User `json:"user,omitempty"`
	Product *productView `json:"product,omitempty"`
}

func viewProduct(p orders.Product) productView {
	return productView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       amount(p.Price),
		Stock:       p.Stock,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func viewProducts(ps []orders.Product) []productView {
	out := make([]productView, 0, len(ps))
	for _, p := range ps {
		out = append(out, viewProduct(p))
	}
	return out
}

func viewOrder(o orders.Order) orderView {
	v := orderView{
		ID:         o.ID,
		UserID:     o.UserID,
		ProductID:  o.ProductID,
		Quantity:   o.Quantity,
		TotalPrice: amount(o.TotalPrice),
		Status:     o.Status,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
		User:       o.User,
	}
	if o.Product != nil {
		p := viewProduct(*o.Product)
		v.Product = &p
	}
	return v
}

func viewOrders(list []orders.Order) []orderView {
	out := make([]orderView, 0, len(list))
	for _, o := range list {
		out = append(out, viewOrder(o))
	}
	return out
}
