package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-stock-orders/internal/orders"
)

type OrdersHandler struct {
	Orders *orders.OrderService
	Log    zerolog.Logger
}

type CreateOrderReq struct {
	UserID    *int64  `json:"userId"`
	ProductID *int64  `json:"productId"`
	Quantity  *int    `json:"quantity"`
	Status    *string `json:"status,omitempty"`
}

type UpdateOrderReq struct {
	UserID    *int64  `json:"userId,omitempty"`
	ProductID *int64  `json:"productId,omitempty"`
	Quantity  *int    `json:"quantity,omitempty"`
	Status    *string `json:"status,omitempty"`
	// TotalPrice is accepted by the decoder only to reject it with a clear message.
	TotalPrice json.RawMessage `json:"totalPrice,omitempty"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/orders", h.listOrders)
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Put("/orders/{id}", h.updateOrder)
	r.Delete("/orders/{id}", h.deleteOrder)
}

func (req CreateOrderReq) toInput() (orders.CreateOrderInput, error) {
	switch {
	case req.UserID == nil || *req.UserID < 1:
		return orders.CreateOrderInput{}, invalid("userId is required")
	case req.ProductID == nil || *req.ProductID < 1:
		return orders.CreateOrderInput{}, invalid("productId is required")
	case req.Quantity == nil:
		return orders.CreateOrderInput{}, invalid("quantity is required")
	case *req.Quantity < 1:
		return orders.CreateOrderInput{}, orders.ErrInvalidQuantity
	}
	in := orders.CreateOrderInput{UserID: *req.UserID, ProductID: *req.ProductID, Quantity: *req.Quantity}
	if req.Status != nil {
		st := orders.Status(*req.Status)
		if !st.Valid() {
			return orders.CreateOrderInput{}, orders.ErrInvalidStatus
		}
		in.Status = st
	}
	return in, nil
}

func (req UpdateOrderReq) toInput() (orders.UpdateOrderInput, error) {
	if len(req.TotalPrice) > 0 {
		return orders.UpdateOrderInput{}, invalid("totalPrice is derived from the product price and cannot be set")
	}
	if req.UserID != nil && *req.UserID < 1 {
		return orders.UpdateOrderInput{}, invalid("invalid userId")
	}
	if req.ProductID != nil && *req.ProductID < 1 {
		return orders.UpdateOrderInput{}, invalid("invalid productId")
	}
	if req.Quantity != nil && *req.Quantity < 1 {
		return orders.UpdateOrderInput{}, orders.ErrInvalidQuantity
	}
	in := orders.UpdateOrderInput{UserID: req.UserID, ProductID: req.ProductID, Quantity: req.Quantity}
	if req.Status != nil {
		st := orders.Status(*req.Status)
		if !st.Valid() {
			return orders.UpdateOrderInput{}, orders.ErrInvalidStatus
		}
		in.Status = &st
	}
	return in, nil
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	out, err := h.Orders.List(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOrders(out))
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	o, err := h.Orders.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOrder(o))
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	o, err := h.Orders.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOrder(o))
}

func (h *OrdersHandler) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	var req UpdateOrderReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	o, err := h.Orders.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOrder(o))
}

func (h *OrdersHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	o, err := h.Orders.Delete(r.Context(), id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOrder(o))
}
