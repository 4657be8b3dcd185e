package httpx

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ariefcatur/go-stock-orders/internal/orders"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{invalid("bad"), http.StatusBadRequest},
		{orders.ErrInvalidQuantity, http.StatusBadRequest},
		{orders.NotFound(orders.EntityProduct, 1), http.StatusNotFound},
		{&orders.InsufficientStockError{ProductID: 1, Requested: 2, Available: 1}, http.StatusConflict},
		{&orders.TransitionError{OrderID: 1, From: orders.StatusDelivered, To: orders.StatusPending}, http.StatusConflict},
		{orders.ErrProductInUse, http.StatusConflict},
		{&orders.AbortedError{Op: "create order", Err: context.DeadlineExceeded}, http.StatusServiceUnavailable},
		{orders.ErrTimeout, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}
