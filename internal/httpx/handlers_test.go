package httpx_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-stock-orders/internal/cache"
	"github.com/ariefcatur/go-stock-orders/internal/httpx"
	"github.com/ariefcatur/go-stock-orders/internal/memstore"
	"github.com/ariefcatur/go-stock-orders/internal/orders"
)

func newServer(t *testing.T) (*chi.Mux, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	store.AddUser(orders.User{Email: "alice@example.com", Name: "Alice"})
	store.AddProduct(orders.Product{Name: "Keyboard", Price: decimal.RequireFromString("5.00"), Stock: 10})

	log := zerolog.Nop()
	c := cache.New(cache.NewMemory(), time.Hour, log)
	r := httpx.NewRouter(log)
	(&httpx.OrdersHandler{Orders: &orders.OrderService{Store: store, Cache: c, Log: log}, Log: log}).Register(r)
	(&httpx.ProductsHandler{Products: &orders.ProductService{Store: store, Cache: c, Log: log}, Log: log}).Register(r)
	(&httpx.UsersHandler{Users: &orders.UserService{Store: store, Cache: c}, Log: log}).Register(r)
	return r, store
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	r, _ := newServer(t)
	rec := do(t, r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestOrderRoundTrip(t *testing.T) {
	r, _ := newServer(t)

	rec := do(t, r, http.MethodPost, "/orders", `{"userId":1,"productId":1,"quantity":3}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[orders.Order](t, rec)
	assert.Equal(t, orders.StatusPending, created.Status)
	assert.True(t, decimal.RequireFromString("15").Equal(created.TotalPrice))

	rec = do(t, r, http.MethodGet, "/orders/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[orders.Order](t, rec)
	require.NotNil(t, got.Product)
	assert.Equal(t, 7, got.Product.Stock)

	rec = do(t, r, http.MethodPut, "/orders/1", `{"quantity":5,"status":"CONFIRMED"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[orders.Order](t, rec)
	assert.Equal(t, 5, updated.Quantity)
	assert.Equal(t, orders.StatusConfirmed, updated.Status)

	rec = do(t, r, http.MethodGet, "/orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]orders.Order](t, rec), 1)

	rec = do(t, r, http.MethodDelete, "/orders/1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, http.MethodGet, "/products/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, decode[orders.Product](t, rec).Stock)
}

func TestMoneyRendersWithTwoDecimals(t *testing.T) {
	r, _ := newServer(t)

	rec := do(t, r, http.MethodPost, "/orders", `{"userId":1,"productId":1,"quantity":3}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"totalPrice":15.00`)
	assert.Contains(t, rec.Body.String(), `"price":5.00`)

	rec = do(t, r, http.MethodPost, "/products", `{"name":"Cable","price":"3.5"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"price":3.50`)
}

func TestOrderErrorStatuses(t *testing.T) {
	r, _ := newServer(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"bad json", http.MethodPost, "/orders", `{"userId":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/orders", `{"userId":1,"productId":1,"quantity":1,"coupon":"x"}`, http.StatusBadRequest},
		{"missing quantity", http.MethodPost, "/orders", `{"userId":1,"productId":1}`, http.StatusBadRequest},
		{"zero quantity", http.MethodPost, "/orders", `{"userId":1,"productId":1,"quantity":0}`, http.StatusBadRequest},
		{"bad status", http.MethodPost, "/orders", `{"userId":1,"productId":1,"quantity":1,"status":"LOST"}`, http.StatusBadRequest},
		{"unknown user", http.MethodPost, "/orders", `{"userId":9,"productId":1,"quantity":1}`, http.StatusNotFound},
		{"unknown product", http.MethodPost, "/orders", `{"userId":1,"productId":9,"quantity":1}`, http.StatusNotFound},
		{"insufficient stock", http.MethodPost, "/orders", `{"userId":1,"productId":1,"quantity":11}`, http.StatusConflict},
		{"bad id", http.MethodGet, "/orders/abc", "", http.StatusBadRequest},
		{"missing order", http.MethodGet, "/orders/42", "", http.StatusNotFound},
		{"missing order delete", http.MethodDelete, "/orders/42", "", http.StatusNotFound},
		{"total price is derived", http.MethodPut, "/orders/1", `{"totalPrice":1}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, r, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
		})
	}
}

func TestDeliveredTransitionConflict(t *testing.T) {
	r, _ := newServer(t)
	rec := do(t, r, http.MethodPost, "/orders", `{"userId":1,"productId":1,"quantity":1,"status":"DELIVERED"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, r, http.MethodPut, "/orders/1", `{"status":"PENDING"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestProductEndpoints(t *testing.T) {
	r, _ := newServer(t)

	rec := do(t, r, http.MethodPost, "/products", `{"name":"Mouse","price":"19.50","stock":3}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[orders.Product](t, rec)
	assert.Equal(t, int64(2), p.ID)

	rec = do(t, r, http.MethodPost, "/products", `{"name":"Mouse","price":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, r, http.MethodPost, "/products", `{"price":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPut, "/products/2", `{"stock":8}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 8, decode[orders.Product](t, rec).Stock)

	rec = do(t, r, http.MethodGet, "/products", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]orders.Product](t, rec), 2)

	rec = do(t, r, http.MethodPost, "/orders", `{"userId":1,"productId":2,"quantity":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, r, http.MethodDelete, "/products/2", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUserEndpoints(t *testing.T) {
	r, _ := newServer(t)

	rec := do(t, r, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]orders.User](t, rec), 1)

	rec = do(t, r, http.MethodGet, "/users/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice", decode[orders.User](t, rec).Name)

	rec = do(t, r, http.MethodGet, "/users/2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
