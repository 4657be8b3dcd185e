package httpx

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-stock-orders/internal/orders"
)

type ProductsHandler struct {
	Products *orders.ProductService
	Log      zerolog.Logger
}

type CreateProductReq struct {
	Name        string           `json:"name"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock,omitempty"`
}

type UpdateProductReq struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Stock       *int             `json:"stock,omitempty"`
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Get("/products/{id}", h.getProduct)
	r.Put("/products/{id}", h.updateProduct)
	r.Delete("/products/{id}", h.deleteProduct)
}

func (req CreateProductReq) toInput() (orders.CreateProductInput, error) {
	if strings.TrimSpace(req.Name) == "" {
		return orders.CreateProductInput{}, invalid("name is required")
	}
	if req.Price == nil {
		return orders.CreateProductInput{}, invalid("price is required")
	}
	in := orders.CreateProductInput{Name: req.Name, Description: req.Description, Price: *req.Price}
	if req.Stock != nil {
		in.Stock = *req.Stock
	}
	if in.Price.IsNegative() || in.Stock < 0 {
		return orders.CreateProductInput{}, orders.ErrInvalidProduct
	}
	return in, nil
}

func (req UpdateProductReq) toInput() (orders.UpdateProductInput, error) {
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return orders.UpdateProductInput{}, invalid("name cannot be empty")
	}
	if (req.Price != nil && req.Price.IsNegative()) || (req.Stock != nil && *req.Stock < 0) {
		return orders.UpdateProductInput{}, orders.ErrInvalidProduct
	}
	return orders.UpdateProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
	}, nil
}

func (h *ProductsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	out, err := h.Products.List(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, viewProducts(out))
}

func (h *ProductsHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	p, err := h.Products.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, viewProduct(p))
}

func (h *ProductsHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	p, err := h.Products.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewProduct(p))
}

func (h *ProductsHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	var req UpdateProductReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	p, err := h.Products.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, viewProduct(p))
}

func (h *ProductsHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	p, err := h.Products.Delete(r.Context(), id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, viewProduct(p))
}
