package orders

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-stock-orders/internal/cache"
	"github.com/ariefcatur/go-stock-orders/internal/metrics"
)

// ProductService is the direct product-edit path. It shares the stock
// invariant with OrderService: stock is never written below zero.
type ProductService struct {
	Store   Store
	Cache   *cache.Cache
	Log     zerolog.Logger
	Timeout time.Duration
}

func (s *ProductService) Get(ctx context.Context, id int64) (Product, error) {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	p, err := cache.GetOrPopulate(ctx, s.Cache, cache.ProductKey(id), 0, func(ctx context.Context) (Product, error) {
		return s.Store.GetProduct(ctx, id)
	})
	return p, classify("get product", err)
}

func (s *ProductService) List(ctx context.Context) ([]Product, error) {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	out, err := cache.GetOrPopulate(ctx, s.Cache, cache.KeyProductsAll, 0, func(ctx context.Context) ([]Product, error) {
		return s.Store.ListProducts(ctx)
	})
	return out, classify("list products", err)
}

func (s *ProductService) Create(ctx context.Context, in CreateProductInput) (Product, error) {
	if in.Stock < 0 || in.Price.IsNegative() {
		return Product{}, ErrInvalidProduct
	}
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	p, err := InTx(ctx, s.Store, func(tx Tx) (Product, error) {
		return tx.InsertProduct(ctx, Product{
			Name:        in.Name,
			Description: in.Description,
			Price:       in.Price,
			Stock:       in.Stock,
		})
	})
	metrics.ObserveOp("product_create", err)
	if err != nil {
		return Product{}, classify("create product", err)
	}
	invalidate(ctx, s.Cache, cache.KeyProductsAll)
	return p, nil
}

// Update edits the set fields. Existing orders keep the total they were
// priced at.
func (s *ProductService) Update(ctx context.Context, id int64, in UpdateProductInput) (Product, error) {
	if (in.Stock != nil && *in.Stock < 0) || (in.Price != nil && in.Price.IsNegative()) {
		return Product{}, ErrInvalidProduct
	}
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	p, err := InTx(ctx, s.Store, func(tx Tx) (Product, error) {
		p, err := tx.LockProduct(ctx, id)
		if err != nil {
			return Product{}, err
		}
		if in.Name != nil {
			p.Name = *in.Name
		}
		if in.Description != nil {
			p.Description = in.Description
		}
		if in.Price != nil {
			p.Price = *in.Price
		}
		if in.Stock != nil {
			p.Stock = *in.Stock
		}
		return tx.UpdateProduct(ctx, p)
	})
	metrics.ObserveOp("product_update", err)
	if err != nil {
		return Product{}, classify("update product", err)
	}
	invalidate(ctx, s.Cache, cache.ProductKey(id), cache.KeyProductsAll, cache.KeyOrdersAll)
	return p, nil
}

func (s *ProductService) Delete(ctx context.Context, id int64) (Product, error) {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	p, err := InTx(ctx, s.Store, func(tx Tx) (Product, error) {
		p, err := tx.LockProduct(ctx, id)
		if err != nil {
			return Product{}, err
		}
		return p, tx.DeleteProduct(ctx, id)
	})
	metrics.ObserveOp("product_delete", err)
	if err != nil {
		return Product{}, classify("delete product", err)
	}
	invalidate(ctx, s.Cache, cache.ProductKey(id), cache.KeyProductsAll, cache.KeyOrdersAll)
	return p, nil
}
