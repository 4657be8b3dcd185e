// Package memstore is an in-process orders.Store. Transactions are
// serializable: one store-wide lock is held for the whole unit of work and a
// snapshot taken at begin is restored on rollback.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-stock-orders/internal/orders"
)

type state struct {
	users    map[int64]orders.User
	products map[int64]orders.Product
	orders   map[int64]orders.Order

	lastUser, lastProduct, lastOrder int64
}

func (st *state) clone() *state {
	out := &state{
		users:       make(map[int64]orders.User, len(st.users)),
		products:    make(map[int64]orders.Product, len(st.products)),
		orders:      make(map[int64]orders.Order, len(st.orders)),
		lastUser:    st.lastUser,
		lastProduct: st.lastProduct,
		lastOrder:   st.lastOrder,
	}
	for k, v := range st.users {
		out.users[k] = v
	}
	for k, v := range st.products {
		out.products[k] = v
	}
	for k, v := range st.orders {
		out.orders[k] = v
	}
	return out
}

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

var _ orders.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		st: &state{
			users:    map[int64]orders.User{},
			products: map[int64]orders.Product{},
			orders:   map[int64]orders.Order{},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// AddUser seeds a user; a zero ID is assigned the next free one.
func (s *Store) AddUser(u orders.User) orders.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		s.st.lastUser++
		u.ID = s.st.lastUser
	} else if u.ID > s.st.lastUser {
		s.st.lastUser = u.ID
	}
	now := s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	s.st.users[u.ID] = u
	return u
}

// AddProduct seeds a product outside any transaction.
func (s *Store) AddProduct(p orders.Product) orders.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, _ := (&tx{st: s.st, now: s.now}).InsertProduct(context.Background(), p)
	return out
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	err := fn(&tx{st: s.st, now: s.now, ctx: ctx})
	if err == nil {
		// commit fails once the deadline has passed, like a real round trip would
		err = ctx.Err()
	}
	if err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) read() (*tx, func()) {
	s.mu.Lock()
	return &tx{st: s.st, now: s.now}, s.mu.Unlock
}

func (s *Store) GetUser(ctx context.Context, id int64) (orders.User, error) {
	t, done := s.read()
	defer done()
	return t.GetUser(ctx, id)
}

func (s *Store) ListUsers(ctx context.Context) ([]orders.User, error) {
	t, done := s.read()
	defer done()
	return t.ListUsers(ctx)
}

func (s *Store) GetProduct(ctx context.Context, id int64) (orders.Product, error) {
	t, done := s.read()
	defer done()
	return t.GetProduct(ctx, id)
}

func (s *Store) ListProducts(ctx context.Context) ([]orders.Product, error) {
	t, done := s.read()
	defer done()
	return t.ListProducts(ctx)
}

func (s *Store) GetOrder(ctx context.Context, id int64) (orders.Order, error) {
	t, done := s.read()
	defer done()
	return t.GetOrder(ctx, id)
}

func (s *Store) ListOrders(ctx context.Context) ([]orders.Order, error) {
	t, done := s.read()
	defer done()
	return t.ListOrders(ctx)
}

// tx operates on the live state while the store lock is held.
type tx struct {
	st  *state
	now func() time.Time
	ctx context.Context // transaction context; nil outside WithinTx
}

func (t *tx) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.ctx != nil {
		return t.ctx.Err()
	}
	return nil
}

func (t *tx) GetUser(ctx context.Context, id int64) (orders.User, error) {
	if err := t.check(ctx); err != nil {
		return orders.User{}, err
	}
	u, ok := t.st.users[id]
	if !ok {
		return orders.User{}, orders.NotFound(orders.EntityUser, id)
	}
	return u, nil
}

func (t *tx) ListUsers(ctx context.Context) ([]orders.User, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	out := make([]orders.User, 0, len(t.st.users))
	for _, u := range t.st.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) GetProduct(ctx context.Context, id int64) (orders.Product, error) {
	if err := t.check(ctx); err != nil {
		return orders.Product{}, err
	}
	p, ok := t.st.products[id]
	if !ok {
		return orders.Product{}, orders.NotFound(orders.EntityProduct, id)
	}
	return p, nil
}

func (t *tx) ListProducts(ctx context.Context) ([]orders.Product, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	out := make([]orders.Product, 0, len(t.st.products))
	for _, p := range t.st.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) withRelations(o orders.Order) orders.Order {
	if u, ok := t.st.users[o.UserID]; ok {
		o.User = &u
	}
	if p, ok := t.st.products[o.ProductID]; ok {
		o.Product = &p
	}
	return o
}

func (t *tx) GetOrder(ctx context.Context, id int64) (orders.Order, error) {
	if err := t.check(ctx); err != nil {
		return orders.Order{}, err
	}
	o, ok := t.st.orders[id]
	if !ok {
		return orders.Order{}, orders.NotFound(orders.EntityOrder, id)
	}
	return t.withRelations(o), nil
}

func (t *tx) ListOrders(ctx context.Context) ([]orders.Order, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	out := make([]orders.Order, 0, len(t.st.orders))
	for _, o := range t.st.orders {
		out = append(out, t.withRelations(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// LockOrder and LockProduct are plain reads: the store lock already
// serializes transactions.
func (t *tx) LockOrder(ctx context.Context, id int64) (orders.Order, error) {
	return t.GetOrder(ctx, id)
}

func (t *tx) LockProduct(ctx context.Context, id int64) (orders.Product, error) {
	return t.GetProduct(ctx, id)
}

func (t *tx) checkRefs(o orders.Order) error {
	if _, ok := t.st.users[o.UserID]; !ok {
		return orders.NotFound(orders.EntityUser, o.UserID)
	}
	if _, ok := t.st.products[o.ProductID]; !ok {
		return orders.NotFound(orders.EntityProduct, o.ProductID)
	}
	return nil
}

func (t *tx) InsertOrder(ctx context.Context, o orders.Order) (orders.Order, error) {
	if err := t.check(ctx); err != nil {
		return orders.Order{}, err
	}
	if err := t.checkRefs(o); err != nil {
		return orders.Order{}, err
	}
	t.st.lastOrder++
	o.ID = t.st.lastOrder
	now := t.now()
	o.CreatedAt, o.UpdatedAt = now, now
	o.User, o.Product = nil, nil
	t.st.orders[o.ID] = o
	return o, nil
}

func (t *tx) UpdateOrder(ctx context.Context, o orders.Order) (orders.Order, error) {
	if err := t.check(ctx); err != nil {
		return orders.Order{}, err
	}
	cur, ok := t.st.orders[o.ID]
	if !ok {
		return orders.Order{}, orders.NotFound(orders.EntityOrder, o.ID)
	}
	if err := t.checkRefs(o); err != nil {
		return orders.Order{}, err
	}
	o.CreatedAt = cur.CreatedAt
	o.UpdatedAt = t.now()
	o.User, o.Product = nil, nil
	t.st.orders[o.ID] = o
	return o, nil
}

func (t *tx) DeleteOrder(ctx context.Context, id int64) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	if _, ok := t.st.orders[id]; !ok {
		return orders.NotFound(orders.EntityOrder, id)
	}
	delete(t.st.orders, id)
	return nil
}

func (t *tx) AdjustStock(ctx context.Context, productID int64, delta int) (orders.Product, error) {
	if err := t.check(ctx); err != nil {
		return orders.Product{}, err
	}
	p, ok := t.st.products[productID]
	if !ok {
		return orders.Product{}, orders.NotFound(orders.EntityProduct, productID)
	}
	if p.Stock+delta < 0 {
		return orders.Product{}, &orders.InsufficientStockError{ProductID: productID, Requested: -delta, Available: p.Stock}
	}
	p.Stock += delta
	p.UpdatedAt = t.now()
	t.st.products[productID] = p
	return p, nil
}

func (t *tx) InsertProduct(ctx context.Context, p orders.Product) (orders.Product, error) {
	if err := t.check(ctx); err != nil {
		return orders.Product{}, err
	}
	if p.Stock < 0 || p.Price.IsNegative() {
		return orders.Product{}, orders.ErrInvalidProduct
	}
	if p.ID == 0 {
		t.st.lastProduct++
		p.ID = t.st.lastProduct
	} else if p.ID > t.st.lastProduct {
		t.st.lastProduct = p.ID
	}
	now := t.now()
	p.CreatedAt, p.UpdatedAt = now, now
	t.st.products[p.ID] = p
	return p, nil
}

func (t *tx) UpdateProduct(ctx context.Context, p orders.Product) (orders.Product, error) {
	if err := t.check(ctx); err != nil {
		return orders.Product{}, err
	}
	cur, ok := t.st.products[p.ID]
	if !ok {
		return orders.Product{}, orders.NotFound(orders.EntityProduct, p.ID)
	}
	if p.Stock < 0 || p.Price.IsNegative() {
		return orders.Product{}, orders.ErrInvalidProduct
	}
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = t.now()
	t.st.products[p.ID] = p
	return p, nil
}

func (t *tx) DeleteProduct(ctx context.Context, id int64) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	if _, ok := t.st.products[id]; !ok {
		return orders.NotFound(orders.EntityProduct, id)
	}
	for _, o := range t.st.orders {
		if o.ProductID == id {
			return orders.ErrProductInUse
		}
	}
	delete(t.st.products, id)
	return nil
}
