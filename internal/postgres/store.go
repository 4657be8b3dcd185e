package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/ariefcatur/go-stock-orders/internal/orders"
)

const (
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"

	rollbackTimeout = 2 * time.Second
)

const (
	userCols    = `id, email, name, created_at, updated_at`
	productCols = `id, name, description, price, stock, created_at, updated_at`

	orderSelect = `
		SELECT o.id, o.user_id, o.product_id, o.quantity, o.total_price, o.status, o.created_at, o.updated_at,
		       u.id, u.email, u.name, u.created_at, u.updated_at,
		       p.id, p.name, p.description, p.price, p.stock, p.created_at, p.updated_at
		FROM orders o
		JOIN users u ON u.id = o.user_id
		JOIN products p ON p.id = o.product_id`
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queries struct{ q querier }

// Store is the Postgres orders.Store. Transactions run at READ COMMITTED;
// stock changes are single conditional UPDATEs and order rows touched by a
// unit of work are locked with FOR UPDATE.
type Store struct {
	queries
	DB *pgxpool.Pool
}

var _ orders.Store = (*Store)(nil)

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{queries: queries{q: db}, DB: db}
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() {
		// still roll back when ctx has expired
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
		defer cancel()
		_ = tx.Rollback(rctx)
	}()

	if err := fn(&txQueries{queries{q: tx}}); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

type txQueries struct{ queries }

var _ orders.Tx = (*txQueries)(nil)

func scanUser(row pgx.Row) (orders.User, error) {
	var u orders.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func scanProduct(row pgx.Row) (orders.Product, error) {
	var p orders.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanOrder(row pgx.Row) (orders.Order, error) {
	var (
		o      orders.Order
		u      orders.User
		p      orders.Product
		status string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.ProductID, &o.Quantity, &o.TotalPrice, &status, &o.CreatedAt, &o.UpdatedAt,
		&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt,
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return orders.Order{}, err
	}
	o.Status = orders.Status(status)
	o.User, o.Product = &u, &p
	return o, nil
}

func (q queries) GetUser(ctx context.Context, id int64) (orders.User, error) {
	u, err := scanUser(q.q.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.User{}, orders.NotFound(orders.EntityUser, id)
	}
	return u, errors.Wrap(err, "query user")
}

func (q queries) ListUsers(ctx context.Context) ([]orders.User, error) {
	rows, err := q.q.Query(ctx, `SELECT `+userCols+` FROM users ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "query users")
	}
	defer rows.Close()

	out := []orders.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		out = append(out, u)
	}
	return out, errors.Wrap(rows.Err(), "iterate users")
}

func (q queries) GetProduct(ctx context.Context, id int64) (orders.Product, error) {
	p, err := scanProduct(q.q.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Product{}, orders.NotFound(orders.EntityProduct, id)
	}
	return p, errors.Wrap(err, "query product")
}

func (q queries) ListProducts(ctx context.Context) ([]orders.Product, error) {
	rows, err := q.q.Query(ctx, `SELECT `+productCols+` FROM products ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "query products")
	}
	defer rows.Close()

	out := []orders.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		out = append(out, p)
	}
	return out, errors.Wrap(rows.Err(), "iterate products")
}

func (q queries) GetOrder(ctx context.Context, id int64) (orders.Order, error) {
	o, err := scanOrder(q.q.QueryRow(ctx, orderSelect+` WHERE o.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, orders.NotFound(orders.EntityOrder, id)
	}
	return o, errors.Wrap(err, "query order")
}

func (q queries) ListOrders(ctx context.Context) ([]orders.Order, error) {
	rows, err := q.q.Query(ctx, orderSelect+` ORDER BY o.id`)
	if err != nil {
		return nil, errors.Wrap(err, "query orders")
	}
	defer rows.Close()

	out := []orders.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		out = append(out, o)
	}
	return out, errors.Wrap(rows.Err(), "iterate orders")
}

func (t *txQueries) LockOrder(ctx context.Context, id int64) (orders.Order, error) {
	o, err := scanOrder(t.q.QueryRow(ctx, orderSelect+` WHERE o.id = $1 FOR UPDATE OF o`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, orders.NotFound(orders.EntityOrder, id)
	}
	return o, errors.Wrap(err, "lock order")
}

func (t *txQueries) InsertOrder(ctx context.Context, o orders.Order) (orders.Order, error) {
	err := t.q.QueryRow(ctx, `
		INSERT INTO orders (user_id, product_id, quantity, total_price, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		o.UserID, o.ProductID, o.Quantity, o.TotalPrice, string(o.Status),
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return orders.Order{}, errors.Wrap(err, "insert order")
	}
	o.User, o.Product = nil, nil
	return o, nil
}

func (t *txQueries) UpdateOrder(ctx context.Context, o orders.Order) (orders.Order, error) {
	err := t.q.QueryRow(ctx, `
		UPDATE orders
		SET user_id = $2, product_id = $3, quantity = $4, total_price = $5, status = $6, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		o.ID, o.UserID, o.ProductID, o.Quantity, o.TotalPrice, string(o.Status),
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, orders.NotFound(orders.EntityOrder, o.ID)
	}
	if err != nil {
		return orders.Order{}, errors.Wrap(err, "update order")
	}
	o.User, o.Product = nil, nil
	return o, nil
}

func (t *txQueries) DeleteOrder(ctx context.Context, id int64) error {
	ct, err := t.q.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete order")
	}
	if ct.RowsAffected() == 0 {
		return orders.NotFound(orders.EntityOrder, id)
	}
	return nil
}

func (t *txQueries) LockProduct(ctx context.Context, id int64) (orders.Product, error) {
	p, err := scanProduct(t.q.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Product{}, orders.NotFound(orders.EntityProduct, id)
	}
	return p, errors.Wrap(err, "lock product")
}

// AdjustStock is one conditional UPDATE: concurrent adjusters of the same
// product queue on its row lock and each re-checks the condition against the
// committed stock.
func (t *txQueries) AdjustStock(ctx context.Context, productID int64, delta int) (orders.Product, error) {
	p, err := scanProduct(t.q.QueryRow(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = now()
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING `+productCols, productID, delta))
	if errors.Is(err, pgx.ErrNoRows) {
		cur, gerr := t.GetProduct(ctx, productID)
		if gerr != nil {
			return orders.Product{}, gerr
		}
		return orders.Product{}, &orders.InsufficientStockError{ProductID: productID, Requested: -delta, Available: cur.Stock}
	}
	return p, errors.Wrapf(err, "adjust stock of product %d", productID)
}

func (t *txQueries) InsertProduct(ctx context.Context, p orders.Product) (orders.Product, error) {
	out, err := scanProduct(t.q.QueryRow(ctx, `
		INSERT INTO products (name, description, price, stock)
		VALUES ($1, $2, $3, $4)
		RETURNING `+productCols, p.Name, p.Description, p.Price, p.Stock))
	if isPgCode(err, pgCheckViolation) {
		return orders.Product{}, orders.ErrInvalidProduct
	}
	return out, errors.Wrap(err, "insert product")
}

func (t *txQueries) UpdateProduct(ctx context.Context, p orders.Product) (orders.Product, error) {
	out, err := scanProduct(t.q.QueryRow(ctx, `
		UPDATE products
		SET name = $2, description = $3, price = $4, stock = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+productCols, p.ID, p.Name, p.Description, p.Price, p.Stock))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return orders.Product{}, orders.NotFound(orders.EntityProduct, p.ID)
	case isPgCode(err, pgCheckViolation):
		return orders.Product{}, orders.ErrInvalidProduct
	}
	return out, errors.Wrap(err, "update product")
}

func (t *txQueries) DeleteProduct(ctx context.Context, id int64) error {
	ct, err := t.q.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if isPgCode(err, pgForeignKeyViolation) {
		return orders.ErrProductInUse
	}
	if err != nil {
		return errors.Wrap(err, "delete product")
	}
	if ct.RowsAffected() == 0 {
		return orders.NotFound(orders.EntityProduct, id)
	}
	return nil
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
