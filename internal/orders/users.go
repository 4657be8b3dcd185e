package orders

import (
	"context"
	"time"

	"github.com/ariefcatur/go-stock-orders/internal/cache"
)

// UserService serves user reads. Users are managed elsewhere.
type UserService struct {
	Store   Queries
	Cache   *cache.Cache
	Timeout time.Duration
}

func (s *UserService) Get(ctx context.Context, id int64) (User, error) {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	u, err := cache.GetOrPopulate(ctx, s.Cache, cache.UserKey(id), 0, func(ctx context.Context) (User, error) {
		return s.Store.GetUser(ctx, id)
	})
	return u, classify("get user", err)
}

func (s *UserService) List(ctx context.Context) ([]User, error) {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	out, err := cache.GetOrPopulate(ctx, s.Cache, cache.KeyUsersAll, 0, func(ctx context.Context) ([]User, error) {
		return s.Store.ListUsers(ctx)
	})
	return out, classify("list users", err)
}
