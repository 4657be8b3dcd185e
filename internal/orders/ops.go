package orders

import (
	"context"
	"time"

	"github.com/ariefcatur/go-stock-orders/internal/cache"
)

// afterCommitTimeout bounds cache and event work that runs after a commit.
// It is detached from the request context so a client hanging up right after
// the commit cannot skip invalidation.
const afterCommitTimeout = 2 * time.Second

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// invalidate drops keys after a committed write. Failures are already logged
// and counted by the cache and never reach the caller.
func invalidate(ctx context.Context, c *cache.Cache, keys ...string) {
	ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), afterCommitTimeout)
	defer cancel()
	_ = c.Invalidate(ictx, keys...)
}
