package cache

import (
	"fmt"
	"time"
)

const (
	// Single entities: order:{id}, product:{id}, user:{id}.
	keyOrder   = "order:%d"
	keyProduct = "product:%d"
	keyUser    = "user:%d"

	// Collections.
	KeyOrdersAll   = "orders:all"
	KeyProductsAll = "products:all"
	KeyUsersAll    = "users:all"
)

var DefaultTTL = time.Hour

func OrderKey(id int64) string   { return fmt.Sprintf(keyOrder, id) }
func ProductKey(id int64) string { return fmt.Sprintf(keyProduct, id) }
func UserKey(id int64) string    { return fmt.Sprintf(keyUser, id) }
