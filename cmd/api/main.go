package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-stock-orders/internal/cache"
	"github.com/ariefcatur/go-stock-orders/internal/config"
	"github.com/ariefcatur/go-stock-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-stock-orders/internal/kafka"
	"github.com/ariefcatur/go-stock-orders/internal/logging"
	"github.com/ariefcatur/go-stock-orders/internal/memstore"
	"github.com/ariefcatur/go-stock-orders/internal/orders"
	"github.com/ariefcatur/go-stock-orders/internal/postgres"
	"github.com/ariefcatur/go-stock-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("order-api", "info")
		boot.Fatal().Err(err).Msg("load config")
	}
	log := logging.New(cfg.ServiceName, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	var store orders.Store
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		if err != nil {
			log.Fatal().Err(err).Msg("db connect")
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("db migrate")
		}
		store = postgres.NewStore(db)
	default:
		mem := memstore.New()
		seedDemo(mem)
		store = mem
		log.Warn().Msg("using in-memory store, data is lost on restart")
	}

	// Cache
	var backend cache.Store
	switch cfg.CacheDriver {
	case config.DriverRedis:
		rdb := redisx.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			// reads fall through to the store until redis comes back
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable at startup")
		}
		backend = &redisx.Store{Client: rdb}
	default:
		backend = cache.NewMemory()
	}
	c := cache.New(backend, cfg.CacheTTL, log)

	// Events
	var events orders.Publisher
	var prod *kafkax.Producer
	if cfg.KafkaEnabled {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024, log)
		prod.Start(ctx)
		events = &kafkax.OrderEventPublisher{Producer: prod, Service: cfg.ServiceName}
	}

	orderSvc := &orders.OrderService{Store: store, Cache: c, Events: events, Log: log, Timeout: cfg.OpTimeout}
	productSvc := &orders.ProductService{Store: store, Cache: c, Log: log, Timeout: cfg.OpTimeout}
	userSvc := &orders.UserService{Store: store, Cache: c, Timeout: cfg.OpTimeout}

	router := httpx.NewRouter(log)
	(&httpx.OrdersHandler{Orders: orderSvc, Log: log}).Register(router)
	(&httpx.ProductsHandler{Products: productSvc, Log: log}).Register(router)
	(&httpx.UsersHandler{Users: userSvc, Log: log}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("store", cfg.StoreDriver).Str("cache", cfg.CacheDriver).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")

	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if prod != nil {
		prod.Close()
		prod.WaitClosed()
	}
	cancel()
}

// seedDemo gives the in-memory store a few users and products; there is no
// user-management endpoint to create them.
func seedDemo(s *memstore.Store) {
	s.AddUser(orders.User{Email: "alice@example.com", Name: "Alice"})
	s.AddUser(orders.User{Email: "bob@example.com", Name: "Bob"})
	s.AddProduct(orders.Product{Name: "Keyboard", Price: decimal.RequireFromString("49.90"), Stock: 25})
	s.AddProduct(orders.Product{Name: "Mouse", Price: decimal.RequireFromString("19.50"), Stock: 100})
	s.AddProduct(orders.Product{Name: "Monitor", Price: decimal.RequireFromString("229.00"), Stock: 5})
}
