package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-stock-orders/internal/cache"
	"github.com/ariefcatur/go-stock-orders/internal/config"
	"github.com/ariefcatur/go-stock-orders/internal/invalidation"
	kafkax "github.com/ariefcatur/go-stock-orders/internal/kafka"
	"github.com/ariefcatur/go-stock-orders/internal/logging"
	"github.com/ariefcatur/go-stock-orders/internal/orders"
	"github.com/ariefcatur/go-stock-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("cache-invalidator", "info")
		boot.Fatal().Err(err).Msg("load config")
	}
	log := logging.New(cfg.ServiceName+"-invalidator", cfg.LogLevel)
	if cfg.CacheDriver != config.DriverRedis {
		log.Fatal().Str("cache", cfg.CacheDriver).Msg("invalidator needs the shared redis cache")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redisx.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rdb.Close()

	svc := &invalidation.Service{
		Cache: cache.New(&redisx.Store{Client: rdb}, cfg.CacheTTL, log),
		Log:   log,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.InvalidatorGroup, orders.TopicOrderEvents, cfg.InvalidatorWorkers, log)
	log.Info().
		Str("group", cfg.InvalidatorGroup).
		Str("topic", orders.TopicOrderEvents).
		Int("workers", cfg.InvalidatorWorkers).
		Msg("invalidator consumer started")
	if err := cons.Start(ctx, svc.HandleOrderEvent); err != nil {
		log.Error().Err(err).Msg("consumer exit")
		return
	}
	log.Info().Msg("invalidator stopped")
}
