// cmd/notifier/main.go pops contact events from the Redis queue and stores
// per-user notifications in PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/mychat/internal/cache"
	"github.com/jason-s-yu/mychat/internal/config"
	"github.com/jason-s-yu/mychat/internal/database"
	"github.com/jason-s-yu/mychat/internal/notifier"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if cfg.RedisAddr == "" {
		logger.Fatal("REDIS_ADDR is required")
	}
	if cfg.StorageDriver != config.StorageDriverPostgres {
		logger.Fatal("the notifier needs STORAGE_DRIVER=postgres")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.ConnectDB(ctx, cfg.Postgres.ConnString())
	if err != nil {
		logger.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	pg := database.NewPostgres(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		logger.Fatalf("schema: %v", err)
	}

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	notifier.NewConsumer(rdb, pg, notifier.Options{
		Queue:      cfg.ContactEventsQueue,
		BatchSize:  cfg.NotifierBatchSize,
		FlushDelay: cfg.NotifierFlushInterval,
	}, logger).Run(ctx)
}
