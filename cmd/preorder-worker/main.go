package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	mirrorstore "shopify-preorder-sync/internal/adapters/mirror"
	"shopify-preorder-sync/internal/adapters/queue"
	"shopify-preorder-sync/internal/adapters/shopify"
	"shopify-preorder-sync/internal/app/executor"
	"shopify-preorder-sync/internal/app/mirror"
	"shopify-preorder-sync/internal/app/resolver"
	"shopify-preorder-sync/internal/app/usecases"
	"shopify-preorder-sync/internal/config"
	"shopify-preorder-sync/internal/domain/model"
	infrahttp "shopify-preorder-sync/internal/infra/http"
	"shopify-preorder-sync/internal/infra/mysql"
	"shopify-preorder-sync/internal/infra/redis"
	"shopify-preorder-sync/internal/logging"
	"shopify-preorder-sync/internal/metrics"
)

func main() {
	cfg, err := config.LoadForWorker()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := mysql.New(cfg.Mysql)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	rdb, err := redis.New(cfg.Redis.URL)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close() //nolint:errcheck

	m := metrics.New(prometheus.NewRegistry())
	notifier := logging.NewNotifier(cfg.TelegramBot, infrahttp.NewClient(10*time.Second), logger)
	store := mirrorstore.NewStore(db)
	shop := shopify.NewClient(cfg.Shopify, infrahttp.NewClient(cfg.Shopify.Timeout), logger, m)

	pipeline := usecases.NewUploadPipeline(usecases.UploadPipelineDeps{
		Jobs: store,
		Resolver: resolver.New(shop, resolver.Options{
			Workers:       cfg.Preorder.Workers,
			ChunkInterval: cfg.Preorder.ChunkInterval,
		}, logger),
		Executor: executor.New(shop, shop, executor.Options{
			Namespace:       cfg.Preorder.Namespace,
			BatchInterval:   cfg.Preorder.BatchInterval,
			PolicyGroupSize: cfg.Preorder.PolicyGroup,
			PolicyInterval:  cfg.Preorder.PolicyInterval,
		}, logger, m),
		Writer:          mirror.NewWriter(store, logger),
		Notifier:        notifier,
		Logger:          logger,
		Metrics:         m,
		DefaultStrategy: model.Strategy(cfg.Preorder.Strategy),
	})
	worker := usecases.NewUploadWorker(queue.NewRedis(rdb, logger), store, pipeline, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Preorder worker started", zap.String("namespace", cfg.Preorder.Namespace))
	if err := worker.Run(ctx); err != nil {
		logger.Error("Worker stopped", zap.Error(err))
		return
	}
	logger.Info("Worker exited cleanly")
}
