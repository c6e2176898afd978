package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	mirrorstore "shopify-preorder-sync/internal/adapters/mirror"
	"shopify-preorder-sync/internal/adapters/queue"
	"shopify-preorder-sync/internal/adapters/shopify"
	"shopify-preorder-sync/internal/app/executor"
	"shopify-preorder-sync/internal/app/mirror"
	"shopify-preorder-sync/internal/app/resolver"
	"shopify-preorder-sync/internal/app/usecases"
	"shopify-preorder-sync/internal/auth"
	"shopify-preorder-sync/internal/config"
	"shopify-preorder-sync/internal/domain/model"
	infrahttp "shopify-preorder-sync/internal/infra/http"
	"shopify-preorder-sync/internal/infra/mysql"
	"shopify-preorder-sync/internal/infra/redis"
	"shopify-preorder-sync/internal/logging"
	"shopify-preorder-sync/internal/metrics"
	"shopify-preorder-sync/internal/transport/controllers"
	"shopify-preorder-sync/internal/transport/routes"
)

func main() {
	cfg, err := config.LoadForServer()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	notifier := logging.NewNotifier(cfg.TelegramBot, infrahttp.NewClient(10*time.Second), logger)

	db, err := mysql.New(cfg.Mysql)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	err = mysql.Migrate(migrateCtx, db)
	cancelMigrate()
	if err != nil {
		logger.Fatal("Failed to apply schema", zap.Error(err))
	}

	store := mirrorstore.NewStore(db)
	writer := mirror.NewWriter(store, logger)
	shop := shopify.NewClient(cfg.Shopify, infrahttp.NewClient(cfg.Shopify.Timeout), logger, m)
	exec := executor.New(shop, shop, executor.Options{
		Namespace:       cfg.Preorder.Namespace,
		BatchInterval:   cfg.Preorder.BatchInterval,
		PolicyGroupSize: cfg.Preorder.PolicyGroup,
		PolicyInterval:  cfg.Preorder.PolicyInterval,
	}, logger, m)

	deps := usecases.UploadPipelineDeps{
		Jobs: store,
		Resolver: resolver.New(shop, resolver.Options{
			Workers:       cfg.Preorder.Workers,
			ChunkInterval: cfg.Preorder.ChunkInterval,
		}, logger),
		Executor:        exec,
		Writer:          writer,
		Notifier:        notifier,
		Logger:          logger,
		Metrics:         m,
		DefaultStrategy: model.Strategy(cfg.Preorder.Strategy),
	}
	if cfg.Redis.URL != "" {
		rdb, err := redis.New(cfg.Redis.URL)
		if err != nil {
			logger.Warn("Redis unavailable, queued uploads disabled", zap.Error(err))
		} else {
			defer rdb.Close() //nolint:errcheck
			deps.Queue = queue.NewRedis(rdb, logger)
		}
	}
	pipeline := usecases.NewUploadPipeline(deps)

	sessions := auth.NewSessions(cfg.Auth)
	secureCookie := cfg.AppEnv == "production" || strings.HasPrefix(cfg.HTTP.PublicBaseURL, "https://")

	router := routes.NewRouter(routes.Controllers{
		Uploads: controllers.NewUploadController(pipeline, store, cfg.HTTP.MaxUploadBytes, logger),
		Variants: controllers.NewVariantController(
			usecases.NewVariantAdmin(exec, shop, store, logger),
			usecases.NewPreorderProducts(shop, cfg.Preorder.Namespace),
		),
		Admin: controllers.NewAdminController(controllers.AdminDeps{
			Clearer:        usecases.NewClearPreorder(shop, exec, store, cfg.Preorder.Namespace, notifier, logger),
			Ordered:        usecases.NewOrderedImport(store, logger),
			Webhooks:       usecases.NewWebhookRegistration(shop, cfg.HTTP.PublicBaseURL, logger),
			Migrate:        func(ctx context.Context) error { return mysql.Migrate(ctx, db) },
			MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
			Logger:         logger,
		}),
		Auth: controllers.NewAuthController(sessions, secureCookie, logger),
		Webhooks: controllers.NewWebhookController(
			cfg.Webhook.Secret,
			usecases.NewInventoryReaction(store, writer, shop, cfg.Preorder.Namespace, notifier, logger, m),
			m,
			logger,
		),
		Health:  controllers.NewHealthController(store),
		Metrics: m.Handler(),
	}, routes.Options{
		Sessions:         sessions,
		WebhookRateLimit: cfg.Webhook.RateLimit,
		Logger:           logger,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// sync uploads answer only after every row has settled
		WriteTimeout: 15 * time.Minute,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Preorder server started",
		zap.Int("port", cfg.HTTP.Port),
		zap.String("strategy", cfg.Preorder.Strategy),
		zap.Bool("queued_uploads", deps.Queue != nil),
	)
	<-quit
	logger.Info("Shutting down preorder server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited cleanly")
}
