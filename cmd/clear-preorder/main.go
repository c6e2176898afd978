package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	mirrorstore "shopify-preorder-sync/internal/adapters/mirror"
	"shopify-preorder-sync/internal/adapters/shopify"
	"shopify-preorder-sync/internal/app/executor"
	"shopify-preorder-sync/internal/app/usecases"
	"shopify-preorder-sync/internal/config"
	infrahttp "shopify-preorder-sync/internal/infra/http"
	"shopify-preorder-sync/internal/infra/mysql"
	"shopify-preorder-sync/internal/logging"
	"shopify-preorder-sync/internal/metrics"
)

func main() {
	cfg, err := config.LoadForClear()
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

	m := metrics.New(prometheus.NewRegistry())
	notifier := logging.NewNotifier(cfg.TelegramBot, infrahttp.NewClient(10*time.Second), logger)
	shop := shopify.NewClient(cfg.Shopify, infrahttp.NewClient(cfg.Shopify.Timeout), logger, m)
	exec := executor.New(shop, shop, executor.Options{
		Namespace:       cfg.Preorder.Namespace,
		BatchInterval:   cfg.Preorder.BatchInterval,
		PolicyGroupSize: cfg.Preorder.PolicyGroup,
		PolicyInterval:  cfg.Preorder.PolicyInterval,
	}, logger, m)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	cleaner := usecases.NewClearPreorder(shop, exec, mirrorstore.NewStore(db), cfg.Preorder.Namespace, notifier, logger)
	summary, err := cleaner.Run(ctx)
	if err != nil {
		logger.Fatal("clear preorder failed", zap.Error(err)) //nolint:gocritic
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))
}
