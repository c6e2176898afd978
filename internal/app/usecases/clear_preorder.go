package usecases

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"shopify-preorder-sync/internal/adapters/shopify"
	"shopify-preorder-sync/internal/app/executor"
	"shopify-preorder-sync/internal/app/planner"
	"shopify-preorder-sync/internal/domain/model"
	"shopify-preorder-sync/internal/logging"
)

// clearScanLimit caps how many preorder variants one clear run touches.
const clearScanLimit = 5000

type PreorderLister interface {
	ListPreorderVariants(ctx context.Context, namespace string, limit int) ([]model.PreorderVariant, error)
}

type PreorderTables interface {
	ClearPreorderData(ctx context.Context) (map[string]int64, error)
}

type VariantFailure struct {
	VariantID string `json:"variantId"`
	SKU       string `json:"sku,omitempty"`
	Message   string `json:"message"`
}

type ClearSummary struct {
	VariantsProcessed  int              `json:"variantsProcessed"`
	MetafieldsDeleted  int              `json:"metafieldsDeleted"`
	MetafieldErrors    []VariantFailure `json:"metafieldErrors"`
	PolicyErrors       []VariantFailure `json:"policyErrors"`
	TablesCleared      map[string]int64 `json:"tablesCleared"`
	TablesClearedError string           `json:"tablesClearedError,omitempty"`
}

type ClearPreorder struct {
	lister    PreorderLister
	executor  MutationExecutor
	tables    PreorderTables
	namespace string
	notifier  logging.Notifier
	logger    *zap.Logger
}

func NewClearPreorder(lister PreorderLister, exec MutationExecutor, tables PreorderTables, namespace string, notifier logging.Notifier, logger *zap.Logger) *ClearPreorder {
	if notifier == nil {
		notifier = logging.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClearPreorder{
		lister:    lister,
		executor:  exec,
		tables:    tables,
		namespace: namespace,
		notifier:  notifier,
		logger:    logger,
	}
}

// Run strips the preorder fields from every preorder variant, sets them to
// DENY and then empties the local preorder tables. Only a failed listing
// aborts the run.
func (c *ClearPreorder) Run(ctx context.Context) (ClearSummary, error) {
	c.logger.Info("preorder clear started")
	c.notifier.Log("Preorder clear started")

	variants, err := c.lister.ListPreorderVariants(ctx, c.namespace, clearScanLimit)
	if err != nil {
		c.notifier.LogError(fmt.Sprintf("Preorder clear failed: %v", err))
		return ClearSummary{}, fmt.Errorf("list preorder variants: %w", err)
	}

	summary := ClearSummary{
		MetafieldErrors: []VariantFailure{},
		PolicyErrors:    []VariantFailure{},
	}
	changes := make([]planner.RowChange, 0, len(variants))
	for i, v := range variants {
		change := planner.ClearAll(i, v.VariantID)
		change.SKU = v.SKU
		changes = append(changes, change)
	}
	plan, err := planner.Build(changes, shopify.MetafieldsSetBatchSize)
	if err != nil {
		return ClearSummary{}, err
	}

	report := c.executor.Execute(ctx, plan, func(r executor.RowResult) {
		if r.Err != nil {
			summary.MetafieldErrors = append(summary.MetafieldErrors, VariantFailure{VariantID: r.VariantID, SKU: r.SKU, Message: r.Err.Error()})
			return
		}
		summary.VariantsProcessed++
	})
	summary.MetafieldsDeleted = report.Deleted
	for _, f := range report.PolicyFailures {
		summary.PolicyErrors = append(summary.PolicyErrors, VariantFailure{VariantID: f.VariantID, SKU: f.SKU, Message: f.Err.Error()})
	}

	cleared, err := c.tables.ClearPreorderData(ctx)
	summary.TablesCleared = cleared
	if err != nil {
		summary.TablesClearedError = err.Error()
		c.logger.Error("preorder tables clear failed", zap.Error(err))
	}

	c.logger.Info("preorder clear finished",
		zap.Int("variants", len(variants)),
		zap.Int("processed", summary.VariantsProcessed),
		zap.Int("metafields_deleted", summary.MetafieldsDeleted),
		zap.Int("metafield_errors", len(summary.MetafieldErrors)),
		zap.Int("policy_errors", len(summary.PolicyErrors)),
	)
	message := fmt.Sprintf("Preorder clear done variants=%d processed=%d metafield_errors=%d policy_errors=%d",
		len(variants), summary.VariantsProcessed, len(summary.MetafieldErrors), len(summary.PolicyErrors))
	if len(summary.MetafieldErrors) > 0 || len(summary.PolicyErrors) > 0 || summary.TablesClearedError != "" {
		c.notifier.LogWarning(message)
	} else {
		c.notifier.LogSuccess(message)
	}
	return summary, nil
}
