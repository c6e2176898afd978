package usecases

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"shopify-preorder-sync/internal/adapters/mirror"
	"shopify-preorder-sync/internal/app/rows"
	"shopify-preorder-sync/internal/domain/model"
)

type OrderedStore interface {
	UpsertOrdered(ctx context.Context, items []model.OrderedQuantity) (int, []mirror.OrderedSkip, error)
}

type OrderedResult struct {
	Updated     int                  `json:"updated"`
	SkippedRows int                  `json:"skippedRows"`
	Skipped     []mirror.OrderedSkip `json:"skipped"`
}

type OrderedImport struct {
	store  OrderedStore
	logger *zap.Logger
}

func NewOrderedImport(store OrderedStore, logger *zap.Logger) *OrderedImport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderedImport{store: store, logger: logger}
}

// Import loads the ordered quantities CSV into the ordered table.
func (o *OrderedImport) Import(ctx context.Context, r io.Reader) (OrderedResult, error) {
	items, skippedRows, err := rows.ParseOrdered(r)
	if err != nil {
		return OrderedResult{}, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}
	updated, skipped, err := o.store.UpsertOrdered(ctx, items)
	if err != nil {
		return OrderedResult{}, fmt.Errorf("store ordered quantities: %w", err)
	}
	if skipped == nil {
		skipped = []mirror.OrderedSkip{}
	}
	o.logger.Info("ordered quantities imported",
		zap.Int("updated", updated),
		zap.Int("skipped_rows", skippedRows),
		zap.Int("failed", len(skipped)),
	)
	return OrderedResult{Updated: updated, SkippedRows: skippedRows, Skipped: skipped}, nil
}
