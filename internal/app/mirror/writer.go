// Package mirror keeps the local copy in step with what the upload pipeline
// and the single-variant flows wrote to Shopify.
package mirror

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"shopify-preorder-sync/internal/app/progress"
	"shopify-preorder-sync/internal/domain/model"
)

type Store interface {
	AppendRowOutcome(ctx context.Context, o model.UploadRowOutcome) error
	CountRowOutcomes(ctx context.Context, uploadID string, attempt int) (model.OutcomeCounts, error)
	UpdateJobProgress(ctx context.Context, id string, p model.JobProgress) error
	UpsertVariant(ctx context.Context, u model.VariantUpdate) error
}

type Writer struct {
	store  Store
	logger *zap.Logger
}

func NewWriter(store Store, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{store: store, logger: logger}
}

// RecordRow upserts the variant when the row succeeded and appends the outcome.
// The outcome is appended even when the variant upsert fails.
func (w *Writer) RecordRow(ctx context.Context, o model.UploadRowOutcome, variant *model.VariantUpdate) error {
	var upsertErr error
	if o.Status == model.RowUpdated && variant != nil {
		if err := w.store.UpsertVariant(ctx, *variant); err != nil {
			w.logger.Warn("variant mirror upsert failed",
				zap.String("upload_id", o.UploadID),
				zap.String("sku", o.SKU),
				zap.String("variant_id", variant.VariantID),
				zap.Error(err),
			)
			upsertErr = err
		}
	}

	if err := w.store.AppendRowOutcome(ctx, o); err != nil {
		w.logger.Error("row outcome append failed",
			zap.String("upload_id", o.UploadID),
			zap.Int("row", o.RowIndex),
			zap.String("sku", o.SKU),
			zap.Error(err),
		)
		return err
	}
	return upsertErr
}

// UpsertVariant is the single-variant path, outside any upload job.
func (w *Writer) UpsertVariant(ctx context.Context, u model.VariantUpdate) error {
	return w.store.UpsertVariant(ctx, u)
}

// RefreshProgress re-derives the job counters from its stored outcomes.
func (w *Writer) RefreshProgress(ctx context.Context, uploadID string, attempt int) (model.JobProgress, error) {
	counts, err := w.store.CountRowOutcomes(ctx, uploadID, attempt)
	if err != nil {
		return model.JobProgress{}, fmt.Errorf("refresh progress: %w", err)
	}
	p := progress.FromCounts(counts)
	if err := w.store.UpdateJobProgress(ctx, uploadID, p); err != nil {
		return p, fmt.Errorf("refresh progress: %w", err)
	}
	return p, nil
}
