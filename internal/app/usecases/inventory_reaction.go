package usecases

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"shopify-preorder-sync/internal/adapters/mirror"
	"shopify-preorder-sync/internal/adapters/shopify"
	"shopify-preorder-sync/internal/app/planner"
	"shopify-preorder-sync/internal/domain/model"
	"shopify-preorder-sync/internal/logging"
	"shopify-preorder-sync/internal/metrics"
)

type InventoryStore interface {
	AppendWebhookDebug(ctx context.Context, e model.WebhookDebugEntry) error
	ApplyInventorySnapshot(ctx context.Context, d model.InventoryDelivery) (model.SnapshotTransition, error)
}

// LimitMirror records a limit change in the local variant mirror.
type LimitMirror interface {
	UpsertVariant(ctx context.Context, u model.VariantUpdate) error
}

type InventoryShopify interface {
	VariantByInventoryItem(ctx context.Context, inventoryItemID string, namespace string) (*model.PreorderState, error)
	SetMetafields(ctx context.Context, inputs []shopify.MetafieldInput) error
	UpdateInventoryPolicy(ctx context.Context, variantID string, policy string) error
}

// ReactionResult describes what one delivery changed.
type ReactionResult struct {
	Duplicate     bool                     `json:"duplicate,omitempty"`
	Transition    model.SnapshotTransition `json:"transition"`
	VariantID     string                   `json:"variantId,omitempty"`
	PolicyFlipped bool                     `json:"policyFlipped,omitempty"`
	LimitBefore   *int                     `json:"limitBefore,omitempty"`
	LimitAfter    *int                     `json:"limitAfter,omitempty"`
}

type InventoryReaction struct {
	store     InventoryStore
	variants  LimitMirror
	shopify   InventoryShopify
	namespace string
	notifier  logging.Notifier
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewInventoryReaction(store InventoryStore, variants LimitMirror, shop InventoryShopify, namespace string, notifier logging.Notifier, logger *zap.Logger, m *metrics.Metrics) *InventoryReaction {
	if notifier == nil {
		notifier = logging.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &InventoryReaction{
		store:     store,
		variants:  variants,
		shopify:   shop,
		namespace: namespace,
		notifier:  notifier,
		logger:    logger,
		metrics:   m,
	}
}

// Handle applies one inventory level delivery. Only a failure to persist the
// snapshot is returned; the remote follow-ups are logged and dropped.
func (r *InventoryReaction) Handle(ctx context.Context, d model.InventoryDelivery, debug *model.WebhookDebugEntry) (ReactionResult, error) {
	log := r.logger.With(
		zap.String("inventory_item_id", d.InventoryItemID),
		zap.String("location_id", d.LocationID),
		zap.String("delivery_id", d.DeliveryID),
	)

	if debug != nil {
		if err := r.store.AppendWebhookDebug(ctx, *debug); err != nil {
			log.Warn("webhook debug write failed", zap.Error(err))
		}
	}

	tr, err := r.store.ApplyInventorySnapshot(ctx, d)
	if errors.Is(err, mirror.ErrDuplicateDelivery) {
		r.metrics.WebhookDeliveries.WithLabelValues("duplicate").Inc()
		log.Info("inventory delivery already processed")
		return ReactionResult{Duplicate: true}, nil
	}
	if err != nil {
		r.metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
		return ReactionResult{}, fmt.Errorf("apply inventory snapshot: %w", err)
	}
	r.metrics.WebhookDeliveries.WithLabelValues("processed").Inc()

	result := ReactionResult{Transition: tr}
	log.Info("inventory snapshot applied",
		zap.Int("old", tr.Old),
		zap.Int("new", tr.New),
		zap.Int("delta", tr.Delta),
		zap.Bool("first_sight", tr.FirstSight),
	)
	if tr.Restocked() {
		r.metrics.RestockEvents.Inc()
	}
	if !tr.WentOutOfStock() && !tr.Restocked() {
		return result, nil
	}

	state, err := r.shopify.VariantByInventoryItem(ctx, d.InventoryItemID, r.namespace)
	if err != nil {
		log.Warn("variant lookup by inventory item failed", zap.Error(err))
		return result, nil
	}
	if state == nil {
		log.Debug("no variant behind inventory item")
		return result, nil
	}
	result.VariantID = state.VariantID
	log = log.With(zap.String("variant_id", state.VariantID), zap.String("sku", state.SKU))

	if tr.WentOutOfStock() {
		result.PolicyFlipped = r.allowOversell(ctx, log, state)
	}
	if tr.Restocked() && state.PreorderLimit != nil {
		before := *state.PreorderLimit
		after := before - tr.Delta
		if after < 0 {
			after = 0
		}
		result.LimitBefore = &before
		if r.writeLimit(ctx, log, state, after) {
			result.LimitAfter = &after
		}
	}
	return result, nil
}

// allowOversell flips a sold-out preorder variant to CONTINUE.
func (r *InventoryReaction) allowOversell(ctx context.Context, log *zap.Logger, state *model.PreorderState) bool {
	if !state.IsPreorder || state.PreorderLimit == nil || *state.PreorderLimit <= 0 {
		return false
	}
	if state.InventoryPolicy == model.PolicyContinue {
		return false
	}
	if err := r.shopify.UpdateInventoryPolicy(ctx, state.VariantID, model.PolicyContinue); err != nil {
		r.metrics.PolicyUpdates.WithLabelValues(model.PolicyContinue, "failed").Inc()
		log.Warn("oversell policy flip failed", zap.Error(err))
		return false
	}
	r.metrics.PolicyUpdates.WithLabelValues(model.PolicyContinue, "ok").Inc()
	log.Info("variant sold out, preorder overselling enabled", zap.Int("preorder_limit", *state.PreorderLimit))
	r.notifier.Log(fmt.Sprintf("SKU %s sold out: preorder selling enabled (limit %d)", state.SKU, *state.PreorderLimit))
	return true
}

// writeLimit updates the remote limit first and mirrors it only on success.
func (r *InventoryReaction) writeLimit(ctx context.Context, log *zap.Logger, state *model.PreorderState, limit int) bool {
	value := strconv.Itoa(limit)
	err := r.shopify.SetMetafields(ctx, []shopify.MetafieldInput{{
		OwnerID:   state.VariantID,
		Namespace: r.namespace,
		Key:       planner.KeyPreorderLimit,
		Type:      shopify.MetafieldTypeInteger,
		Value:     value,
	}})
	if err != nil {
		log.Warn("preorder limit write failed", zap.Int("preorder_limit", limit), zap.Error(err))
		return false
	}
	r.metrics.LimitDecrements.Inc()
	log.Info("preorder limit decremented after restock", zap.Int("preorder_limit", limit))

	if err := r.variants.UpsertVariant(ctx, model.VariantUpdate{
		VariantID:       state.VariantID,
		ProductID:       state.ProductID,
		Handle:          state.Handle,
		SKU:             state.SKU,
		InventoryItemID: state.InventoryItemID,
		PreorderLimit:   &value,
	}); err != nil {
		log.Warn("preorder limit mirror write failed", zap.Error(err))
	}
	return true
}
