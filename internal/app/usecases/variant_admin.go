package usecases

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"shopify-preorder-sync/internal/adapters/shopify"
	"shopify-preorder-sync/internal/app/executor"
	"shopify-preorder-sync/internal/app/planner"
	"shopify-preorder-sync/internal/domain/model"
)

// ErrInvalidVariantRequest marks a single-variant request that cannot be applied.
var ErrInvalidVariantRequest = errors.New("invalid variant request")

type VariantMirror interface {
	UpsertVariant(ctx context.Context, u model.VariantUpdate) error
	DeleteVariant(ctx context.Context, variantID string) error
}

// VariantUpdateRequest mirrors the single-variant editor. A nil field is left alone.
type VariantUpdateRequest struct {
	VariantID       string  `json:"variantId"`
	IsPreorder      *bool   `json:"isPreorder"`
	PreorderLimit   *int    `json:"preorderLimit"`
	PreorderMessage *string `json:"preorderMessage"`
	SKU             string  `json:"sku"`
	ProductID       string  `json:"productId"`
	ProductHandle   string  `json:"productHandle"`
	InventoryItemID string  `json:"inventoryItemId"`
}

type VariantFields struct {
	VariantID       string  `json:"variantId"`
	IsPreorder      *bool   `json:"isPreorder,omitempty"`
	PreorderLimit   *string `json:"preorderLimit,omitempty"`
	PreorderMessage *string `json:"preorderMessage,omitempty"`
}

type VariantUpdateResult struct {
	Variant     VariantFields `json:"variant"`
	Policy      string        `json:"policy,omitempty"`
	PolicyError string        `json:"policyError,omitempty"`
}

// PartError is one failed step of a multi-step variant operation.
type PartError struct {
	Type    string `json:"type"`
	Details string `json:"details"`
}

type VariantDeleteResult struct {
	MetafieldsCleared bool        `json:"metafieldsCleared"`
	PolicyUpdated     bool        `json:"policyUpdated"`
	TablesUpdated     bool        `json:"tablesUpdated"`
	Errors            []PartError `json:"errors"`
}

func (r VariantDeleteResult) OK() bool {
	return len(r.Errors) == 0
}

type VariantAdmin struct {
	executor MutationExecutor
	policies executor.PolicyAPI
	mirror   VariantMirror
	logger   *zap.Logger
}

func NewVariantAdmin(exec MutationExecutor, policies executor.PolicyAPI, mirror VariantMirror, logger *zap.Logger) *VariantAdmin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VariantAdmin{executor: exec, policies: policies, mirror: mirror, logger: logger}
}

// Update writes the supplied fields to one variant. An empty message removes
// the field. The selling policy follows isPreorder when it is given.
func (a *VariantAdmin) Update(ctx context.Context, req VariantUpdateRequest) (VariantUpdateResult, error) {
	if req.VariantID == "" {
		return VariantUpdateResult{}, fmt.Errorf("%w: variantId is required", ErrInvalidVariantRequest)
	}
	if req.PreorderLimit != nil && *req.PreorderLimit < 0 {
		return VariantUpdateResult{}, fmt.Errorf("%w: preorderLimit must be a non-negative number", ErrInvalidVariantRequest)
	}

	change := planner.RowChange{RowIndex: 0, SKU: req.SKU, VariantID: req.VariantID}
	fields := VariantFields{VariantID: req.VariantID}
	if req.IsPreorder != nil {
		v := strconv.FormatBool(*req.IsPreorder)
		change.Fields = append(change.Fields, planner.FieldWrite{Key: planner.KeyIsPreorder, Type: shopify.MetafieldTypeBoolean, Value: &v})
		fields.IsPreorder = req.IsPreorder
	}
	if req.PreorderLimit != nil {
		v := strconv.Itoa(*req.PreorderLimit)
		change.Fields = append(change.Fields, planner.FieldWrite{Key: planner.KeyPreorderLimit, Type: shopify.MetafieldTypeInteger, Value: &v})
		fields.PreorderLimit = &v
	}
	if req.PreorderMessage != nil {
		w := planner.FieldWrite{Key: planner.KeyPreorderMessage, Type: shopify.MetafieldTypeText}
		if *req.PreorderMessage != "" {
			msg := *req.PreorderMessage
			w.Value = &msg
		}
		change.Fields = append(change.Fields, w)
		fields.PreorderMessage = req.PreorderMessage
	}
	if len(change.Fields) == 0 {
		return VariantUpdateResult{}, fmt.Errorf("%w: no metafields were provided to update", ErrInvalidVariantRequest)
	}

	plan, err := planner.Build([]planner.RowChange{change}, shopify.MetafieldsSetBatchSize)
	if err != nil {
		return VariantUpdateResult{}, err
	}
	var rowErr error
	report := a.executor.Execute(ctx, plan, func(r executor.RowResult) { rowErr = r.Err })
	if rowErr != nil {
		return VariantUpdateResult{}, fmt.Errorf("update variant %s: %w", req.VariantID, rowErr)
	}

	result := VariantUpdateResult{Variant: fields, Policy: change.Policy()}
	if len(report.PolicyFailures) > 0 {
		result.PolicyError = report.PolicyFailures[0].Err.Error()
	}

	if err := a.mirror.UpsertVariant(ctx, model.VariantUpdate{
		VariantID:       req.VariantID,
		ProductID:       req.ProductID,
		Handle:          req.ProductHandle,
		SKU:             req.SKU,
		InventoryItemID: req.InventoryItemID,
		IsPreorder:      fields.IsPreorder,
		PreorderLimit:   fields.PreorderLimit,
		PreorderMessage: fields.PreorderMessage,
	}); err != nil {
		a.logger.Warn("variant mirror upsert failed", zap.String("variant_id", req.VariantID), zap.Error(err))
	}
	a.logger.Info("variant preorder fields updated",
		zap.String("variant_id", req.VariantID),
		zap.String("sku", req.SKU),
		zap.String("policy", result.Policy),
	)
	return result, nil
}

// Delete removes every preorder field from the variant, stops overselling and
// drops its mirror row. Each step runs even when an earlier one failed.
func (a *VariantAdmin) Delete(ctx context.Context, variantID string) (VariantDeleteResult, error) {
	result := VariantDeleteResult{Errors: []PartError{}}
	if variantID == "" {
		return result, fmt.Errorf("%w: variantId is required", ErrInvalidVariantRequest)
	}

	plan, err := planner.Build([]planner.RowChange{planner.ClearAll(0, variantID)}, shopify.MetafieldsSetBatchSize)
	if err != nil {
		return result, err
	}
	var rowErr error
	report := a.executor.Execute(ctx, plan, func(r executor.RowResult) { rowErr = r.Err })

	switch {
	case rowErr == nil:
		result.MetafieldsCleared = true
		if len(report.PolicyFailures) > 0 {
			result.Errors = append(result.Errors, PartError{Type: "policy", Details: report.PolicyFailures[0].Err.Error()})
		} else {
			result.PolicyUpdated = report.PolicyUpdated > 0
		}
	default:
		result.Errors = append(result.Errors, PartError{Type: "metafields", Details: rowErr.Error()})
		if err := a.policies.UpdateInventoryPolicy(ctx, variantID, model.PolicyDeny); err != nil {
			result.Errors = append(result.Errors, PartError{Type: "policy", Details: err.Error()})
		} else {
			result.PolicyUpdated = true
		}
	}

	if err := a.mirror.DeleteVariant(ctx, variantID); err != nil {
		result.Errors = append(result.Errors, PartError{Type: "database", Details: err.Error()})
	} else {
		result.TablesUpdated = true
	}

	if !result.OK() {
		a.logger.Warn("variant preorder delete incomplete", zap.String("variant_id", variantID), zap.Any("errors", result.Errors))
	} else {
		a.logger.Info("variant preorder deleted", zap.String("variant_id", variantID), zap.Int("metafields_deleted", report.Deleted))
	}
	return result, nil
}
