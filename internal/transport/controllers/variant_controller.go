package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"shopify-preorder-sync/internal/adapters/shopify"
	"shopify-preorder-sync/internal/app/usecases"
	"shopify-preorder-sync/internal/domain/model"
)

type VariantEditor interface {
	Update(ctx context.Context, req usecases.VariantUpdateRequest) (usecases.VariantUpdateResult, error)
	Delete(ctx context.Context, variantID string) (usecases.VariantDeleteResult, error)
}

type PreorderCatalog interface {
	List(ctx context.Context, limit int) ([]model.PreorderVariant, error)
}

type VariantController struct {
	editor  VariantEditor
	catalog PreorderCatalog
}

func NewVariantController(editor VariantEditor, catalog PreorderCatalog) *VariantController {
	return &VariantController{editor: editor, catalog: catalog}
}

type variantDeleteRequest struct {
	VariantID string `json:"variantId" binding:"required"`
}

// PreorderProducts handles GET /api/preorder-products
func (vc *VariantController) PreorderProducts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	variants, err := vc.catalog.List(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusBadGateway, "Failed to list preorder products", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"variants": variants, "count": len(variants)})
}

// UpdateMetafields handles POST /api/variant-metafields
func (vc *VariantController) UpdateMetafields(c *gin.Context) {
	var req usecases.VariantUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request", err)
		return
	}

	res, err := vc.editor.Update(c.Request.Context(), req)
	switch {
	case errors.Is(err, usecases.ErrInvalidVariantRequest):
		respondError(c, http.StatusBadRequest, "Invalid request", err)
		return
	case shopify.IsRemoteError(err):
		respondError(c, http.StatusBadRequest, "Shopify rejected the update", err)
		return
	case err != nil:
		respondError(c, http.StatusBadGateway, "Failed to update variant", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"variant":     res.Variant,
		"policy":      res.Policy,
		"policyError": res.PolicyError,
	})
}

// Delete handles POST /api/variant-delete. Partial failures answer 207.
func (vc *VariantController) Delete(c *gin.Context) {
	var req variantDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request", err)
		return
	}

	res, err := vc.editor.Delete(c.Request.Context(), req.VariantID)
	if errors.Is(err, usecases.ErrInvalidVariantRequest) {
		respondError(c, http.StatusBadRequest, "Invalid request", err)
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to delete variant preorder data", err)
		return
	}

	status := http.StatusOK
	if !res.OK() {
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{
		"success":           res.OK(),
		"variantId":         req.VariantID,
		"metafieldsCleared": res.MetafieldsCleared,
		"policyUpdated":     res.PolicyUpdated,
		"tablesUpdated":     res.TablesUpdated,
		"errors":            res.Errors,
	})
}
