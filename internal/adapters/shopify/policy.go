package shopify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"shopify-preorder-sync/internal/adapters/shopify/dto"
	"shopify-preorder-sync/internal/domain/model"
)

type PolicyService interface {
	UpdateInventoryPolicy(ctx context.Context, variantID string, policy string) error
}

// UpdateInventoryPolicy sets CONTINUE (oversell allowed) or DENY on one variant.
func (c *Client) UpdateInventoryPolicy(ctx context.Context, variantID string, policy string) error {
	policy = strings.ToUpper(strings.TrimSpace(policy))
	if policy != model.PolicyContinue && policy != model.PolicyDeny {
		return fmt.Errorf("shopify inventory policy %q is not supported", policy)
	}
	id, err := NumericID(variantID)
	if err != nil {
		return err
	}

	body := dto.VariantRESTPayload{
		Variant: dto.VariantRESTFields{
			ID:              id,
			InventoryPolicy: strings.ToLower(policy),
		},
	}
	if _, err := c.restRequest(ctx, http.MethodPut, fmt.Sprintf("variants/%d.json", id), body); err != nil {
		return fmt.Errorf("shopify variant %d policy %s: %w", id, policy, err)
	}
	return nil
}
