package shopify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"shopify-preorder-sync/internal/adapters/shopify/dto"
)

type MetafieldService interface {
	SetMetafields(ctx context.Context, inputs []MetafieldInput) error
	GetVariantMetafield(ctx context.Context, variantID, namespace, key string) (*dto.ShopifyMetafield, error)
	DeleteMetafield(ctx context.Context, metafieldID string) error
}

type MetafieldInput struct {
	OwnerID   string
	Namespace string
	Key       string
	Type      string
	Value     string
}

const (
	MetafieldTypeBoolean = "boolean"
	MetafieldTypeInteger = "number_integer"
	MetafieldTypeText    = "single_line_text_field"

	// MetafieldsSetBatchSize is Shopify's hard cap on inputs per metafieldsSet call.
	MetafieldsSetBatchSize = 25
)

func (c *Client) SetMetafields(ctx context.Context, inputs []MetafieldInput) error {
	if len(inputs) == 0 {
		return nil
	}
	if len(inputs) > MetafieldsSetBatchSize {
		return fmt.Errorf("shopify metafieldsSet accepts at most %d inputs, got %d", MetafieldsSetBatchSize, len(inputs))
	}

	payload := make([]map[string]any, 0, len(inputs))
	for _, field := range inputs {
		if strings.TrimSpace(field.OwnerID) == "" || strings.TrimSpace(field.Key) == "" {
			return errors.New("shopify metafield owner id and key are required")
		}
		payload = append(payload, map[string]any{
			"ownerId":   field.OwnerID,
			"namespace": field.Namespace,
			"key":       field.Key,
			"type":      field.Type,
			"value":     field.Value,
		})
	}

	query := `
	mutation metafieldsSet($metafields: [MetafieldsSetInput!]!) {
		metafieldsSet(metafields: $metafields) {
			metafields { id namespace key value type }
			userErrors { field message code }
		}
	}`

	var data dto.MetafieldsSetData
	if err := c.graphqlRequest(ctx, query, map[string]any{"metafields": payload}, &data); err != nil {
		return err
	}
	return userErrorsToError("metafieldsSet", data.MetafieldsSet.UserErrors)
}

// GetVariantMetafield returns nil when the variant has no such metafield.
func (c *Client) GetVariantMetafield(ctx context.Context, variantID, namespace, key string) (*dto.ShopifyMetafield, error) {
	if strings.TrimSpace(variantID) == "" {
		return nil, errors.New("shopify variant id is required")
	}

	query := `
	query variantMetafield($id: ID!, $namespace: String!, $key: String!) {
		productVariant(id: $id) {
			id
			metafield(namespace: $namespace, key: $key) { id namespace key value type }
		}
	}`

	var data dto.VariantMetafieldData
	if err := c.graphqlRequest(ctx, query, map[string]any{
		"id":        variantID,
		"namespace": namespace,
		"key":       key,
	}, &data); err != nil {
		return nil, err
	}
	if data.ProductVariant == nil || data.ProductVariant.Metafield == nil || data.ProductVariant.Metafield.ID == "" {
		return nil, nil
	}
	return data.ProductVariant.Metafield, nil
}

// DeleteMetafield removes a metafield through the REST resource.
func (c *Client) DeleteMetafield(ctx context.Context, metafieldID string) error {
	id, err := NumericID(metafieldID)
	if err != nil {
		return err
	}
	_, err = c.restRequest(ctx, http.MethodDelete, fmt.Sprintf("metafields/%d.json", id), nil)
	return err
}
