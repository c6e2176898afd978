package shopify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"shopify-preorder-sync/internal/adapters/shopify/dto"
	"shopify-preorder-sync/internal/domain/model"
)

// VariantService covers every variant lookup the preorder flows need.
type VariantService interface {
	ProductByHandle(ctx context.Context, handle string) (*Product, error)
	VariantsBySKUs(ctx context.Context, skus []string) ([]model.ResolvedVariant, error)
	VariantByInventoryItem(ctx context.Context, inventoryItemID string, namespace string) (*model.PreorderState, error)
	ListPreorderVariants(ctx context.Context, namespace string, limit int) ([]model.PreorderVariant, error)
}

type Product struct {
	ID       string
	Title    string
	Handle   string
	Variants []model.ResolvedVariant
}

const (
	productVariantsPageSize = 250
	skuSearchPageSize       = 50
	listProductsPageSize    = 50
	listVariantsPageSize    = 100

	gidInventoryItemPrefix = "gid://shopify/InventoryItem/"
)

func (c *Client) ProductByHandle(ctx context.Context, handle string) (*Product, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, errors.New("shopify product handle is required")
	}

	query := `
query productByHandle($handle: String!, $first: Int!) {
	productByHandle(handle: $handle) {
		id
		title
		handle
		variants(first: $first) {
			nodes { id sku inventoryPolicy inventoryItem { id } }
		}
	}
}`

	var data dto.ProductByHandleData
	if err := c.graphqlRequest(ctx, query, map[string]any{
		"handle": handle,
		"first":  productVariantsPageSize,
	}, &data); err != nil {
		return nil, err
	}
	if data.ProductByHandle == nil {
		return nil, nil
	}

	p := data.ProductByHandle
	product := &Product{
		ID:       p.ID,
		Title:    p.Title,
		Handle:   p.Handle,
		Variants: make([]model.ResolvedVariant, 0, len(p.Variants.Nodes)),
	}
	for _, v := range p.Variants.Nodes {
		resolved := mapVariant(v)
		resolved.ProductID = p.ID
		resolved.ProductTitle = p.Title
		resolved.Handle = p.Handle
		product.Variants = append(product.Variants, resolved)
	}
	return product, nil
}

// VariantsBySKUs runs one productVariants search for the whole chunk and pages
// through it. Callers keep the chunk small enough for the query-string limit.
func (c *Client) VariantsBySKUs(ctx context.Context, skus []string) ([]model.ResolvedVariant, error) {
	searchQuery := buildSKUSearchQuery(skus)
	if searchQuery == "" {
		return nil, nil
	}

	query := `
query variantsBySku($first: Int!, $query: String!, $after: String) {
	productVariants(first: $first, query: $query, after: $after) {
		nodes {
			id
			sku
			inventoryPolicy
			inventoryItem { id }
			product { id title handle }
		}
		pageInfo { hasNextPage endCursor }
	}
}`

	var (
		out    []model.ResolvedVariant
		cursor string
	)
	for {
		variables := map[string]any{
			"first": skuSearchPageSize,
			"query": searchQuery,
		}
		if cursor != "" {
			variables["after"] = cursor
		}

		var data dto.ProductVariantsSearchData
		if err := c.graphqlRequest(ctx, query, variables, &data); err != nil {
			return nil, err
		}
		for _, v := range data.ProductVariants.Nodes {
			out = append(out, mapVariant(v))
		}

		page := data.ProductVariants.PageInfo
		if !page.HasNextPage || page.EndCursor == "" {
			break
		}
		cursor = page.EndCursor
	}
	return out, nil
}

// VariantByInventoryItem returns nil when the inventory item has no variant.
func (c *Client) VariantByInventoryItem(ctx context.Context, inventoryItemID string, namespace string) (*model.PreorderState, error) {
	gid := InventoryItemGID(inventoryItemID)
	if gid == "" {
		return nil, errors.New("shopify inventory item id is required")
	}

	query := `
query variantByInventoryItem($id: ID!, $namespace: String!) {
	inventoryItem(id: $id) {
		id
		variant {
			id
			sku
			inventoryPolicy
			product { id title handle }
			isPreorder: metafield(namespace: $namespace, key: "is_preorder") { value }
			preorderLimit: metafield(namespace: $namespace, key: "preorder_limit") { value }
		}
	}
}`

	var data dto.InventoryItemVariantData
	if err := c.graphqlRequest(ctx, query, map[string]any{
		"id":        gid,
		"namespace": namespace,
	}, &data); err != nil {
		return nil, err
	}
	if data.InventoryItem == nil || data.InventoryItem.Variant == nil {
		return nil, nil
	}

	v := *data.InventoryItem.Variant
	state := &model.PreorderState{ResolvedVariant: mapVariant(v)}
	state.InventoryItemID = gid
	if v.IsPreorder != nil {
		state.IsPreorder = strings.EqualFold(strings.TrimSpace(v.IsPreorder.Value), "true")
	}
	if v.PreorderLimit != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(v.PreorderLimit.Value)); err == nil {
			state.PreorderLimit = &n
		}
	}
	return state, nil
}

func (c *Client) ListPreorderVariants(ctx context.Context, namespace string, limit int) ([]model.PreorderVariant, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
query preorderProducts($first: Int!, $after: String) {
	products(first: $first, after: $after, sortKey: TITLE) {
		nodes {
			id
			title
			handle
			variants(first: %d) {
				nodes {
					id
					sku
					title
					inventoryPolicy
					inventoryQuantity
					inventoryItem { id }
					isPreorder: metafield(namespace: %q, key: "is_preorder") { value }
					preorderMessage: metafield(namespace: %q, key: "preorder_message") { value }
					preorderLimit: metafield(namespace: %q, key: "preorder_limit") { value }
				}
			}
		}
		pageInfo { hasNextPage endCursor }
	}
}`, listVariantsPageSize, namespace, namespace, namespace)

	var (
		out    []model.PreorderVariant
		cursor string
	)
	for len(out) < limit {
		variables := map[string]any{"first": listProductsPageSize}
		if cursor != "" {
			variables["after"] = cursor
		}

		var data dto.ProductsQueryData
		if err := c.graphqlRequest(ctx, query, variables, &data); err != nil {
			return nil, err
		}

		for _, p := range data.Products.Nodes {
			for _, v := range p.Variants.Nodes {
				if v.IsPreorder == nil || !strings.EqualFold(strings.TrimSpace(v.IsPreorder.Value), "true") {
					continue
				}
				item := model.PreorderVariant{
					ResolvedVariant: mapVariant(v),
					VariantTitle:    v.Title,
					StockAvailable:  v.InventoryQuantity,
					IsPreorder:      true,
				}
				item.ProductID = p.ID
				item.ProductTitle = p.Title
				item.Handle = p.Handle
				if v.PreorderLimit != nil {
					item.PreorderLimit = v.PreorderLimit.Value
				}
				if v.PreorderMessage != nil {
					item.PreorderMessage = v.PreorderMessage.Value
				}
				out = append(out, item)
				if len(out) >= limit {
					return out, nil
				}
			}
		}

		page := data.Products.PageInfo
		if !page.HasNextPage || page.EndCursor == "" {
			break
		}
		cursor = page.EndCursor
	}
	return out, nil
}

func mapVariant(v dto.ShopifyVariant) model.ResolvedVariant {
	resolved := model.ResolvedVariant{
		VariantID:       strings.TrimSpace(v.ID),
		SKU:             strings.TrimSpace(v.SKU),
		InventoryPolicy: strings.ToUpper(strings.TrimSpace(v.InventoryPolicy)),
	}
	if v.InventoryItem != nil {
		resolved.InventoryItemID = strings.TrimSpace(v.InventoryItem.ID)
	}
	if v.Product != nil {
		resolved.ProductID = strings.TrimSpace(v.Product.ID)
		resolved.ProductTitle = v.Product.Title
		resolved.Handle = v.Product.Handle
	}
	return resolved
}

func buildSearchQuery(field, value string) string {
	queryValue := strings.TrimSpace(value)
	if strings.ContainsAny(queryValue, " \":()") {
		queryValue = strings.ReplaceAll(queryValue, `"`, `\"`)
		queryValue = fmt.Sprintf(`"%s"`, queryValue)
	}
	return fmt.Sprintf("%s:%s", field, queryValue)
}

// buildSKUSearchQuery joins sku terms with OR, skipping blanks.
func buildSKUSearchQuery(skus []string) string {
	terms := make([]string, 0, len(skus))
	for _, sku := range skus {
		if strings.TrimSpace(sku) == "" {
			continue
		}
		terms = append(terms, buildSearchQuery("sku", sku))
	}
	return strings.Join(terms, " OR ")
}

// SKUSearchQueryLen is the length of the search string VariantsBySKUs would send.
func SKUSearchQueryLen(skus []string) int {
	return len(buildSKUSearchQuery(skus))
}

// InventoryItemGID accepts a numeric id (as sent by webhooks) or a full gid.
func InventoryItemGID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "gid://") {
		return raw
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if digits == "" {
		return ""
	}
	return gidInventoryItemPrefix + digits
}

// NumericID extracts the trailing number of a gid such as gid://shopify/ProductVariant/123.
func NumericID(gid string) (int64, error) {
	gid = strings.TrimSpace(gid)
	idx := strings.LastIndex(gid, "/")
	tail := gid
	if idx >= 0 {
		tail = gid[idx+1:]
	}
	if q := strings.IndexByte(tail, '?'); q >= 0 {
		tail = tail[:q]
	}
	n, err := strconv.ParseInt(tail, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("shopify: invalid gid %q", gid)
	}
	return n, nil
}
