package dto

type ShopifyInventoryItemRef struct {
	ID string `json:"id,omitempty"`
}

type ShopifyProductRef struct {
	ID     string `json:"id,omitempty"`
	Title  string `json:"title,omitempty"`
	Handle string `json:"handle,omitempty"`
}

type MetafieldValue struct {
	Value string `json:"value"`
}

type ShopifyVariant struct {
	ID                string                   `json:"id,omitempty"`
	SKU               string                   `json:"sku,omitempty"`
	Title             string                   `json:"title,omitempty"`
	InventoryPolicy   string                   `json:"inventoryPolicy,omitempty"`
	InventoryQuantity *int                     `json:"inventoryQuantity,omitempty"`
	InventoryItem     *ShopifyInventoryItemRef `json:"inventoryItem,omitempty"`
	Product           *ShopifyProductRef       `json:"product,omitempty"`

	IsPreorder      *MetafieldValue `json:"isPreorder,omitempty"`
	PreorderLimit   *MetafieldValue `json:"preorderLimit,omitempty"`
	PreorderMessage *MetafieldValue `json:"preorderMessage,omitempty"`
}

type ShopifyVariantConnection struct {
	Nodes    []ShopifyVariant `json:"nodes,omitempty"`
	PageInfo ShopifyPageInfo  `json:"pageInfo,omitempty"`
}

type ShopifyProduct struct {
	ID       string                   `json:"id,omitempty"`
	Title    string                   `json:"title,omitempty"`
	Handle   string                   `json:"handle,omitempty"`
	Variants ShopifyVariantConnection `json:"variants,omitempty"`
}

type ShopifyProductConnection struct {
	Nodes    []ShopifyProduct `json:"nodes,omitempty"`
	PageInfo ShopifyPageInfo  `json:"pageInfo,omitempty"`
}

type ProductByHandleData struct {
	ProductByHandle *ShopifyProduct `json:"productByHandle"`
}

type ProductVariantsSearchData struct {
	ProductVariants ShopifyVariantConnection `json:"productVariants"`
}

type InventoryItemVariantData struct {
	InventoryItem *struct {
		ID      string          `json:"id"`
		Variant *ShopifyVariant `json:"variant"`
	} `json:"inventoryItem"`
}

type ProductsQueryData struct {
	Products ShopifyProductConnection `json:"products"`
}

// VariantRESTPayload is the body of PUT /variants/{id}.json.
type VariantRESTPayload struct {
	Variant VariantRESTFields `json:"variant"`
}

type VariantRESTFields struct {
	ID              int64  `json:"id"`
	InventoryPolicy string `json:"inventory_policy,omitempty"`
}
