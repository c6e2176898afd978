package model

import "time"

const (
	PolicyContinue = "CONTINUE"
	PolicyDeny     = "DENY"
)

// VariantRecord is the mirror's last-write-wins view of one remote variant.
type VariantRecord struct {
	VariantID       string    `json:"variantId"`
	ProductID       string    `json:"productId,omitempty"`
	Handle          string    `json:"handle,omitempty"`
	SKU             string    `json:"sku,omitempty"`
	IsPreorder      *bool     `json:"isPreorder,omitempty"`
	PreorderLimit   *string   `json:"preorderLimit,omitempty"`
	PreorderMessage *string   `json:"preorderMessage,omitempty"`
	InventoryItemID string    `json:"inventoryItemId,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// VariantUpdate is a partial upsert. Empty strings and nil pointers keep the stored value.
type VariantUpdate struct {
	VariantID       string
	ProductID       string
	Handle          string
	SKU             string
	InventoryItemID string
	IsPreorder      *bool
	PreorderLimit   *string
	PreorderMessage *string
}

// ResolvedVariant is what the remote lookups return for one SKU.
type ResolvedVariant struct {
	VariantID       string `json:"variantId"`
	ProductID       string `json:"productId"`
	ProductTitle    string `json:"productTitle,omitempty"`
	Handle          string `json:"handle"`
	SKU             string `json:"sku"`
	InventoryItemID string `json:"inventoryItemId,omitempty"`
	InventoryPolicy string `json:"inventoryPolicy,omitempty"`
}

// PreorderVariant is a variant currently flagged as preorder on the store.
type PreorderVariant struct {
	ResolvedVariant
	VariantTitle    string `json:"variantTitle,omitempty"`
	StockAvailable  *int   `json:"stockAvailable,omitempty"`
	IsPreorder      bool   `json:"isPreorder"`
	PreorderLimit   string `json:"preorderLimit"`
	PreorderMessage string `json:"preorderMessage"`
}

type OrderedQuantity struct {
	SKU     string
	Ordered int
}
