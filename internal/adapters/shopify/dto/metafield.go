package dto

type ShopifyMetafield struct {
	ID        string `json:"id,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Key       string `json:"key,omitempty"`
	Value     string `json:"value,omitempty"`
	Type      string `json:"type,omitempty"`
}

type MetafieldsSetData struct {
	MetafieldsSet struct {
		Metafields []ShopifyMetafield `json:"metafields,omitempty"`
		UserErrors []ShopifyUserError `json:"userErrors,omitempty"`
	} `json:"metafieldsSet"`
}

type VariantMetafieldData struct {
	ProductVariant *struct {
		ID        string            `json:"id"`
		Metafield *ShopifyMetafield `json:"metafield"`
	} `json:"productVariant"`
}

type WebhookSubscriptionCreateData struct {
	WebhookSubscriptionCreate struct {
		WebhookSubscription *struct {
			ID string `json:"id"`
		} `json:"webhookSubscription"`
		UserErrors []ShopifyUserError `json:"userErrors,omitempty"`
	} `json:"webhookSubscriptionCreate"`
}
