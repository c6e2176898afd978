package shopify

import (
	"context"
	"errors"
	"strings"

	"shopify-preorder-sync/internal/adapters/shopify/dto"
)

const TopicInventoryLevelsUpdate = "INVENTORY_LEVELS_UPDATE"

type WebhookService interface {
	RegisterWebhook(ctx context.Context, topic string, callbackURL string) (string, error)
}

func (c *Client) RegisterWebhook(ctx context.Context, topic string, callbackURL string) (string, error) {
	if strings.TrimSpace(callbackURL) == "" {
		return "", errors.New("shopify webhook callback url is required")
	}

	query := `
mutation webhookSubscriptionCreate($topic: WebhookSubscriptionTopic!, $callbackUrl: URL!) {
	webhookSubscriptionCreate(topic: $topic, webhookSubscription: {callbackUrl: $callbackUrl, format: JSON}) {
		webhookSubscription { id }
		userErrors { field message }
	}
}`

	var data dto.WebhookSubscriptionCreateData
	if err := c.graphqlRequest(ctx, query, map[string]any{
		"topic":       topic,
		"callbackUrl": callbackURL,
	}, &data); err != nil {
		return "", err
	}
	if err := userErrorsToError("webhookSubscriptionCreate", data.WebhookSubscriptionCreate.UserErrors); err != nil {
		return "", err
	}
	if data.WebhookSubscriptionCreate.WebhookSubscription == nil {
		return "", errors.New("shopify webhook subscription create returned no subscription")
	}
	return data.WebhookSubscriptionCreate.WebhookSubscription.ID, nil
}
