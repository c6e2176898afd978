package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"shopify-preorder-sync/internal/adapters/shopify"
)

// InventoryWebhookPath is where Shopify delivers inventory level updates.
const InventoryWebhookPath = "/webhooks/shopify/inventory"

var ErrMissingBaseURL = errors.New("PUBLIC_BASE_URL must be set to an https URL to register webhooks")

type WebhookRegistrar interface {
	RegisterWebhook(ctx context.Context, topic string, callbackURL string) (string, error)
}

type WebhookRegistration struct {
	registrar WebhookRegistrar
	baseURL   string
	logger    *zap.Logger
}

type RegisteredWebhook struct {
	ID          string `json:"id"`
	CallbackURL string `json:"callbackUrl"`
}

func NewWebhookRegistration(registrar WebhookRegistrar, publicBaseURL string, logger *zap.Logger) *WebhookRegistration {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookRegistration{registrar: registrar, baseURL: strings.TrimSpace(publicBaseURL), logger: logger}
}

func (w *WebhookRegistration) RegisterInventory(ctx context.Context) (RegisteredWebhook, error) {
	if w.baseURL == "" {
		return RegisteredWebhook{}, ErrMissingBaseURL
	}
	callback := strings.TrimRight(w.baseURL, "/") + InventoryWebhookPath
	id, err := w.registrar.RegisterWebhook(ctx, shopify.TopicInventoryLevelsUpdate, callback)
	if err != nil {
		return RegisteredWebhook{}, fmt.Errorf("register inventory webhook: %w", err)
	}
	w.logger.Info("inventory webhook registered", zap.String("id", id), zap.String("callback_url", callback))
	return RegisteredWebhook{ID: id, CallbackURL: callback}, nil
}
