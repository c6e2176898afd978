package controllers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopify-preorder-sync/internal/app/usecases"
	"shopify-preorder-sync/internal/domain/model"
	"shopify-preorder-sync/internal/metrics"
)

const (
	HeaderHmac       = "X-Shopify-Hmac-Sha256"
	HeaderTopic      = "X-Shopify-Topic"
	HeaderShopDomain = "X-Shopify-Shop-Domain"
	HeaderWebhookID  = "X-Shopify-Webhook-Id"

	maxWebhookBody = 1 << 20
)

type InventoryHandler interface {
	Handle(ctx context.Context, d model.InventoryDelivery, debug *model.WebhookDebugEntry) (usecases.ReactionResult, error)
}

type WebhookController struct {
	secret   string
	reaction InventoryHandler
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewWebhookController(secret string, reaction InventoryHandler, m *metrics.Metrics, logger *zap.Logger) *WebhookController {
	if m == nil {
		m = metrics.Nop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookController{
		secret:   strings.TrimSpace(secret),
		reaction: reaction,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type inventoryLevelPayload struct {
	InventoryItemID json.Number `json:"inventory_item_id"`
	LocationID      json.Number `json:"location_id"`
	Available       *int        `json:"available"`
}

// VerifySignature checks a base64 HMAC-SHA256 of body against the header value.
func VerifySignature(secret string, body []byte, signature string) bool {
	given, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), given)
}

// Inventory handles POST /webhooks/shopify/inventory. The signature is
// checked against the raw body before anything is parsed.
func (wc *WebhookController) Inventory(c *gin.Context) {
	if wc.secret == "" {
		respondError(c, http.StatusInternalServerError, "Webhook secret is not configured", nil)
		return
	}
	signature := c.GetHeader(HeaderHmac)
	if signature == "" {
		wc.reject(c)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Failed to read body", err)
		return
	}
	if !VerifySignature(wc.secret, body, signature) {
		wc.reject(c)
		return
	}

	var payload inventoryLevelPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid payload", err)
		return
	}
	if payload.InventoryItemID.String() == "" {
		respondError(c, http.StatusBadRequest, "inventory_item_id is required", nil)
		return
	}

	received := wc.now()
	delivery := model.InventoryDelivery{
		DeliveryID:      c.GetHeader(HeaderWebhookID),
		Topic:           c.GetHeader(HeaderTopic),
		ShopDomain:      c.GetHeader(HeaderShopDomain),
		InventoryItemID: payload.InventoryItemID.String(),
		LocationID:      payload.LocationID.String(),
		ReceivedAt:      received,
	}
	if payload.Available != nil {
		delivery.Available = *payload.Available
	}
	debug := &model.WebhookDebugEntry{
		InventoryItemID: delivery.InventoryItemID,
		Available:       payload.Available,
		LocationID:      delivery.LocationID,
		ReceivedAt:      received,
		Headers: map[string]string{
			strings.ToLower(HeaderHmac):       signature,
			strings.ToLower(HeaderShopDomain): delivery.ShopDomain,
			strings.ToLower(HeaderTopic):      delivery.Topic,
		},
		Payload: body,
	}

	res, err := wc.reaction.Handle(c.Request.Context(), delivery, debug)
	if err != nil {
		wc.logger.Error("inventory webhook failed", zap.String("inventory_item_id", delivery.InventoryItemID), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Failed to process inventory update", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "duplicate": res.Duplicate})
}

func (wc *WebhookController) reject(c *gin.Context) {
	wc.metrics.WebhookDeliveries.WithLabelValues("unauthorized").Inc()
	c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
}
