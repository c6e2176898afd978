package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopify-preorder-sync/internal/app/usecases"
)

type PreorderClearer interface {
	Run(ctx context.Context) (usecases.ClearSummary, error)
}

type OrderedImporter interface {
	Import(ctx context.Context, r io.Reader) (usecases.OrderedResult, error)
}

type InventoryWebhookRegistrar interface {
	RegisterInventory(ctx context.Context) (usecases.RegisteredWebhook, error)
}

// SchemaMigrator applies the mirror schema.
type SchemaMigrator func(ctx context.Context) error

type AdminController struct {
	clearer  PreorderClearer
	ordered  OrderedImporter
	webhooks InventoryWebhookRegistrar
	migrate  SchemaMigrator
	maxBytes int64
	logger   *zap.Logger
}

type AdminDeps struct {
	Clearer        PreorderClearer
	Ordered        OrderedImporter
	Webhooks       InventoryWebhookRegistrar
	Migrate        SchemaMigrator
	MaxUploadBytes int64
	Logger         *zap.Logger
}

func NewAdminController(deps AdminDeps) *AdminController {
	ac := &AdminController{
		clearer:  deps.Clearer,
		ordered:  deps.Ordered,
		webhooks: deps.Webhooks,
		migrate:  deps.Migrate,
		maxBytes: deps.MaxUploadBytes,
		logger:   deps.Logger,
	}
	if ac.maxBytes <= 0 {
		ac.maxBytes = defaultMaxUploadBytes
	}
	if ac.logger == nil {
		ac.logger = zap.NewNop()
	}
	return ac
}

// ClearPreorder handles POST /admin/clear-preorder
func (ac *AdminController) ClearPreorder(c *gin.Context) {
	summary, err := ac.clearer.Run(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusBadGateway, "Preorder clear failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "summary": summary})
}

// UploadOrdered handles POST /admin/upload-ordered
func (ac *AdminController) UploadOrdered(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, ac.maxBytes)
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "A file field named \"file\" is required", err)
		return
	}
	defer file.Close()

	res, err := ac.ordered.Import(c.Request.Context(), file)
	if errors.Is(err, usecases.ErrInvalidUpload) {
		respondError(c, http.StatusBadRequest, "Invalid ordered file", err)
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Ordered import failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": res.Updated, "skippedRows": res.SkippedRows, "skipped": res.Skipped})
}

// RegisterInventoryWebhook handles POST /admin/register-inventory-webhook
func (ac *AdminController) RegisterInventoryWebhook(c *gin.Context) {
	hook, err := ac.webhooks.RegisterInventory(c.Request.Context())
	if errors.Is(err, usecases.ErrMissingBaseURL) {
		respondError(c, http.StatusBadRequest, "Webhook callback URL is not configured", err)
		return
	}
	if err != nil {
		respondError(c, http.StatusBadGateway, "Webhook registration failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "webhook": hook})
}

// InitDB handles POST /admin/init-db
func (ac *AdminController) InitDB(c *gin.Context) {
	if err := ac.migrate(c.Request.Context()); err != nil {
		ac.logger.Error("schema migration failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Database initialization failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Database schema is up to date"})
}
