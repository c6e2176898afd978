package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopify-preorder-sync/internal/app/usecases"
	"shopify-preorder-sync/internal/transport/controllers"
	"shopify-preorder-sync/internal/transport/middleware"
)

// Controllers bundles everything the router mounts.
type Controllers struct {
	Uploads  *controllers.UploadController
	Variants *controllers.VariantController
	Admin    *controllers.AdminController
	Auth     *controllers.AuthController
	Webhooks *controllers.WebhookController
	Health   *controllers.HealthController
	Metrics  http.Handler
}

type Options struct {
	Sessions         middleware.SessionChecker
	WebhookRateLimit int
	Logger           *zap.Logger
}

// NewRouter builds the engine with request logging and recovery installed.
func NewRouter(ctrl Controllers, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.RequestLogger(logger), gin.Recovery())

	RegisterHealthRoutes(r, ctrl)
	RegisterWebhookRoutes(r, ctrl.Webhooks, opts.WebhookRateLimit)

	requireAdmin := middleware.RequireAdmin(opts.Sessions)
	RegisterAPIRoutes(r, ctrl, requireAdmin)
	RegisterAdminRoutes(r, ctrl.Admin, requireAdmin)
	return r
}

func RegisterHealthRoutes(r *gin.Engine, ctrl Controllers) {
	r.GET("/health", ctrl.Health.Health)
	r.GET("/health/db", ctrl.Health.Database)
	if ctrl.Metrics != nil {
		r.GET("/metrics", gin.WrapH(ctrl.Metrics))
	}
}

func RegisterWebhookRoutes(r *gin.Engine, wc *controllers.WebhookController, perSecond int) {
	r.POST(usecases.InventoryWebhookPath, middleware.PerSecond(perSecond), wc.Inventory)
}

func RegisterAPIRoutes(r *gin.Engine, ctrl Controllers, requireAdmin gin.HandlerFunc) {
	api := r.Group("/api")
	api.POST("/login", ctrl.Auth.Login)
	api.POST("/logout", ctrl.Auth.Logout)

	protected := api.Group("", requireAdmin)
	{
		protected.POST("/upload", ctrl.Uploads.Upload)
		protected.GET("/uploads", ctrl.Uploads.List)
		protected.GET("/uploads/:uploadId", ctrl.Uploads.Get)
		protected.GET("/preorder-products", ctrl.Variants.PreorderProducts)
		protected.POST("/variant-metafields", ctrl.Variants.UpdateMetafields)
		protected.POST("/variant-delete", ctrl.Variants.Delete)
	}
}

func RegisterAdminRoutes(r *gin.Engine, ac *controllers.AdminController, requireAdmin gin.HandlerFunc) {
	admin := r.Group("/admin", requireAdmin)
	{
		admin.POST("/clear-preorder", ac.ClearPreorder)
		admin.POST("/upload-ordered", ac.UploadOrdered)
		admin.POST("/register-inventory-webhook", ac.RegisterInventoryWebhook)
		admin.POST("/init-db", ac.InitDB)
	}
}
