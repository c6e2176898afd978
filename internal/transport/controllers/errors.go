package controllers

import (
	"github.com/gin-gonic/gin"

	"shopify-preorder-sync/internal/adapters/shopify"
)

// respondError renders {"error", "details"} and records err on the context
// so the request logger picks it up.
func respondError(c *gin.Context, status int, message string, err error) {
	body := gin.H{"error": message}
	if err != nil {
		_ = c.Error(err)
		body["details"] = err.Error()
		if fields := shopify.UserErrorFields(err); len(fields) > 0 {
			body["fields"] = fields
		}
	}
	c.JSON(status, body)
}
