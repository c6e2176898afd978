package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shopify-preorder-sync/internal/auth"
)

// AdminEmailKey holds the authenticated admin in the gin context.
const AdminEmailKey = "admin_email"

type SessionChecker interface {
	Verify(token string) (*auth.Claims, error)
	CheckCredentials(email, password string) error
}

// RequireAdmin accepts a valid session cookie, or HTTP Basic credentials for
// scripted callers.
func RequireAdmin(sessions SessionChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, err := c.Cookie(auth.SessionCookieName); err == nil && token != "" {
			if claims, err := sessions.Verify(token); err == nil {
				c.Set(AdminEmailKey, claims.Email)
				c.Next()
				return
			}
		}

		if email, password, ok := c.Request.BasicAuth(); ok {
			if err := sessions.CheckCredentials(email, password); err == nil {
				c.Set(AdminEmailKey, email)
				c.Next()
				return
			}
		}

		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		c.Abort()
	}
}
