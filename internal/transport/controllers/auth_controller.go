package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopify-preorder-sync/internal/auth"
)

type SessionIssuer interface {
	CheckCredentials(email, password string) error
	Issue(email string) (string, time.Time, error)
	TTL() time.Duration
}

type AuthController struct {
	sessions     SessionIssuer
	secureCookie bool
	logger       *zap.Logger
}

// NewAuthController sets the Secure flag on the session cookie when secureCookie is true.
func NewAuthController(sessions SessionIssuer, secureCookie bool, logger *zap.Logger) *AuthController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthController{sessions: sessions, secureCookie: secureCookie, logger: logger}
}

type loginRequest struct {
	Email    string `form:"email" json:"email" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

// Login handles POST /api/login with a form or JSON body.
func (ac *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Email and password are required", err)
		return
	}

	err := ac.sessions.CheckCredentials(req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrLoginDisabled):
		respondError(c, http.StatusServiceUnavailable, "Login is not configured", nil)
		return
	case err != nil:
		ac.logger.Warn("admin login rejected", zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid email or password"})
		return
	}

	token, expires, err := ac.sessions.Issue(req.Email)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to create session", err)
		return
	}
	ac.setSessionCookie(c, token, expires, int(ac.sessions.TTL().Seconds()))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged in"})
}

// Logout handles POST /api/logout
func (ac *AuthController) Logout(c *gin.Context) {
	ac.setSessionCookie(c, "", time.Unix(0, 0), -1)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}

func (ac *AuthController) setSessionCookie(c *gin.Context, value string, expires time.Time, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   maxAge,
		Secure:   ac.secureCookie,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
