package controllers_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"shopify-preorder-sync/internal/auth"
	"shopify-preorder-sync/internal/config"
	"shopify-preorder-sync/internal/transport/controllers"
)

func newSessions(t *testing.T, email, password string) *auth.Sessions {
	t.Helper()
	cfg := config.AuthConfig{SessionSecret: "test-session-secret", SessionTTL: time.Hour}
	if email != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		require.NoError(t, err)
		cfg.AdminEmail = email
		cfg.AdminPasswordHash = string(hash)
	}
	return auth.NewSessions(cfg)
}

func setupAuthRouter(sessions controllers.SessionIssuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	c := controllers.NewAuthController(sessions, true, nil)

	r.POST("/api/login", c.Login)
	r.POST("/api/logout", c.Logout)
	return r
}

func loginForm(email, password string) *http.Request {
	form := url.Values{"email": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	return nil
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	sessions := newSessions(t, "ops@example.com", "hunter2")
	r := setupAuthRouter(sessions)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, loginForm("ops@example.com", "hunter2"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)
	cookie := sessionCookie(w)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, 3600, cookie.MaxAge)

	claims, err := sessions.Verify(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Email)
}

func TestLogin_AcceptsJSON(t *testing.T) {
	r := setupAuthRouter(newSessions(t, "ops@example.com", "hunter2"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/login", `{"email":"ops@example.com","password":"hunter2"}`))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, sessionCookie(w))
}

func TestLogin_Rejections(t *testing.T) {
	cases := []struct {
		name     string
		sessions *auth.Sessions
		req      *http.Request
		status   int
	}{
		{name: "wrong password", sessions: newSessions(t, "ops@example.com", "hunter2"), req: loginForm("ops@example.com", "nope"), status: http.StatusUnauthorized},
		{name: "missing fields", sessions: newSessions(t, "ops@example.com", "hunter2"), req: loginForm("ops@example.com", ""), status: http.StatusBadRequest},
		{name: "login not configured", sessions: newSessions(t, "", ""), req: loginForm("ops@example.com", "hunter2"), status: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			setupAuthRouter(tc.sessions).ServeHTTP(w, tc.req)

			assert.Equal(t, tc.status, w.Code)
			assert.Nil(t, sessionCookie(w))
		})
	}
}

func TestLogout_ExpiresCookie(t *testing.T) {
	r := setupAuthRouter(newSessions(t, "ops@example.com", "hunter2"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/logout", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=0")
}
