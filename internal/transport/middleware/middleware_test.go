package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"shopify-preorder-sync/internal/auth"
	"shopify-preorder-sync/internal/config"
	"shopify-preorder-sync/internal/transport/middleware"
)

func okHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"admin": c.GetString(middleware.AdminEmailKey)})
}

func adminSessions(t *testing.T) *auth.Sessions {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	return auth.NewSessions(config.AuthConfig{
		AdminEmail:        "ops@example.com",
		AdminPasswordHash: string(hash),
		SessionSecret:     "secret",
		SessionTTL:        time.Hour,
	})
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sessions := adminSessions(t)
	r := gin.New()
	r.GET("/admin/x", middleware.RequireAdmin(sessions), okHandler)

	token, _, err := sessions.Issue("ops@example.com")
	require.NoError(t, err)

	withCookie := httptest.NewRequest(http.MethodGet, "/admin/x", nil)
	withCookie.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})

	withBasic := httptest.NewRequest(http.MethodGet, "/admin/x", nil)
	withBasic.SetBasicAuth("ops@example.com", "hunter2")

	badBasic := httptest.NewRequest(http.MethodGet, "/admin/x", nil)
	badBasic.SetBasicAuth("ops@example.com", "wrong")

	forged := httptest.NewRequest(http.MethodGet, "/admin/x", nil)
	forged.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token + "x"})

	cases := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{name: "session cookie", req: withCookie, status: http.StatusOK},
		{name: "basic auth", req: withBasic, status: http.StatusOK},
		{name: "wrong basic password", req: badBasic, status: http.StatusUnauthorized},
		{name: "tampered cookie", req: forged, status: http.StatusUnauthorized},
		{name: "anonymous", req: httptest.NewRequest(http.MethodGet, "/admin/x", nil), status: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, tc.req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.Contains(t, w.Body.String(), "ops@example.com")
			}
		})
	}
}

func TestRateLimitPerIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/hook", middleware.RateLimit(middleware.NewRateLimiter(rate.Every(time.Hour), 2)), okHandler)

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/hook", nil)
		req.RemoteAddr = ip + ":5555"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1"))
	assert.Equal(t, http.StatusOK, send("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2"))
}

func TestRateLimiterCapsTrackedIPs(t *testing.T) {
	rl := middleware.NewRateLimiter(rate.Every(time.Hour), 1).WithEviction(time.Hour, 3)

	require.True(t, rl.GetLimiter("10.0.0.1").Allow())
	require.False(t, rl.GetLimiter("10.0.0.1").Allow())
	for _, ip := range []string{"10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.0.5"} {
		time.Sleep(time.Millisecond)
		rl.GetLimiter(ip)
		assert.LessOrEqual(t, rl.Len(), 3)
	}
	assert.Equal(t, 3, rl.Len())
	// The stalest IP was evicted and starts over with a fresh bucket.
	assert.True(t, rl.GetLimiter("10.0.0.1").Allow())
}

func TestRateLimiterSweepsIdleIPs(t *testing.T) {
	rl := middleware.NewRateLimiter(rate.Limit(10), 10).WithEviction(20*time.Millisecond, 100)

	rl.GetLimiter("10.0.0.1")
	rl.GetLimiter("10.0.0.2")
	require.Equal(t, 2, rl.Len())

	time.Sleep(40 * time.Millisecond)
	rl.GetLimiter("10.0.0.3")
	assert.Equal(t, 1, rl.Len())
}

func TestPerSecondDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/hook", middleware.PerSecond(0), okHandler)

	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/hook", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRequestIDAndLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.RequestLogger(zap.New(core)))
	r.GET("/ok", okHandler)
	r.GET("/missing", func(c *gin.Context) { c.JSON(http.StatusNotFound, gin.H{}) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-123")
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(middleware.RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, "req-123", entries[0].ContextMap()["request_id"])
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.EqualValues(t, 404, entries[1].ContextMap()["status"])
}
