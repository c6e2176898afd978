package controllers_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopify-preorder-sync/internal/adapters/mirror"
	"shopify-preorder-sync/internal/app/usecases"
	"shopify-preorder-sync/internal/transport/controllers"
)

type fakeClearer struct {
	summary usecases.ClearSummary
	err     error
	runs    int
}

func (f *fakeClearer) Run(context.Context) (usecases.ClearSummary, error) {
	f.runs++
	return f.summary, f.err
}

type fakeOrdered struct {
	body string
	res  usecases.OrderedResult
	err  error
}

func (f *fakeOrdered) Import(_ context.Context, r io.Reader) (usecases.OrderedResult, error) {
	b, _ := io.ReadAll(r)
	f.body = string(b)
	return f.res, f.err
}

type fakeRegistrar struct {
	hook usecases.RegisteredWebhook
	err  error
}

func (f *fakeRegistrar) RegisterInventory(context.Context) (usecases.RegisteredWebhook, error) {
	return f.hook, f.err
}

type adminFakes struct {
	clearer    *fakeClearer
	ordered    *fakeOrdered
	registrar  *fakeRegistrar
	migrated   int
	migrateErr error
}

func setupAdminRouter(f *adminFakes) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	c := controllers.NewAdminController(controllers.AdminDeps{
		Clearer:  f.clearer,
		Ordered:  f.ordered,
		Webhooks: f.registrar,
		Migrate: func(context.Context) error {
			f.migrated++
			return f.migrateErr
		},
	})

	r.POST("/admin/clear-preorder", c.ClearPreorder)
	r.POST("/admin/upload-ordered", c.UploadOrdered)
	r.POST("/admin/register-inventory-webhook", c.RegisterInventoryWebhook)
	r.POST("/admin/init-db", c.InitDB)
	return r
}

func newAdminFakes() *adminFakes {
	return &adminFakes{clearer: &fakeClearer{}, ordered: &fakeOrdered{}, registrar: &fakeRegistrar{}}
}

func TestClearPreorder(t *testing.T) {
	f := newAdminFakes()
	f.clearer.summary = usecases.ClearSummary{VariantsProcessed: 3, MetafieldsDeleted: 7}
	r := setupAdminRouter(f)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/clear-preorder", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"variantsProcessed":3`)

	f.clearer.err = errors.New("list preorder variants: throttled")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/clear-preorder", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, 2, f.clearer.runs)
}

func TestUploadOrdered(t *testing.T) {
	f := newAdminFakes()
	f.ordered.res = usecases.OrderedResult{Updated: 1, SkippedRows: 1, Skipped: []mirror.OrderedSkip{}}
	r := setupAdminRouter(f)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, "/admin/upload-ordered", "file", "ordered.csv", "sku,qty\nA,3\n"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sku,qty\nA,3\n", f.ordered.body)
	assert.Contains(t, w.Body.String(), `"updated":1`)

	f.ordered.err = fmt.Errorf("%w: no sku column", usecases.ErrInvalidUpload)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, "/admin/upload-ordered", "file", "ordered.csv", "x\n"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, "/admin/upload-ordered", "", "", ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterInventoryWebhook(t *testing.T) {
	f := newAdminFakes()
	f.registrar.hook = usecases.RegisteredWebhook{ID: "gid://shopify/WebhookSubscription/1", CallbackURL: "https://x/webhooks/shopify/inventory"}
	r := setupAdminRouter(f)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/register-inventory-webhook", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"callbackUrl":"https://x/webhooks/shopify/inventory"`)

	f.registrar.err = usecases.ErrMissingBaseURL
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/register-inventory-webhook", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.registrar.err = errors.New("register inventory webhook: 502")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/register-inventory-webhook", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestInitDB(t *testing.T) {
	f := newAdminFakes()
	r := setupAdminRouter(f)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/init-db", nil))
	require.Equal(t, http.StatusOK, w.Code)

	f.migrateErr = errors.New("mysql: migrate: access denied")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/init-db", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 2, f.migrated)
}
