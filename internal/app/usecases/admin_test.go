package usecases

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopify-preorder-sync/internal/adapters/mirror"
	"shopify-preorder-sync/internal/adapters/shopify"
	"shopify-preorder-sync/internal/app/executor"
	"shopify-preorder-sync/internal/domain/model"
)

type fakeVariantMirror struct {
	upserts   []model.VariantUpdate
	deleted   []string
	deleteErr error
}

func (m *fakeVariantMirror) UpsertVariant(_ context.Context, u model.VariantUpdate) error {
	m.upserts = append(m.upserts, u)
	return nil
}

func (m *fakeVariantMirror) DeleteVariant(_ context.Context, variantID string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, variantID)
	return nil
}

func newVariantAdmin(shop *fakeShop, m *fakeVariantMirror) *VariantAdmin {
	exec := executor.New(shop, shop, executor.Options{Namespace: "custom"}, nil, nil)
	return NewVariantAdmin(exec, shop, m, nil)
}

const vid = "gid://shopify/ProductVariant/1"

func TestVariantUpdateWritesFieldsAndPolicy(t *testing.T) {
	shop := newFakeShop()
	m := &fakeVariantMirror{}
	admin := newVariantAdmin(shop, m)
	yes, limit, msg := true, 7, "Back in June"

	res, err := admin.Update(context.Background(), VariantUpdateRequest{
		VariantID:       vid,
		IsPreorder:      &yes,
		PreorderLimit:   &limit,
		PreorderMessage: &msg,
		SKU:             "A",
	})
	require.NoError(t, err)

	require.Len(t, shop.sets, 1)
	assert.Len(t, shop.sets[0], 3)
	assert.Equal(t, model.PolicyContinue, shop.policies[vid])
	assert.Equal(t, model.PolicyContinue, res.Policy)
	assert.Equal(t, "7", *res.Variant.PreorderLimit)
	require.Len(t, m.upserts, 1)
	assert.Equal(t, "A", m.upserts[0].SKU)
	assert.True(t, *m.upserts[0].IsPreorder)
}

func TestVariantUpdateEmptyMessageDeletesField(t *testing.T) {
	shop := newFakeShop()
	shop.existing[vid+"/preorder_message"] = "gid://shopify/Metafield/55"
	admin := newVariantAdmin(shop, &fakeVariantMirror{})
	empty := ""

	res, err := admin.Update(context.Background(), VariantUpdateRequest{VariantID: vid, PreorderMessage: &empty})
	require.NoError(t, err)
	assert.Empty(t, shop.sets)
	assert.Equal(t, []string{"gid://shopify/Metafield/55"}, shop.deleted)
	assert.Empty(t, res.Policy)
	assert.Empty(t, shop.policies)
}

func TestVariantUpdateValidation(t *testing.T) {
	admin := newVariantAdmin(newFakeShop(), &fakeVariantMirror{})
	negative := -1

	_, err := admin.Update(context.Background(), VariantUpdateRequest{})
	assert.ErrorIs(t, err, ErrInvalidVariantRequest)
	_, err = admin.Update(context.Background(), VariantUpdateRequest{VariantID: vid})
	assert.ErrorIs(t, err, ErrInvalidVariantRequest)
	_, err = admin.Update(context.Background(), VariantUpdateRequest{VariantID: vid, PreorderLimit: &negative})
	assert.ErrorIs(t, err, ErrInvalidVariantRequest)
}

func TestVariantUpdateRemoteFailure(t *testing.T) {
	shop := newFakeShop()
	shop.setErr = &shopify.UserErrorsError{Action: "metafieldsSet", Errors: []shopify.UserErrorDetail{{Field: "metafields.0.value", Message: "invalid"}}}
	m := &fakeVariantMirror{}
	admin := newVariantAdmin(shop, m)
	yes := true

	_, err := admin.Update(context.Background(), VariantUpdateRequest{VariantID: vid, IsPreorder: &yes})
	require.Error(t, err)
	assert.True(t, shopify.IsRemoteError(err))
	assert.Empty(t, m.upserts)
	assert.Empty(t, shop.policies)
}

func TestVariantDeleteClearsEverything(t *testing.T) {
	shop := newFakeShop()
	shop.existing[vid+"/is_preorder"] = "gid://shopify/Metafield/1"
	shop.existing[vid+"/preorder_limit"] = "gid://shopify/Metafield/2"
	m := &fakeVariantMirror{}
	admin := newVariantAdmin(shop, m)

	res, err := admin.Delete(context.Background(), vid)
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.True(t, res.MetafieldsCleared)
	assert.True(t, res.PolicyUpdated)
	assert.True(t, res.TablesUpdated)
	assert.Len(t, shop.deleted, 2)
	assert.Equal(t, model.PolicyDeny, shop.policies[vid])
	assert.Equal(t, []string{vid}, m.deleted)
}

func TestVariantDeletePartialFailure(t *testing.T) {
	shop := newFakeShop()
	shop.existing[vid+"/is_preorder"] = "gid://shopify/Metafield/1"
	shop.deleteErr = errors.New("timeout")
	m := &fakeVariantMirror{deleteErr: errors.New("db gone")}
	admin := newVariantAdmin(shop, m)

	res, err := admin.Delete(context.Background(), vid)
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.False(t, res.MetafieldsCleared)
	assert.True(t, res.PolicyUpdated)
	assert.False(t, res.TablesUpdated)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "metafields", res.Errors[0].Type)
	assert.Equal(t, "database", res.Errors[1].Type)
	assert.Equal(t, model.PolicyDeny, shop.policies[vid])
}

type fakeTables struct {
	cleared map[string]int64
	err     error
}

func (f *fakeTables) ClearPreorderData(context.Context) (map[string]int64, error) {
	return f.cleared, f.err
}

func preorderVariant(n, sku string) model.PreorderVariant {
	return model.PreorderVariant{ResolvedVariant: shopVariant(n, sku, "h"), IsPreorder: true}
}

func TestClearPreorderRun(t *testing.T) {
	shop := newFakeShop()
	shop.preorder = []model.PreorderVariant{preorderVariant("1", "A"), preorderVariant("2", "B")}
	shop.existing["gid://shopify/ProductVariant/1/is_preorder"] = "m1"
	shop.existing["gid://shopify/ProductVariant/2/preorder_message"] = "m2"
	tables := &fakeTables{cleared: map[string]int64{"variants": 2}}
	notifier := &recordingNotifier{}
	exec := executor.New(shop, shop, executor.Options{Namespace: "custom"}, nil, nil)
	cleaner := NewClearPreorder(shop, exec, tables, "custom", notifier, nil)

	summary, err := cleaner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.VariantsProcessed)
	assert.Equal(t, 2, summary.MetafieldsDeleted)
	assert.Empty(t, summary.MetafieldErrors)
	assert.Empty(t, summary.PolicyErrors)
	assert.Equal(t, int64(2), summary.TablesCleared["variants"])
	assert.Equal(t, model.PolicyDeny, shop.policies["gid://shopify/ProductVariant/2"])
	assert.Len(t, notifier.success, 1)
}

func TestClearPreorderCollectsFailures(t *testing.T) {
	shop := newFakeShop()
	shop.preorder = []model.PreorderVariant{preorderVariant("1", "A")}
	shop.existing["gid://shopify/ProductVariant/1/is_preorder"] = "m1"
	shop.deleteErr = errors.New("502 bad gateway")
	tables := &fakeTables{cleared: map[string]int64{"ordered": -1}, err: errors.New("ordered: locked")}
	exec := executor.New(shop, shop, executor.Options{Namespace: "custom"}, nil, nil)
	cleaner := NewClearPreorder(shop, exec, tables, "custom", nil, nil)

	summary, err := cleaner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.VariantsProcessed)
	require.Len(t, summary.MetafieldErrors, 1)
	assert.Equal(t, "A", summary.MetafieldErrors[0].SKU)
	assert.Contains(t, summary.TablesClearedError, "locked")
	assert.Empty(t, shop.policies)
}

func TestClearPreorderListFailureAborts(t *testing.T) {
	shop := newFakeShop()
	shop.listErr = errors.New("throttled")
	tables := &fakeTables{}
	cleaner := NewClearPreorder(shop, executor.New(shop, shop, executor.Options{}, nil, nil), tables, "custom", nil, nil)

	_, err := cleaner.Run(context.Background())
	assert.ErrorContains(t, err, "throttled")
}

type fakeOrderedStore struct {
	items []model.OrderedQuantity
}

func (s *fakeOrderedStore) UpsertOrdered(_ context.Context, items []model.OrderedQuantity) (int, []mirror.OrderedSkip, error) {
	s.items = items
	return len(items), nil, nil
}

func TestOrderedImport(t *testing.T) {
	store := &fakeOrderedStore{}
	imp := NewOrderedImport(store, nil)

	res, err := imp.Import(context.Background(), strings.NewReader("SKU,Ordered Qty\nA,12\nB,n/a\n,3\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 2, res.SkippedRows)
	assert.NotNil(t, res.Skipped)
	assert.Equal(t, []model.OrderedQuantity{{SKU: "A", Ordered: 12}}, store.items)

	_, err = imp.Import(context.Background(), strings.NewReader("name\nx\n"))
	assert.ErrorIs(t, err, ErrInvalidUpload)
}

func TestRegisterInventoryWebhook(t *testing.T) {
	shop := newFakeShop()
	reg := NewWebhookRegistration(shop, "https://preorders.example.com/", nil)

	hook, err := reg.RegisterInventory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://preorders.example.com/webhooks/shopify/inventory", hook.CallbackURL)
	assert.Equal(t, []string{"INVENTORY_LEVELS_UPDATE https://preorders.example.com/webhooks/shopify/inventory"}, shop.webhooks)

	_, err = NewWebhookRegistration(shop, " ", nil).RegisterInventory(context.Background())
	assert.ErrorIs(t, err, ErrMissingBaseURL)
}

func TestPreorderProductsClampsLimit(t *testing.T) {
	shop := newFakeShop()
	for i := 0; i < 3; i++ {
		shop.preorder = append(shop.preorder, preorderVariant("1", "A"))
	}
	list := NewPreorderProducts(shop, "custom")

	items, err := list.List(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = list.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	shop.preorder = nil
	items, err = list.List(context.Background(), 5000)
	require.NoError(t, err)
	assert.NotNil(t, items)
}
