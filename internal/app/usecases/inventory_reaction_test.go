package usecases

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopify-preorder-sync/internal/adapters/mirror"
	"shopify-preorder-sync/internal/adapters/shopify"
	"shopify-preorder-sync/internal/domain/model"
)

type memInventoryStore struct {
	levels     map[string]int
	deliveries map[string]bool
	debug      []model.WebhookDebugEntry
	variants   []model.VariantUpdate
	applyErr   error
	debugErr   error
}

func newMemInventoryStore() *memInventoryStore {
	return &memInventoryStore{levels: map[string]int{}, deliveries: map[string]bool{}}
}

func (s *memInventoryStore) AppendWebhookDebug(_ context.Context, e model.WebhookDebugEntry) error {
	if s.debugErr != nil {
		return s.debugErr
	}
	s.debug = append(s.debug, e)
	return nil
}

func (s *memInventoryStore) ApplyInventorySnapshot(_ context.Context, d model.InventoryDelivery) (model.SnapshotTransition, error) {
	if s.applyErr != nil {
		return model.SnapshotTransition{}, s.applyErr
	}
	if d.DeliveryID != "" {
		if s.deliveries[d.DeliveryID] {
			return model.SnapshotTransition{}, mirror.ErrDuplicateDelivery
		}
		s.deliveries[d.DeliveryID] = true
	}
	old, seen := s.levels[d.InventoryItemID]
	s.levels[d.InventoryItemID] = d.Available
	return model.SnapshotTransition{Old: old, New: d.Available, Delta: d.Available - old, FirstSight: !seen}, nil
}

func (s *memInventoryStore) UpsertVariant(_ context.Context, u model.VariantUpdate) error {
	s.variants = append(s.variants, u)
	return nil
}

type fakeInventoryShopify struct {
	state     *model.PreorderState
	lookupErr error
	setErr    error
	policyErr error
	sets      [][]shopify.MetafieldInput
	policies  []string
}

func (f *fakeInventoryShopify) VariantByInventoryItem(context.Context, string, string) (*model.PreorderState, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if f.state == nil {
		return nil, nil
	}
	copied := *f.state
	return &copied, nil
}

func (f *fakeInventoryShopify) SetMetafields(_ context.Context, inputs []shopify.MetafieldInput) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.sets = append(f.sets, inputs)
	for _, in := range inputs {
		if in.Key == "preorder_limit" && f.state != nil {
			n, err := strconv.Atoi(in.Value)
			if err != nil {
				return err
			}
			f.state.PreorderLimit = &n
		}
	}
	return nil
}

func (f *fakeInventoryShopify) UpdateInventoryPolicy(_ context.Context, _ string, policy string) error {
	if f.policyErr != nil {
		return f.policyErr
	}
	f.policies = append(f.policies, policy)
	if f.state != nil {
		f.state.InventoryPolicy = policy
	}
	return nil
}

func preorderState(limit int, policy string) *model.PreorderState {
	return &model.PreorderState{
		ResolvedVariant: model.ResolvedVariant{
			VariantID:       "gid://shopify/ProductVariant/1",
			ProductID:       "gid://shopify/Product/1",
			SKU:             "SKU-1",
			InventoryItemID: "gid://shopify/InventoryItem/9",
			InventoryPolicy: policy,
		},
		IsPreorder:    true,
		PreorderLimit: &limit,
	}
}

func delivery(id string, available int) model.InventoryDelivery {
	return model.InventoryDelivery{DeliveryID: id, InventoryItemID: "9", LocationID: "77", Available: available}
}

func TestInventoryReactionRestockDecrementsLimit(t *testing.T) {
	store := newMemInventoryStore()
	store.levels["9"] = 10
	shop := &fakeInventoryShopify{state: preorderState(8, model.PolicyContinue)}
	r := NewInventoryReaction(store, store, shop, "custom", nil, nil, nil)

	res, err := r.Handle(context.Background(), delivery("d1", 15), nil)
	require.NoError(t, err)

	assert.Equal(t, model.SnapshotTransition{Old: 10, New: 15, Delta: 5}, res.Transition)
	require.NotNil(t, res.LimitAfter)
	assert.Equal(t, 8, *res.LimitBefore)
	assert.Equal(t, 3, *res.LimitAfter)
	require.Len(t, shop.sets, 1)
	assert.Equal(t, shopify.MetafieldInput{
		OwnerID:   "gid://shopify/ProductVariant/1",
		Namespace: "custom",
		Key:       "preorder_limit",
		Type:      shopify.MetafieldTypeInteger,
		Value:     "3",
	}, shop.sets[0][0])
	require.Len(t, store.variants, 1)
	assert.Equal(t, "3", *store.variants[0].PreorderLimit)
	assert.Empty(t, shop.policies)
}

func TestInventoryReactionRestockMirrorsThroughWriter(t *testing.T) {
	store := newMemInventoryStore()
	store.levels["9"] = 10
	writer := &fakeWriter{}
	shop := &fakeInventoryShopify{state: preorderState(8, model.PolicyContinue)}
	r := NewInventoryReaction(store, writer, shop, "custom", nil, nil, nil)

	_, err := r.Handle(context.Background(), delivery("d1", 15), nil)
	require.NoError(t, err)

	require.Len(t, writer.variants, 1)
	assert.Equal(t, "gid://shopify/ProductVariant/1", writer.variants[0].VariantID)
	assert.Equal(t, "3", *writer.variants[0].PreorderLimit)
	assert.Empty(t, store.variants)
}

func TestInventoryReactionLimitNeverGoesNegative(t *testing.T) {
	store := newMemInventoryStore()
	store.levels["9"] = 1
	shop := &fakeInventoryShopify{state: preorderState(2, model.PolicyContinue)}
	r := NewInventoryReaction(store, store, shop, "custom", nil, nil, nil)

	res, err := r.Handle(context.Background(), delivery("d1", 20), nil)
	require.NoError(t, err)
	require.NotNil(t, res.LimitAfter)
	assert.Equal(t, 0, *res.LimitAfter)
}

func TestInventoryReactionSellOutThenRestock(t *testing.T) {
	store := newMemInventoryStore()
	store.levels["9"] = 5
	shop := &fakeInventoryShopify{state: preorderState(3, model.PolicyDeny)}
	notifier := &recordingNotifier{}
	r := NewInventoryReaction(store, store, shop, "custom", notifier, nil, nil)

	res, err := r.Handle(context.Background(), delivery("d1", 0), nil)
	require.NoError(t, err)
	assert.True(t, res.PolicyFlipped)
	assert.Equal(t, []string{model.PolicyContinue}, shop.policies)
	assert.Empty(t, shop.sets)
	assert.Len(t, notifier.info, 1)

	res, err = r.Handle(context.Background(), delivery("d2", 5), nil)
	require.NoError(t, err)
	assert.False(t, res.PolicyFlipped)
	require.NotNil(t, res.LimitAfter)
	assert.Equal(t, 0, *res.LimitAfter)
	assert.Len(t, shop.policies, 1)
}

func TestInventoryReactionSellOutKeepsContinuePolicy(t *testing.T) {
	store := newMemInventoryStore()
	store.levels["9"] = 2
	shop := &fakeInventoryShopify{state: preorderState(3, model.PolicyContinue)}
	r := NewInventoryReaction(store, store, shop, "custom", nil, nil, nil)

	res, err := r.Handle(context.Background(), delivery("d1", 0), nil)
	require.NoError(t, err)
	assert.False(t, res.PolicyFlipped)
	assert.Empty(t, shop.policies)
}

func TestInventoryReactionSellOutWithoutLimitDoesNothing(t *testing.T) {
	store := newMemInventoryStore()
	store.levels["9"] = 2
	state := preorderState(0, model.PolicyDeny)
	shop := &fakeInventoryShopify{state: state}
	r := NewInventoryReaction(store, store, shop, "custom", nil, nil, nil)

	res, err := r.Handle(context.Background(), delivery("d1", 0), nil)
	require.NoError(t, err)
	assert.False(t, res.PolicyFlipped)
	assert.Empty(t, shop.policies)
}

func TestInventoryReactionReplayIsDuplicate(t *testing.T) {
	store := newMemInventoryStore()
	store.levels["9"] = 10
	shop := &fakeInventoryShopify{state: preorderState(8, model.PolicyContinue)}
	r := NewInventoryReaction(store, store, shop, "custom", nil, nil, nil)

	_, err := r.Handle(context.Background(), delivery("d1", 15), nil)
	require.NoError(t, err)
	res, err := r.Handle(context.Background(), delivery("d1", 15), nil)
	require.NoError(t, err)

	assert.True(t, res.Duplicate)
	assert.Len(t, shop.sets, 1)
}

func TestInventoryReactionFirstSightCountsAsRestock(t *testing.T) {
	store := newMemInventoryStore()
	shop := &fakeInventoryShopify{state: preorderState(10, model.PolicyContinue)}
	r := NewInventoryReaction(store, store, shop, "custom", nil, nil, nil)

	res, err := r.Handle(context.Background(), delivery("d1", 6), nil)
	require.NoError(t, err)
	assert.True(t, res.Transition.FirstSight)
	require.NotNil(t, res.LimitAfter)
	assert.Equal(t, 4, *res.LimitAfter)
}

func TestInventoryReactionRemoteFailuresAreSwallowed(t *testing.T) {
	store := newMemInventoryStore()
	store.levels["9"] = 10
	shop := &fakeInventoryShopify{state: preorderState(8, model.PolicyContinue), setErr: errors.New("throttled")}
	r := NewInventoryReaction(store, store, shop, "custom", nil, nil, nil)

	res, err := r.Handle(context.Background(), delivery("d1", 15), nil)
	require.NoError(t, err)
	assert.Nil(t, res.LimitAfter)
	assert.Empty(t, store.variants)

	shop.lookupErr = errors.New("timeout")
	res, err = r.Handle(context.Background(), delivery("d2", 20), nil)
	require.NoError(t, err)
	assert.Empty(t, res.VariantID)
}

func TestInventoryReactionStoreFailureIsReturned(t *testing.T) {
	store := newMemInventoryStore()
	store.applyErr = errors.New("connection refused")
	store.debugErr = errors.New("table missing")
	r := NewInventoryReaction(store, store, &fakeInventoryShopify{}, "custom", nil, nil, nil)

	debug := model.WebhookDebugEntry{InventoryItemID: "9"}
	_, err := r.Handle(context.Background(), delivery("d1", 3), &debug)
	assert.ErrorContains(t, err, "connection refused")
}

func TestInventoryReactionUnchangedStockSkipsLookup(t *testing.T) {
	store := newMemInventoryStore()
	store.levels["9"] = 4
	shop := &fakeInventoryShopify{lookupErr: errors.New("must not be called")}
	r := NewInventoryReaction(store, store, shop, "custom", nil, nil, nil)

	debug := model.WebhookDebugEntry{InventoryItemID: "9"}
	res, err := r.Handle(context.Background(), delivery("d1", 2), &debug)
	require.NoError(t, err)
	assert.Equal(t, -2, res.Transition.Delta)
	assert.Len(t, store.debug, 1)
}
