package usecases

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"shopify-preorder-sync/internal/adapters/mirror"
	"shopify-preorder-sync/internal/adapters/queue"
	"shopify-preorder-sync/internal/adapters/shopify"
	"shopify-preorder-sync/internal/adapters/shopify/dto"
	"shopify-preorder-sync/internal/domain/model"
)

type recordingNotifier struct {
	mu       sync.Mutex
	info     []string
	errors   []string
	warnings []string
	success  []string
}

func (n *recordingNotifier) Log(v string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.info = append(n.info, v)
}

func (n *recordingNotifier) LogError(v string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, v)
}

func (n *recordingNotifier) LogWarning(v string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warnings = append(n.warnings, v)
}

func (n *recordingNotifier) LogSuccess(v string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.success = append(n.success, v)
}

// fakeShop stands in for the Shopify client across the use case tests.
type fakeShop struct {
	mu        sync.Mutex
	bySKU     map[string]model.ResolvedVariant
	byHandle  map[string]*shopify.Product
	existing  map[string]string
	setErr    error
	deleteErr error
	policyErr error
	listErr   error
	preorder  []model.PreorderVariant
	sets      [][]shopify.MetafieldInput
	deleted   []string
	policies  map[string]string
	webhooks  []string
}

func newFakeShop(variants ...model.ResolvedVariant) *fakeShop {
	f := &fakeShop{
		bySKU:    map[string]model.ResolvedVariant{},
		byHandle: map[string]*shopify.Product{},
		existing: map[string]string{},
		policies: map[string]string{},
	}
	for _, v := range variants {
		f.bySKU[v.SKU] = v
		p, ok := f.byHandle[v.Handle]
		if !ok {
			p = &shopify.Product{ID: v.ProductID, Handle: v.Handle}
			f.byHandle[v.Handle] = p
		}
		p.Variants = append(p.Variants, v)
	}
	return f
}

func shopVariant(n, sku, handle string) model.ResolvedVariant {
	return model.ResolvedVariant{
		VariantID:       "gid://shopify/ProductVariant/" + n,
		ProductID:       "gid://shopify/Product/" + handle,
		Handle:          handle,
		SKU:             sku,
		InventoryItemID: "gid://shopify/InventoryItem/" + n,
	}
}

func (f *fakeShop) ProductByHandle(_ context.Context, handle string) (*shopify.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byHandle[handle], nil
}

func (f *fakeShop) VariantsBySKUs(_ context.Context, skus []string) ([]model.ResolvedVariant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ResolvedVariant
	for _, sku := range skus {
		if v, ok := f.bySKU[sku]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeShop) SetMetafields(_ context.Context, inputs []shopify.MetafieldInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.sets = append(f.sets, inputs)
	return nil
}

func (f *fakeShop) GetVariantMetafield(_ context.Context, variantID, _ string, key string) (*dto.ShopifyMetafield, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.existing[variantID+"/"+key]
	if !ok {
		return nil, nil
	}
	return &dto.ShopifyMetafield{ID: id, Key: key}, nil
}

func (f *fakeShop) DeleteMetafield(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeShop) UpdateInventoryPolicy(_ context.Context, variantID string, policy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.policyErr != nil {
		return f.policyErr
	}
	f.policies[variantID] = policy
	return nil
}

func (f *fakeShop) ListPreorderVariants(_ context.Context, _ string, limit int) ([]model.PreorderVariant, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.preorder) > limit {
		return f.preorder[:limit], nil
	}
	return f.preorder, nil
}

func (f *fakeShop) RegisterWebhook(_ context.Context, topic string, callbackURL string) (string, error) {
	f.webhooks = append(f.webhooks, topic+" "+callbackURL)
	return "gid://shopify/WebhookSubscription/1", nil
}

type finishedJob struct {
	status  model.JobStatus
	results json.RawMessage
	errMsg  string
}

// fakeJobStore rejects calls on a done context when strictCtx is set, the way
// database/sql does.
type fakeJobStore struct {
	mu        sync.Mutex
	jobs      map[string]model.UploadJob
	started   []string
	finished  map[string]finishedJob
	attempt   int
	startErr  error
	strictCtx bool
	onStarted func()
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: map[string]model.UploadJob{}, finished: map[string]finishedJob{}}
}

func (s *fakeJobStore) CreateJob(_ context.Context, job model.UploadJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *fakeJobStore) MarkJobStarted(ctx context.Context, id string, _ time.Time) error {
	s.mu.Lock()
	if s.strictCtx && ctx.Err() != nil {
		s.mu.Unlock()
		return ctx.Err()
	}
	if s.startErr != nil {
		s.mu.Unlock()
		return s.startErr
	}
	s.started = append(s.started, id)
	onStarted := s.onStarted
	s.mu.Unlock()
	if onStarted != nil {
		onStarted()
	}
	return nil
}

func (s *fakeJobStore) FinishJob(ctx context.Context, id string, status model.JobStatus, results json.RawMessage, errMsg string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.strictCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	s.finished[id] = finishedJob{status: status, results: results, errMsg: errMsg}
	return nil
}

func (s *fakeJobStore) LatestAttempt(ctx context.Context, _ string) (int, error) {
	if s.strictCtx && ctx.Err() != nil {
		return 0, ctx.Err()
	}
	return s.attempt, nil
}

func (s *fakeJobStore) GetJob(_ context.Context, id string) (*model.UploadJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, mirror.ErrNotFound
	}
	return &job, nil
}

type fakeWriter struct {
	mu        sync.Mutex
	outcomes  []model.UploadRowOutcome
	variants  []model.VariantUpdate
	refreshes int
	strictCtx bool
}

func (w *fakeWriter) RecordRow(ctx context.Context, o model.UploadRowOutcome, variant *model.VariantUpdate) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.strictCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	w.outcomes = append(w.outcomes, o)
	if o.Status == model.RowUpdated && variant != nil {
		w.variants = append(w.variants, *variant)
	}
	return nil
}

func (w *fakeWriter) RefreshProgress(ctx context.Context, _ string, _ int) (model.JobProgress, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.strictCtx && ctx.Err() != nil {
		return model.JobProgress{}, ctx.Err()
	}
	w.refreshes++
	return model.JobProgress{}, nil
}

func (w *fakeWriter) UpsertVariant(_ context.Context, u model.VariantUpdate) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.variants = append(w.variants, u)
	return nil
}

type fakeQueue struct {
	jobs []queue.Job
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, job queue.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}
