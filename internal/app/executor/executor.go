// Package executor applies a planner.Plan to Shopify: paced metafieldsSet
// batches, per-field deletes and the inventory policy follow-up.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"shopify-preorder-sync/internal/adapters/shopify"
	"shopify-preorder-sync/internal/adapters/shopify/dto"
	"shopify-preorder-sync/internal/app/planner"
	"shopify-preorder-sync/internal/metrics"
)

type MetafieldAPI interface {
	SetMetafields(ctx context.Context, inputs []shopify.MetafieldInput) error
	GetVariantMetafield(ctx context.Context, variantID, namespace, key string) (*dto.ShopifyMetafield, error)
	DeleteMetafield(ctx context.Context, metafieldID string) error
}

type PolicyAPI interface {
	UpdateInventoryPolicy(ctx context.Context, variantID string, policy string) error
}

type Options struct {
	Namespace       string
	BatchInterval   time.Duration
	PolicyGroupSize int
	PolicyInterval  time.Duration
}

const (
	defaultPolicyGroupSize = 5
	policyQueueSize        = 256
)

// RowResult is the settled metafield outcome of one row. Err is nil on success.
type RowResult struct {
	RowIndex  int
	SKU       string
	VariantID string
	Batch     int
	Err       error
}

type PolicyFailure struct {
	RowIndex  int
	SKU       string
	VariantID string
	Policy    string
	Err       error
}

type Report struct {
	Rows           int
	FailedRows     int
	BatchesOK      int
	BatchesFailed  int
	Deleted        int
	PolicyUpdated  int
	PolicyFailures []PolicyFailure
}

type Executor struct {
	metafields MetafieldAPI
	policies   PolicyAPI
	opts       Options
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func New(metafields MetafieldAPI, policies PolicyAPI, opts Options, logger *zap.Logger, m *metrics.Metrics) *Executor {
	if opts.PolicyGroupSize <= 0 {
		opts.PolicyGroupSize = defaultPolicyGroupSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &Executor{
		metafields: metafields,
		policies:   policies,
		opts:       opts,
		logger:     logger,
		metrics:    m,
	}
}

type rowState struct {
	sku       string
	variantID string
	batch     int
	policy    string
	pending   int
	errs      []error
}

type policyJob struct {
	rowIndex  int
	sku       string
	variantID string
	policy    string
}

// Execute runs every batch in order, then every deletion, calling onRow once per
// row as soon as all of its work is known. onRow is only called from the
// calling goroutine. The policy pipeline is drained before Execute returns.
func (e *Executor) Execute(ctx context.Context, plan planner.Plan, onRow func(RowResult)) Report {
	var report Report

	rows := make(map[int]*rowState)
	track := func(rowIndex int, sku, variantID, policy string, batch int) {
		st, ok := rows[rowIndex]
		if !ok {
			st = &rowState{sku: sku, variantID: variantID, batch: batch, policy: policy}
			rows[rowIndex] = st
		}
		if batch > 0 {
			st.batch = batch
		}
		st.pending++
	}
	for _, b := range plan.Batches {
		for _, r := range b.Rows {
			track(r.RowIndex, r.SKU, r.VariantID, r.Policy(), b.Number)
		}
	}
	for _, d := range plan.Deletions {
		track(d.RowIndex, d.SKU, d.VariantID, d.Policy, 0)
	}

	jobs := make(chan policyJob, policyQueueSize)
	var (
		policyWG       sync.WaitGroup
		policyUpdated  int
		policyFailures []PolicyFailure
	)
	policyWG.Add(1)
	go func() {
		defer policyWG.Done()
		policyUpdated, policyFailures = e.runPolicies(ctx, jobs)
	}()

	settle := func(rowIndex int, err error) {
		st := rows[rowIndex]
		if err != nil {
			st.errs = append(st.errs, err)
		}
		st.pending--
		if st.pending > 0 {
			return
		}
		result := RowResult{
			RowIndex:  rowIndex,
			SKU:       st.sku,
			VariantID: st.variantID,
			Batch:     st.batch,
			Err:       errors.Join(st.errs...),
		}
		report.Rows++
		if result.Err != nil {
			report.FailedRows++
		} else if st.policy != "" && e.policies != nil {
			jobs <- policyJob{rowIndex: rowIndex, sku: st.sku, variantID: st.variantID, policy: st.policy}
		}
		if onRow != nil {
			onRow(result)
		}
	}

	limiter := newLimiter(e.opts.BatchInterval)
	for _, b := range plan.Batches {
		err := limiter.Wait(ctx)
		if err == nil {
			err = e.metafields.SetMetafields(ctx, e.batchInputs(b))
		}
		if err != nil {
			report.BatchesFailed++
			e.metrics.Batches.WithLabelValues("failed").Inc()
			e.logger.Warn("metafield batch failed",
				zap.Int("batch", b.Number),
				zap.Int("rows", len(b.Rows)),
				zap.Int("fields", b.FieldCount),
				zap.Error(err),
			)
		} else {
			report.BatchesOK++
			e.metrics.Batches.WithLabelValues("ok").Inc()
			e.logger.Debug("metafield batch applied",
				zap.Int("batch", b.Number),
				zap.Int("rows", len(b.Rows)),
				zap.Int("fields", b.FieldCount),
			)
		}
		for _, r := range b.Rows {
			settle(r.RowIndex, err)
		}
	}

	for _, d := range plan.Deletions {
		deleted, err := e.deleteField(ctx, d)
		if err != nil {
			e.logger.Warn("metafield delete failed",
				zap.String("sku", d.SKU),
				zap.String("variant_id", d.VariantID),
				zap.String("key", d.Key),
				zap.Error(err),
			)
			err = fmt.Errorf("delete %s: %w", d.Key, err)
		} else if deleted {
			report.Deleted++
		}
		settle(d.RowIndex, err)
	}

	close(jobs)
	policyWG.Wait()
	report.PolicyUpdated = policyUpdated
	report.PolicyFailures = policyFailures
	return report
}

func (e *Executor) batchInputs(b planner.Batch) []shopify.MetafieldInput {
	inputs := make([]shopify.MetafieldInput, 0, b.FieldCount)
	for _, r := range b.Rows {
		for _, f := range r.Fields {
			if f.Value == nil {
				continue
			}
			inputs = append(inputs, shopify.MetafieldInput{
				OwnerID:   r.VariantID,
				Namespace: e.opts.Namespace,
				Key:       f.Key,
				Type:      f.Type,
				Value:     *f.Value,
			})
		}
	}
	return inputs
}

// deleteField reports false when the variant never had the field.
func (e *Executor) deleteField(ctx context.Context, d planner.Deletion) (bool, error) {
	field, err := e.metafields.GetVariantMetafield(ctx, d.VariantID, e.opts.Namespace, d.Key)
	if err != nil {
		return false, err
	}
	if field == nil {
		return false, nil
	}
	if err := e.metafields.DeleteMetafield(ctx, field.ID); err != nil {
		return false, err
	}
	return true, nil
}

// runPolicies takes whatever jobs are queued (up to the group size), waits for
// the group pacing slot and runs the group concurrently.
func (e *Executor) runPolicies(ctx context.Context, jobs <-chan policyJob) (int, []PolicyFailure) {
	var (
		updated  int
		failures []PolicyFailure
	)
	limiter := newLimiter(e.opts.PolicyInterval)

	for first := range jobs {
		group := []policyJob{first}
	fill:
		for len(group) < e.opts.PolicyGroupSize {
			select {
			case job, ok := <-jobs:
				if !ok {
					break fill
				}
				group = append(group, job)
			default:
				break fill
			}
		}

		results := make([]error, len(group))
		if err := limiter.Wait(ctx); err != nil {
			for i := range results {
				results[i] = err
			}
		} else {
			var wg sync.WaitGroup
			for i, job := range group {
				wg.Add(1)
				go func(i int, job policyJob) {
					defer wg.Done()
					results[i] = e.policies.UpdateInventoryPolicy(ctx, job.variantID, job.policy)
				}(i, job)
			}
			wg.Wait()
		}

		for i, job := range group {
			if results[i] == nil {
				updated++
				e.metrics.PolicyUpdates.WithLabelValues(job.policy, "ok").Inc()
				continue
			}
			e.metrics.PolicyUpdates.WithLabelValues(job.policy, "failed").Inc()
			e.logger.Warn("inventory policy update failed",
				zap.String("sku", job.sku),
				zap.String("variant_id", job.variantID),
				zap.String("policy", job.policy),
				zap.Error(results[i]),
			)
			failures = append(failures, PolicyFailure{
				RowIndex:  job.rowIndex,
				SKU:       job.sku,
				VariantID: job.variantID,
				Policy:    job.policy,
				Err:       results[i],
			})
		}
	}
	return updated, failures
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}
