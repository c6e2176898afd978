// Package resolver maps upload rows to Shopify variants, either through the
// row's product handle or through a catalog-wide SKU search.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"shopify-preorder-sync/internal/adapters/shopify"
	"shopify-preorder-sync/internal/domain/model"
)

type VariantLookup interface {
	ProductByHandle(ctx context.Context, handle string) (*shopify.Product, error)
	VariantsBySKUs(ctx context.Context, skus []string) ([]model.ResolvedVariant, error)
}

type Options struct {
	Workers       int
	ChunkSize     int
	MaxQueryLen   int
	ChunkInterval time.Duration
}

const (
	defaultWorkers     = 5
	defaultChunkSize   = 50
	defaultMaxQueryLen = 4000
)

// Resolution is the lookup result for one row. Status is empty when Variant is set.
type Resolution struct {
	Row       model.PreorderRow
	Variant   *model.ResolvedVariant
	ProductID string
	Status    model.RowStatus
	Err       error
}

func (r Resolution) Resolved() bool {
	return r.Variant != nil
}

type Resolver struct {
	lookup VariantLookup
	opts   Options
	logger *zap.Logger
}

func New(lookup VariantLookup, opts Options, logger *zap.Logger) *Resolver {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	if opts.MaxQueryLen <= 0 {
		opts.MaxQueryLen = defaultMaxQueryLen
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{lookup: lookup, opts: opts, logger: logger}
}

// Resolve returns one Resolution per row, in row order.
func (r *Resolver) Resolve(ctx context.Context, strategy model.Strategy, rows []model.PreorderRow) ([]Resolution, error) {
	switch strategy {
	case model.StrategyHandle:
		return r.byHandle(ctx, rows), nil
	case model.StrategySKU:
		return r.bySKU(ctx, rows), nil
	default:
		return nil, fmt.Errorf("resolver: unknown strategy %q", strategy)
	}
}

type productEntry struct {
	once    sync.Once
	product *shopify.Product
	err     error
}

func (r *Resolver) byHandle(ctx context.Context, rows []model.PreorderRow) []Resolution {
	out := make([]Resolution, len(rows))

	var (
		mu       sync.Mutex
		products = make(map[string]*productEntry)
	)
	fetch := func(handle string) (*shopify.Product, error) {
		mu.Lock()
		entry, ok := products[handle]
		if !ok {
			entry = &productEntry{}
			products[handle] = entry
		}
		mu.Unlock()

		entry.once.Do(func() {
			entry.product, entry.err = r.lookup.ProductByHandle(ctx, handle)
		})
		return entry.product, entry.err
	}

	var (
		next int64 = -1
		wg   sync.WaitGroup
	)
	workers := r.opts.Workers
	if workers > len(rows) {
		workers = len(rows)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&next, 1))
				if i >= len(rows) {
					return
				}
				out[i] = r.resolveHandleRow(ctx, rows[i], fetch)
			}
		}()
	}
	wg.Wait()

	return out
}

func (r *Resolver) resolveHandleRow(ctx context.Context, row model.PreorderRow, fetch func(string) (*shopify.Product, error)) Resolution {
	res := Resolution{Row: row}
	handle := strings.TrimSpace(row.Handle)
	if handle == "" {
		res.Status = model.RowNoProduct
		return res
	}
	if err := ctx.Err(); err != nil {
		res.Status = model.RowException
		res.Err = err
		return res
	}

	product, err := fetch(handle)
	if err != nil {
		r.logger.Warn("product lookup failed", zap.String("handle", handle), zap.String("sku", row.SKU), zap.Error(err))
		res.Status = model.RowException
		res.Err = fmt.Errorf("product %s: %w", handle, err)
		return res
	}
	if product == nil {
		res.Status = model.RowNoProduct
		return res
	}

	res.ProductID = product.ID
	sku := strings.TrimSpace(row.SKU)
	for i := range product.Variants {
		if product.Variants[i].SKU == sku {
			v := product.Variants[i]
			res.Variant = &v
			return res
		}
	}
	res.Status = model.RowNoVariant
	return res
}

func (r *Resolver) bySKU(ctx context.Context, rows []model.PreorderRow) []Resolution {
	skus := uniqueSKUs(rows)
	chunks := r.chunk(skus)

	found := make(map[string]model.ResolvedVariant, len(skus))
	failed := make(map[string]error)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if r.opts.ChunkInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(r.opts.ChunkInterval), 1)
	}

	for n, chunk := range chunks {
		err := limiter.Wait(ctx)
		var variants []model.ResolvedVariant
		if err == nil {
			variants, err = r.lookup.VariantsBySKUs(ctx, chunk)
		}
		if err != nil {
			r.logger.Warn("sku chunk lookup failed",
				zap.Int("chunk", n+1),
				zap.Int("skus", len(chunk)),
				zap.Error(err),
			)
			chunkErr := fmt.Errorf("sku lookup chunk %d: %w", n+1, err)
			for _, sku := range chunk {
				failed[sku] = chunkErr
			}
			continue
		}
		for _, v := range variants {
			sku := strings.TrimSpace(v.SKU)
			if _, seen := found[sku]; seen {
				continue
			}
			found[sku] = v
		}
	}
	r.logger.Debug("sku lookup finished",
		zap.Int("skus", len(skus)),
		zap.Int("chunks", len(chunks)),
		zap.Int("found", len(found)),
	)

	out := make([]Resolution, len(rows))
	for i, row := range rows {
		res := Resolution{Row: row}
		sku := strings.TrimSpace(row.SKU)
		switch v, ok := found[sku]; {
		case ok:
			res.Variant = &v
			res.ProductID = v.ProductID
		case failed[sku] != nil:
			res.Status = model.RowException
			res.Err = failed[sku]
		default:
			res.Status = model.RowNoVariant
		}
		out[i] = res
	}
	return out
}

// chunk splits skus into groups bounded both by count and by the length of
// the search string each group produces.
func (r *Resolver) chunk(skus []string) [][]string {
	var (
		chunks  [][]string
		current []string
	)
	for _, sku := range skus {
		candidate := append(current[:len(current):len(current)], sku)
		if len(current) > 0 && (len(candidate) > r.opts.ChunkSize || shopify.SKUSearchQueryLen(candidate) > r.opts.MaxQueryLen) {
			chunks = append(chunks, current)
			candidate = []string{sku}
		}
		current = candidate
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

func uniqueSKUs(rows []model.PreorderRow) []string {
	seen := make(map[string]struct{}, len(rows))
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		sku := strings.TrimSpace(row.SKU)
		if sku == "" {
			continue
		}
		if _, ok := seen[sku]; ok {
			continue
		}
		seen[sku] = struct{}{}
		out = append(out, sku)
	}
	return out
}
