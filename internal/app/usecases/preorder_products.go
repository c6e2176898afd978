package usecases

import (
	"context"
	"fmt"

	"shopify-preorder-sync/internal/domain/model"
)

const (
	DefaultPreorderListLimit = 1000
	MaxPreorderListLimit     = 2000
)

type PreorderProducts struct {
	lister    PreorderLister
	namespace string
}

func NewPreorderProducts(lister PreorderLister, namespace string) *PreorderProducts {
	return &PreorderProducts{lister: lister, namespace: namespace}
}

// List returns the store's preorder variants. limit <= 0 means the default.
func (p *PreorderProducts) List(ctx context.Context, limit int) ([]model.PreorderVariant, error) {
	if limit <= 0 {
		limit = DefaultPreorderListLimit
	}
	if limit > MaxPreorderListLimit {
		limit = MaxPreorderListLimit
	}
	items, err := p.lister.ListPreorderVariants(ctx, p.namespace, limit)
	if err != nil {
		return nil, fmt.Errorf("list preorder variants: %w", err)
	}
	if items == nil {
		items = []model.PreorderVariant{}
	}
	return items, nil
}
