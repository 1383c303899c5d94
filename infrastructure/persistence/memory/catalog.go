package memory

import (
	"context"
	"fmt"

	"ordercore/domain/inventory"
)

// CatalogRepository 内存库存，Reserve 在锁内完成 stock >= qty 判断和扣减
type CatalogRepository struct {
	store *Store
}

func NewCatalogRepository(store *Store) *CatalogRepository {
	return &CatalogRepository{store: store}
}

// Seed 写入或覆盖变体，StockStatus 由库存推导
func (r *CatalogRepository) Seed(ctx context.Context, variants ...inventory.Variant) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range variants {
		v.Sku = inventory.NormalizeSku(v.Sku)
		v.StockStatus = inventory.StatusFor(v.Stock)
		s.variants[v.VariantID] = v
		s.skuIndex[v.Sku] = v.VariantID
	}
	return nil
}

func (r *CatalogRepository) Resolve(ctx context.Context, ref inventory.VariantRef) (*inventory.Variant, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ref.Value()
	if ref.IsSku() {
		id = s.skuIndex[ref.Value()]
	}
	v, ok := s.variants[id]
	if !ref.Valid() || !ok {
		return nil, inventory.NewVariantNotFoundError(ref)
	}
	return &v, nil
}

func (r *CatalogRepository) Reserve(ctx context.Context, variantID, sku string, qty int) error {
	if qty < 1 {
		return fmt.Errorf("reserve %s: quantity must be positive", sku)
	}
	return r.adjust(ctx, variantID, -qty, func(v inventory.Variant) error {
		if v.Stock < qty {
			return inventory.NewInsufficientStockError(sku)
		}
		return nil
	})
}

func (r *CatalogRepository) Release(ctx context.Context, variantID string, qty int) error {
	return r.adjust(ctx, variantID, qty, nil)
}

func (r *CatalogRepository) adjust(ctx context.Context, variantID string, delta int, guard func(inventory.Variant) error) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.variants[variantID]
	if !ok {
		return inventory.NewVariantNotFoundError(inventory.ByID(variantID))
	}
	if guard != nil {
		if err := guard(v); err != nil {
			return err
		}
	}
	s.variants[variantID] = withStock(v, v.Stock+delta)
	s.record(ctx, func() {
		cur := s.variants[variantID]
		s.variants[variantID] = withStock(cur, cur.Stock-delta)
	})
	return nil
}

func withStock(v inventory.Variant, stock int) inventory.Variant {
	v.Stock = stock
	v.StockStatus = inventory.StatusFor(stock)
	return v
}

var _ inventory.Catalog = (*CatalogRepository)(nil)
