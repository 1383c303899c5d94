package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ordercore/domain/inventory"
	"ordercore/infrastructure/persistence"
	"ordercore/infrastructure/persistence/mysql/po"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogRepository reads variants and moves stock with single-statement
// conditional updates. The guard and the write are one UPDATE, so two
// checkouts racing for the last unit cannot both succeed.
type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) getDB(ctx context.Context) *gorm.DB {
	if tx := persistence.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

const variantSelect = "product_variants.*, products.name AS product_name, products.image AS product_image, products.category AS category"

func (r *CatalogRepository) Resolve(ctx context.Context, ref inventory.VariantRef) (*inventory.Variant, error) {
	if !ref.Valid() {
		return nil, inventory.NewVariantNotFoundError(ref)
	}

	column := "product_variants.id"
	if ref.IsSku() {
		column = "product_variants.sku"
	}

	var row po.VariantRow
	err := r.getDB(ctx).
		Table("product_variants").
		Select(variantSelect).
		Joins("JOIN products ON products.id = product_variants.product_id").
		Where(column+" = ?", ref.Value()).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, inventory.NewVariantNotFoundError(ref)
		}
		return nil, fmt.Errorf("resolve variant %s: %w", ref, err)
	}
	return row.ToDomain(), nil
}

// stock_status is assigned before stock: MySQL evaluates SET left to right
// and the CASE must see the pre-decrement value.
const reserveSQL = `UPDATE product_variants
SET stock_status = CASE WHEN stock - ? <= 0 THEN ? ELSE ? END,
    stock = stock - ?,
    updated_at = ?
WHERE id = ? AND stock >= ?`

const releaseSQL = `UPDATE product_variants
SET stock_status = CASE WHEN stock + ? <= 0 THEN ? ELSE ? END,
    stock = stock + ?,
    updated_at = ?
WHERE id = ?`

func (r *CatalogRepository) Reserve(ctx context.Context, variantID, sku string, qty int) error {
	if qty < 1 {
		return fmt.Errorf("reserve %s: quantity must be positive", sku)
	}
	result := r.getDB(ctx).Exec(reserveSQL,
		qty, string(inventory.StockOutOfStock), string(inventory.StockInStock),
		qty, time.Now().UTC(), variantID, qty)
	if result.Error != nil {
		return fmt.Errorf("reserve %s: %w", sku, result.Error)
	}
	if result.RowsAffected == 0 {
		return inventory.NewInsufficientStockError(sku)
	}
	return nil
}

func (r *CatalogRepository) Release(ctx context.Context, variantID string, qty int) error {
	result := r.getDB(ctx).Exec(releaseSQL,
		qty, string(inventory.StockOutOfStock), string(inventory.StockInStock),
		qty, time.Now().UTC(), variantID)
	if result.Error != nil {
		return fmt.Errorf("release variant %s: %w", variantID, result.Error)
	}
	if result.RowsAffected == 0 {
		return inventory.NewVariantNotFoundError(inventory.ByID(variantID))
	}
	return nil
}

// Seed upserts products and variants (tests and the dev bootstrap).
// Product fields are taken from the first variant of each product.
func (r *CatalogRepository) Seed(ctx context.Context, variants ...inventory.Variant) error {
	now := time.Now().UTC()
	seen := map[string]bool{}
	var products []po.ProductPO
	rows := make([]po.ProductVariantPO, 0, len(variants))
	for _, v := range variants {
		if !seen[v.ProductID] {
			seen[v.ProductID] = true
			products = append(products, po.ProductPO{
				ID: v.ProductID, Name: v.ProductName, Image: v.ProductImage, Category: v.Category,
				CreatedAt: now, UpdatedAt: now,
			})
		}
		rows = append(rows, po.ProductVariantPO{
			ID:          v.VariantID,
			ProductID:   v.ProductID,
			Sku:         inventory.NormalizeSku(v.Sku),
			Size:        v.Size,
			Stock:       v.Stock,
			StockStatus: string(inventory.StatusFor(v.Stock)),
			Price:       v.Price,
			MRP:         v.MRP,
			UpdatedAt:   now,
		})
	}

	return r.getDB(ctx).Transaction(func(tx *gorm.DB) error {
		if len(products) > 0 {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&products).Error; err != nil {
				return err
			}
		}
		if len(rows) > 0 {
			return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
		}
		return nil
	})
}

var _ inventory.Catalog = (*CatalogRepository)(nil)
