package po

import (
	"time"

	"ordercore/domain/inventory"
)

// ProductPO catalog product. Owned by the catalog service; checkout reads it.
type ProductPO struct {
	ID        string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"size:255;not null"`
	Image     string `gorm:"size:1024"`
	Category  string `gorm:"size:100;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ProductPO) TableName() string {
	return "products"
}

// ProductVariantPO stock-bearing variant. Stock only moves through
// conditional UPDATEs.
type ProductVariantPO struct {
	ID          string    `gorm:"primaryKey;size:64"`
	ProductID   string    `gorm:"size:64;index;not null"`
	Sku         string    `gorm:"size:64;uniqueIndex;not null"`
	Size        string    `gorm:"size:32"`
	Stock       int       `gorm:"not null;default:0"`
	StockStatus string    `gorm:"size:20;not null"`
	Price       int64     `gorm:"not null"`
	MRP         int64     `gorm:"column:mrp;not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (ProductVariantPO) TableName() string {
	return "product_variants"
}

// VariantRow is the joined read model of a variant and its product
type VariantRow struct {
	ProductVariantPO
	ProductName  string
	ProductImage string
	Category     string
}

func (r VariantRow) ToDomain() *inventory.Variant {
	return &inventory.Variant{
		ProductID:    r.ProductID,
		ProductName:  r.ProductName,
		ProductImage: r.ProductImage,
		Category:     r.Category,
		VariantID:    r.ID,
		Sku:          r.Sku,
		Size:         r.Size,
		Stock:        r.Stock,
		StockStatus:  inventory.StockStatus(r.StockStatus),
		Price:        r.Price,
		MRP:          r.MRP,
	}
}
