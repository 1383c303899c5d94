package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ordercore/domain/inventory"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CatalogRepository variants are embedded in their product document.
// Reserve matches the variant and its stock guard with one $elemMatch so
// the positional $inc only fires when the guard holds.
type CatalogRepository struct {
	col *mongo.Collection
}

func NewCatalogRepository(db *mongo.Database) *CatalogRepository {
	return &CatalogRepository{col: db.Collection(colProducts)}
}

func (r *CatalogRepository) Resolve(ctx context.Context, ref inventory.VariantRef) (*inventory.Variant, error) {
	if !ref.Valid() {
		return nil, inventory.NewVariantNotFoundError(ref)
	}
	field := "id"
	if ref.IsSku() {
		field = "sku"
	}

	var doc productDoc
	err := r.col.FindOne(ctx, bson.M{"variants." + field: ref.Value()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, inventory.NewVariantNotFoundError(ref)
		}
		return nil, fmt.Errorf("resolve variant %s: %w", ref, err)
	}
	for _, v := range doc.Variants {
		if (ref.IsSku() && v.Sku == ref.Value()) || (!ref.IsSku() && v.ID == ref.Value()) {
			return doc.variant(v), nil
		}
	}
	return nil, inventory.NewVariantNotFoundError(ref)
}

// reserveFilter matches the product only while the variant has qty units.
func reserveFilter(variantID string, qty int) bson.M {
	return bson.M{"variants": bson.M{"$elemMatch": bson.M{"id": variantID, "stock": bson.M{"$gte": qty}}}}
}

func stockUpdate(delta int) bson.M {
	return bson.M{
		"$inc": bson.M{"variants.$.stock": delta},
		"$set": bson.M{"variants.$.updated_at": time.Now().UTC()},
	}
}

func (r *CatalogRepository) Reserve(ctx context.Context, variantID, sku string, qty int) error {
	if qty < 1 {
		return fmt.Errorf("reserve %s: quantity must be positive", sku)
	}
	result, err := r.col.UpdateOne(ctx, reserveFilter(variantID, qty), stockUpdate(-qty))
	if err != nil {
		return fmt.Errorf("reserve %s: %w", sku, err)
	}
	if result.MatchedCount == 0 {
		return inventory.NewInsufficientStockError(sku)
	}
	return r.syncStatus(ctx, variantID)
}

func (r *CatalogRepository) Release(ctx context.Context, variantID string, qty int) error {
	result, err := r.col.UpdateOne(ctx, bson.M{"variants.id": variantID}, stockUpdate(qty))
	if err != nil {
		return fmt.Errorf("release variant %s: %w", variantID, err)
	}
	if result.MatchedCount == 0 {
		return inventory.NewVariantNotFoundError(inventory.ByID(variantID))
	}
	return r.syncStatus(ctx, variantID)
}

// syncStatus derives stock_status from the stock just written.
func (r *CatalogRepository) syncStatus(ctx context.Context, variantID string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"variants": bson.M{"$elemMatch": bson.M{"id": variantID, "stock": bson.M{"$lte": 0}}}},
		bson.M{"$set": bson.M{"variants.$.stock_status": string(inventory.StockOutOfStock)}})
	if err != nil {
		return err
	}
	_, err = r.col.UpdateOne(ctx,
		bson.M{"variants": bson.M{"$elemMatch": bson.M{"id": variantID, "stock": bson.M{"$gt": 0}}}},
		bson.M{"$set": bson.M{"variants.$.stock_status": string(inventory.StockInStock)}})
	return err
}

// Seed upserts products and their variants (dev bootstrap). Variants are
// grouped by ProductID; product fields are taken from the first variant.
func (r *CatalogRepository) Seed(ctx context.Context, variants ...inventory.Variant) error {
	products := map[string]*productDoc{}
	var order []string
	for _, v := range variants {
		p, ok := products[v.ProductID]
		if !ok {
			p = &productDoc{ID: v.ProductID, Name: v.ProductName, Image: v.ProductImage, Category: v.Category}
			products[v.ProductID] = p
			order = append(order, v.ProductID)
		}
		p.Variants = append(p.Variants, variantDoc{
			ID:          v.VariantID,
			Sku:         inventory.NormalizeSku(v.Sku),
			Size:        v.Size,
			Stock:       v.Stock,
			StockStatus: string(inventory.StatusFor(v.Stock)),
			Price:       v.Price,
			MRP:         v.MRP,
			UpdatedAt:   time.Now().UTC(),
		})
	}
	for _, id := range order {
		_, err := r.col.ReplaceOne(ctx, bson.M{"_id": id}, products[id], options.Replace().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("seed product %s: %w", id, err)
		}
	}
	return nil
}

var _ inventory.Catalog = (*CatalogRepository)(nil)
