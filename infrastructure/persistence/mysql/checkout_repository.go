package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ordercore/domain/idempotency"
	"ordercore/domain/order"
	"ordercore/infrastructure/persistence"
	"ordercore/infrastructure/persistence/mysql/po"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceRepository per-period order counter. The upsert takes the row
// lock, so concurrent checkouts serialize on the counter row until commit.
type SequenceRepository struct {
	db *gorm.DB
}

func NewSequenceRepository(db *gorm.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

func (r *SequenceRepository) getDB(ctx context.Context) *gorm.DB {
	if tx := persistence.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

func (r *SequenceRepository) Next(ctx context.Context, counterID string) (int64, error) {
	next := func(tx *gorm.DB) (int64, error) {
		now := time.Now().UTC()
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"seq":        gorm.Expr("seq + 1"),
				"updated_at": now,
			}),
		}).Create(&po.OrderCounterPO{ID: counterID, Seq: 1, UpdatedAt: now}).Error
		if err != nil {
			return 0, err
		}
		var counter po.OrderCounterPO
		if err := tx.Take(&counter, "id = ?", counterID).Error; err != nil {
			return 0, err
		}
		return counter.Seq, nil
	}

	if tx := persistence.TxFromContext(ctx); tx != nil {
		return next(tx)
	}
	var seq int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		seq, err = next(tx)
		return err
	})
	return seq, err
}

// IdempotencyRepository stores checkout keys. The primary key on the key
// column is what makes two racing first-time requests collapse into one.
type IdempotencyRepository struct {
	db *gorm.DB
}

func NewIdempotencyRepository(db *gorm.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

func (r *IdempotencyRepository) getDB(ctx context.Context) *gorm.DB {
	if tx := persistence.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

func (r *IdempotencyRepository) Find(ctx context.Context, key string, notBefore time.Time) (*idempotency.Record, error) {
	var row po.IdempotencyKeyPO
	err := r.getDB(ctx).
		Where("idempotency_key = ? AND created_at > ?", key, notBefore.UTC()).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find idempotency key: %w", err)
	}
	return &idempotency.Record{Key: row.Key, OrderID: row.OrderID, CreatedAt: row.CreatedAt.UTC()}, nil
}

func (r *IdempotencyRepository) Save(ctx context.Context, record idempotency.Record, notBefore time.Time) error {
	db := r.getDB(ctx)
	if err := db.Where("idempotency_key = ? AND created_at <= ?", record.Key, notBefore.UTC()).
		Delete(&po.IdempotencyKeyPO{}).Error; err != nil {
		return fmt.Errorf("drop expired idempotency key: %w", err)
	}

	err := db.Create(&po.IdempotencyKeyPO{
		Key:       record.Key,
		OrderID:   record.OrderID,
		CreatedAt: record.CreatedAt.UTC(),
	}).Error
	if err != nil {
		if isDuplicateKeyError(err) {
			return idempotency.ErrKeyConflict
		}
		return fmt.Errorf("save idempotency key: %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.getDB(ctx).Where("created_at < ?", cutoff.UTC()).Delete(&po.IdempotencyKeyPO{})
	return result.RowsAffected, result.Error
}

var (
	_ order.Sequence    = (*SequenceRepository)(nil)
	_ idempotency.Store = (*IdempotencyRepository)(nil)
)
