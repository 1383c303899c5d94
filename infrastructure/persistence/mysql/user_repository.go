package mysql

import (
	"context"
	"errors"
	"fmt"

	"ordercore/domain/user"
	"ordercore/infrastructure/persistence"
	"ordercore/infrastructure/persistence/mysql/po"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository reads checkout users. Accounts are owned by the identity
// service; Save upserts for seeding and tests.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) getDB(ctx context.Context) *gorm.DB {
	if tx := persistence.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

func (r *UserRepository) Save(ctx context.Context, u *user.User) error {
	return r.getDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(po.UserColumns),
	}).Create(po.NewUserPO(u)).Error
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*user.User, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var row po.UserPO
	if err := r.getDB(ctx).Take(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.NewUserNotFoundError(id)
		}
		return nil, fmt.Errorf("find user %s: %w", id, err)
	}
	return row.User(), nil
}

var _ user.Repository = (*UserRepository)(nil)
