package po

import (
	"time"

	"ordercore/domain/user"
)

// UserPO 下单时读取联系人快照；账号由认证服务维护，本服务只做种子和测试写入
type UserPO struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Name      string    `gorm:"size:100;not null"`
	Email     string    `gorm:"size:255;uniqueIndex:idx_users_email;not null"`
	Phone     string    `gorm:"size:32"`
	IsActive  bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (UserPO) TableName() string { return "users" }

// UserColumns Save 冲突时覆盖的列
var UserColumns = []string{"name", "email", "phone", "is_active", "updated_at"}

func NewUserPO(u *user.User) *UserPO {
	p := &UserPO{ID: u.ID(), Name: u.Name(), Phone: u.Phone(), IsActive: u.IsActive()}
	p.Email = u.Email().Value()
	p.CreatedAt, p.UpdatedAt = u.CreatedAt().UTC(), u.UpdatedAt().UTC()
	return p
}

func (p *UserPO) User() *user.User {
	return user.RebuildFromDTO(user.ReconstructionDTO{
		ID: p.ID, Name: p.Name, Email: p.Email, Phone: p.Phone, IsActive: p.IsActive,
		CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	})
}
