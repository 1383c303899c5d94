package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User 下单用户（账户由认证服务管理，这里只读取联系信息）
type User struct {
	id        string
	name      string
	email     Email
	phone     string
	isActive  bool
	createdAt time.Time
	updatedAt time.Time
}

// NewUser 创建用户，主要用于数据初始化和测试
func NewUser(name, email, phone string) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}

	emailVO, err := NewEmail(email)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &User{
		id:        id.String(),
		name:      name,
		email:     *emailVO,
		phone:     strings.TrimSpace(phone),
		isActive:  true,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Deactivate 停用用户，停用后不能下单
func (u *User) Deactivate() {
	u.isActive = false
	u.updatedAt = time.Now().UTC()
}

// CanPlaceOrder 用户必须处于激活状态
func (u *User) CanPlaceOrder() bool {
	return u.isActive
}

// Contact 下单时刻的联系信息快照
func (u *User) Contact() Contact {
	return Contact{Name: u.name, Email: u.email.Value(), Phone: u.phone}
}

func (u *User) ID() string           { return u.id }
func (u *User) Name() string         { return u.name }
func (u *User) Email() Email         { return u.email }
func (u *User) Phone() string        { return u.phone }
func (u *User) IsActive() bool       { return u.isActive }
func (u *User) CreatedAt() time.Time { return u.createdAt }
func (u *User) UpdatedAt() time.Time { return u.updatedAt }

// Contact 不可变的联系信息快照，写入订单后不随用户资料变化
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// ReconstructionDTO 仅限仓储层重建 User 使用
type ReconstructionDTO struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func RebuildFromDTO(dto ReconstructionDTO) *User {
	return &User{
		id:        dto.ID,
		name:      dto.Name,
		email:     Email{value: dto.Email},
		phone:     dto.Phone,
		isActive:  dto.IsActive,
		createdAt: dto.CreatedAt,
		updatedAt: dto.UpdatedAt,
	}
}
