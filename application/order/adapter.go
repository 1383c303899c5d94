package order

import (
	"context"
	"errors"

	"ordercore/domain/order"
	"ordercore/domain/user"
)

// contactResolver 将 user.Repository 适配为下单时的联系人快照。
// 认证由外部服务负责，本地没有该用户时使用请求里携带的联系方式。
type contactResolver struct {
	userRepo user.Repository
}

func (a *contactResolver) Snapshot(ctx context.Context, userID string, fallback *ContactInput) (order.Contact, error) {
	u, err := a.userRepo.FindByID(ctx, userID)
	if err == nil {
		if !u.CanPlaceOrder() {
			return order.Contact{}, user.NewUserNotActiveError(userID)
		}
		c := u.Contact()
		return order.Contact{Name: c.Name, Email: c.Email, Phone: c.Phone}, nil
	}
	if !errors.Is(err, user.ErrUserNotFound) || fallback == nil {
		return order.Contact{}, err
	}
	return order.Contact{Name: fallback.Name, Email: fallback.Email, Phone: fallback.Phone}, nil
}
