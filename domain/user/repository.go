package user

import "context"

// Repository reads users for checkout. Save exists for seeding.
type Repository interface {
	FindByID(ctx context.Context, id string) (*User, error)
	Save(ctx context.Context, u *User) error
}
