package user

import (
	"errors"

	"ordercore/domain/shared"
)

var (
	ErrInvalidEmail  = errors.New("invalid email format")
	ErrInvalidName   = errors.New("name cannot be empty")
	ErrUserNotFound  = errors.New("user not found")
	ErrUserNotActive = errors.New("user is not active")
)

// NewUserNotFoundError matches both ErrUserNotFound and shared.ErrNotFound.
func NewUserNotFoundError(userID string) error {
	return &shared.DomainError{
		Err:     errors.Join(ErrUserNotFound, shared.ErrNotFound),
		Entity:  "user",
		Message: "user not found: " + userID,
	}
}

func NewUserNotActiveError(userID string) error {
	return &shared.DomainError{
		Err:     errors.Join(ErrUserNotActive, shared.ErrForbidden),
		Entity:  "user",
		Message: "user " + userID + " is not active",
	}
}
