package user

import (
	"errors"
	"testing"

	"ordercore/domain/shared"
)

func TestNewUser(t *testing.T) {
	u, err := NewUser(" Asha ", "ASHA@example.com", "9999999999")
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	if u.Email().Value() != "asha@example.com" {
		t.Errorf("email not normalized: %s", u.Email())
	}
	if !u.CanPlaceOrder() {
		t.Error("new user should be able to order")
	}
	c := u.Contact()
	if c.Name != "Asha" || c.Phone != "9999999999" {
		t.Errorf("unexpected contact %+v", c)
	}

	u.Deactivate()
	if u.CanPlaceOrder() {
		t.Error("deactivated user should not order")
	}
}

func TestNewUserValidation(t *testing.T) {
	if _, err := NewUser("", "a@b.io", ""); !errors.Is(err, ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}
	if _, err := NewUser("A", "nope", ""); !errors.Is(err, ErrInvalidEmail) {
		t.Errorf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestUserNotFoundError(t *testing.T) {
	err := NewUserNotFoundError("u1")
	if !errors.Is(err, ErrUserNotFound) || !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("unexpected error chain: %v", err)
	}
}
