package user

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

// Email 规范化（小写、去空白）后的邮箱
type Email struct {
	value string
}

func NewEmail(raw string) (*Email, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if len(normalized) > 254 || !emailPattern.MatchString(normalized) {
		return nil, ErrInvalidEmail
	}
	return &Email{value: normalized}, nil
}

func (e Email) Value() string  { return e.value }
func (e Email) String() string { return e.value }
