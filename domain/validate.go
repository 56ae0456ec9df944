package domain

import (
	"strings"

	"chat-sync/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateUsername trims and checks the username a user wants to join
// with. Whitespace-only names are rejected before any transport call.
func ValidateUsername(raw string) (string, error) {
	username := strings.TrimSpace(raw)
	if err := validate.Var(username, "required"); err != nil {
		return "", errors.ErrUsernameRequired
	}
	return username, nil
}
