package auth

import (
	"fmt"
	"regexp"
)

// usernamePattern defines the valid format for usernames:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// IsValidUsername checks if a username meets format requirements.
func IsValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// Role represents an authorisation tier.
type Role string

const (
	// RoleObserver may read the layout state and follow the event stream.
	RoleObserver Role = "observer"

	// RoleOperator has full control of the layout.
	RoleOperator Role = "operator"
)

// ParseRole parses a role name. The empty string selects RoleOperator.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case "", RoleOperator:
		return RoleOperator, nil
	case RoleObserver:
		return RoleObserver, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// User is an API account.
type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // never serialised
	Role         Role   `json:"role"`
}
