package auth

import "errors"

// Domain errors.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenInvalid       = errors.New("auth: invalid token")
	ErrForbidden          = errors.New("auth: insufficient permissions")
	ErrInvalidHash        = errors.New("auth: invalid password hash")
	ErrInvalidRole        = errors.New("auth: invalid role")
	ErrInvalidUser        = errors.New("auth: invalid user")
)
