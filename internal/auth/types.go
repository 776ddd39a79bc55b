package auth

import "errors"

// Role represents the kind of identity behind a token.
type Role string

const (
	// RoleOperator is a person who logged in with the operator password.
	RoleOperator Role = "operator"

	// RolePanel is a display surface identity. No login required.
	RolePanel Role = "panel"
)

// ValidRoles is the set of valid token roles.
var ValidRoles = []Role{RoleOperator, RolePanel}

// IsValidRole returns true if r is a known role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrLoginDisabled      = errors.New("auth: operator login is not configured")
	ErrTokenInvalid       = errors.New("auth: invalid token")
	ErrForbidden          = errors.New("auth: insufficient permissions")
	ErrInvalidHash        = errors.New("auth: invalid password hash")
)
