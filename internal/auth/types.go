package auth

import "errors"

// Role is an authorisation tier for API callers.
type Role string

const (
	// RoleViewer can read TV state only.
	RoleViewer Role = "viewer"

	// RoleOperator can press keys, switch power and open or close the
	// control channel.
	RoleOperator Role = "operator"

	// RoleAdmin can also complete pairing by submitting the TV's PIN.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of roles a token may carry.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleAdmin}

// IsValidRole returns true if r is one of ValidRoles.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Domain errors.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrInvalidRole  = errors.New("invalid role")
	ErrNoSecret     = errors.New("JWT secret not configured")
	ErrForbidden    = errors.New("insufficient permissions")
)
