package auth

import "errors"

// Role is the access level carried by a token.
type Role string

// Roles, lowest first.
const (
	// RoleViewer may read devices, events, and the event stream.
	RoleViewer Role = "viewer"
	// RoleOperator may additionally trigger discovery.
	RoleOperator Role = "operator"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleViewer || r == RoleOperator
}

// Allows reports whether r grants at least the access of required.
func (r Role) Allows(required Role) bool {
	return rank(r) >= rank(required) && rank(required) > 0
}

func rank(r Role) int {
	switch r {
	case RoleViewer:
		return 1
	case RoleOperator:
		return 2 //nolint:mnd // role ordering
	default:
		return 0
	}
}

// Domain errors.
var (
	ErrTokenInvalid = errors.New("auth: invalid token")
	ErrInvalidRole  = errors.New("auth: invalid role")
	ErrNoSecret     = errors.New("auth: signing secret is empty")
)
