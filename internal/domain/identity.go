package domain

import "errors"

// Role is the coarse capability level of an authenticated caller.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ErrForbidden indicates the caller may not act on the resource.
var ErrForbidden = errors.New("forbidden")

// Identity is the verified caller of an operation.
type Identity struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

// IsAdmin reports whether the identity carries the admin role.
func (id Identity) IsAdmin() bool {
	return id.Role == RoleAdmin
}

// ParseRole maps a claim value onto a Role. Anything other than ADMIN is a
// regular user.
func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// Authorize permits the actor when it is an admin or owns the resource.
func Authorize(actor Identity, ownerID string) error {
	if actor.IsAdmin() || (actor.UserID != "" && actor.UserID == ownerID) {
		return nil
	}
	return ErrForbidden
}

// ScopeOwner returns the owner a list query must be restricted to.
// Non-admins always see only their own resources; admins see the requested
// owner, or everyone when requested is empty.
func ScopeOwner(actor Identity, requested string) string {
	if !actor.IsAdmin() {
		return actor.UserID
	}
	return requested
}
